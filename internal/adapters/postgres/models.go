package postgres

import (
	"time"

	"github.com/google/uuid"
)

type platformUserModel struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Role      string    `gorm:"column:role"`
	IsActive  bool      `gorm:"column:is_active"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (platformUserModel) TableName() string { return "users" }

type walletModel struct {
	WalletID         uuid.UUID `gorm:"column:wallet_id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID `gorm:"column:user_id"`
	AvailableBalance int64     `gorm:"column:available_balance"`
	PendingBalance   int64     `gorm:"column:pending_balance"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (walletModel) TableName() string { return "wallets" }

type walletTransactionModel struct {
	TransactionID uuid.UUID  `gorm:"column:transaction_id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID      uuid.UUID  `gorm:"column:wallet_id"`
	Amount        int64      `gorm:"column:amount"`
	Type          string     `gorm:"column:type"`
	RelatedID     *uuid.UUID `gorm:"column:related_id"`
	Metadata      string     `gorm:"column:metadata"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
}

func (walletTransactionModel) TableName() string { return "wallet_transactions" }

type contractModel struct {
	ContractID   uuid.UUID  `gorm:"column:contract_id;type:uuid;primaryKey"`
	ClientID     uuid.UUID  `gorm:"column:client_id"`
	FreelancerID uuid.UUID  `gorm:"column:freelancer_id"`
	JobID        uuid.UUID  `gorm:"column:job_id"`
	Status       string     `gorm:"column:status"`
	Amount       int64      `gorm:"column:amount"`
	Currency     string     `gorm:"column:currency"`
	TotalPaid    int64      `gorm:"column:total_paid"`
	MilestoneSeq int        `gorm:"column:milestone_seq"`
	StartDate    *time.Time `gorm:"column:start_date"`
	EndDate      *time.Time `gorm:"column:end_date"`
	SubmittedAt  *time.Time `gorm:"column:submitted_at"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

func (contractModel) TableName() string { return "contracts" }

type milestoneModel struct {
	MilestoneID         uuid.UUID  `gorm:"column:milestone_id;type:uuid;primaryKey"`
	ContractID          uuid.UUID  `gorm:"column:contract_id"`
	Sequence            int        `gorm:"column:sequence"`
	Title               string     `gorm:"column:title"`
	Description         string     `gorm:"column:description"`
	Amount              int64      `gorm:"column:amount"`
	Currency            string     `gorm:"column:currency"`
	Status              string     `gorm:"column:status"`
	DueDate             *time.Time `gorm:"column:due_date"`
	ApprovedAt          *time.Time `gorm:"column:approved_at"`
	SubmittedAt         *time.Time `gorm:"column:submitted_at"`
	DisputedAt          *time.Time `gorm:"column:disputed_at"`
	DeletionRequestedAt *time.Time `gorm:"column:deletion_requested_at"`
	PaidAt              *time.Time `gorm:"column:paid_at"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at"`
}

func (milestoneModel) TableName() string { return "milestones" }

type escrowAccountModel struct {
	EscrowAccountID uuid.UUID `gorm:"column:escrow_account_id;type:uuid;primaryKey"`
	ContractID      uuid.UUID `gorm:"column:contract_id"`
	ClientID        uuid.UUID `gorm:"column:client_id"`
	FreelancerID    uuid.UUID `gorm:"column:freelancer_id"`
	HeldAmount      int64     `gorm:"column:held_amount"`
	InitialAmount   int64     `gorm:"column:initial_amount"`
	Status          string    `gorm:"column:status"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (escrowAccountModel) TableName() string { return "escrow_accounts" }

type escrowTransactionModel struct {
	TransactionID       uuid.UUID  `gorm:"column:transaction_id;type:uuid;default:gen_random_uuid();primaryKey"`
	EscrowAccountID     uuid.UUID  `gorm:"column:escrow_account_id"`
	Amount              int64      `gorm:"column:amount"`
	Type                string     `gorm:"column:type"`
	SourceWalletID      *uuid.UUID `gorm:"column:source_wallet_id"`
	DestinationWalletID *uuid.UUID `gorm:"column:destination_wallet_id"`
	Description         string     `gorm:"column:description"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
}

func (escrowTransactionModel) TableName() string { return "escrow_transactions" }

type escrowIdempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	Status         string    `gorm:"column:status"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body;type:jsonb"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (escrowIdempotencyModel) TableName() string { return "escrow_idempotency" }

type escrowOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	FirstSeenAt    time.Time  `gorm:"column:first_seen_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (escrowOutboxModel) TableName() string { return "escrow_outbox" }
