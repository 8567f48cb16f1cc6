package contracts

import "time"

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

// Amounts in every request/response below are major units (dollars); the
// HTTP adapter is the rounding boundary into integer minor units.

type CreateContractRequest struct {
	FreelancerID string  `json:"freelancer_id"`
	JobID        string  `json:"job_id"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
}

type ContractResponse struct {
	ContractID   string     `json:"contract_id"`
	ClientID     string     `json:"client_id"`
	FreelancerID string     `json:"freelancer_id"`
	JobID        string     `json:"job_id"`
	Status       string     `json:"status"`
	Amount       float64    `json:"amount"`
	Currency     string     `json:"currency"`
	TotalPaid    float64    `json:"total_paid"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
}

type CreateMilestoneRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

type UpdateMilestoneRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Amount      float64    `json:"amount"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

type MilestoneTransitionRequest struct {
	AllowUnchecked bool `json:"allow_unchecked,omitempty"`
}

type MilestoneResponse struct {
	MilestoneID         string     `json:"milestone_id"`
	ContractID          string     `json:"contract_id"`
	Sequence            int        `json:"sequence"`
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	Amount              float64    `json:"amount"`
	Currency            string     `json:"currency"`
	Status              string     `json:"status"`
	DueDate             *time.Time `json:"due_date,omitempty"`
	ApprovedAt          *time.Time `json:"approved_at,omitempty"`
	SubmittedAt         *time.Time `json:"submitted_at,omitempty"`
	DisputedAt          *time.Time `json:"disputed_at,omitempty"`
	DeletionRequestedAt *time.Time `json:"deletion_requested_at,omitempty"`
	PaidAt              *time.Time `json:"paid_at,omitempty"`
}

type DepositRequest struct {
	Amount float64 `json:"amount"`
}

type ReleaseRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
}

type RefundRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
}

type EscrowStatusResponse struct {
	ContractID    string  `json:"contract_id"`
	HeldAmount    float64 `json:"held_amount"`
	InitialAmount float64 `json:"initial_amount"`
	Status        string  `json:"status"`
}

type WalletResponse struct {
	UserID           string  `json:"user_id"`
	AvailableBalance float64 `json:"available_balance"`
	PendingBalance   float64 `json:"pending_balance"`
	TotalBalance     float64 `json:"total_balance"`
}

type PendingTransferRequest struct {
	Amount float64 `json:"amount"`
}

type PayoutRequest struct {
	Amount   float64 `json:"amount"`
	PayoutID string  `json:"payout_id"`
}
