package contracts

import (
	"encoding/json"
	"time"
)

// EventEnvelope is the wire shape every outbox event is published in.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	PartitionKey  string          `json:"partition_key"`
	SourceService string          `json:"source_service"`
	RequestID     string          `json:"request_id,omitempty"`
	SchemaVersion string          `json:"schema_version"`
	Data          json.RawMessage `json:"data"`
}

type ContractStatusChangedPayload struct {
	ContractID   string `json:"contract_id"`
	ClientID     string `json:"client_id"`
	FreelancerID string `json:"freelancer_id"`
	FromStatus   string `json:"from_status"`
	ToStatus     string `json:"to_status"`
	ChangedAt    string `json:"changed_at"`
}

type MilestoneStatusChangedPayload struct {
	MilestoneID string `json:"milestone_id"`
	ContractID  string `json:"contract_id"`
	Sequence    int    `json:"sequence"`
	FromStatus  string `json:"from_status"`
	ToStatus    string `json:"to_status"`
	ChangedAt   string `json:"changed_at"`
}

type MilestoneDeletedPayload struct {
	MilestoneID string `json:"milestone_id"`
	ContractID  string `json:"contract_id"`
	Sequence    int    `json:"sequence"`
	DeletedAt   string `json:"deleted_at"`
}

type EscrowMovementPayload struct {
	ContractID   string  `json:"contract_id"`
	MovementType string  `json:"movement_type"`
	Amount       float64 `json:"amount"`
	OccurredAt   string  `json:"occurred_at"`
}

type WalletMovementPayload struct {
	WalletID     string  `json:"wallet_id"`
	UserID       string  `json:"user_id"`
	MovementType string  `json:"movement_type"`
	Amount       float64 `json:"amount"`
	RelatedID    string  `json:"related_id,omitempty"`
	OccurredAt   string  `json:"occurred_at"`
}
