package application

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/ports"
)

const eventSchemaVersion = "1.0"

// newOutboxEvent wraps a payload in the canonical envelope. The event is
// written by the repository in the same transaction as the state change,
// so enqueueing never races the mutation it describes.
func (s *Service) newOutboxEvent(eventType, partitionKey, requestID string, payload any, occurredAt time.Time) *ports.OutboxEvent {
	data, _ := json.Marshal(payload)
	eventID := uuid.New()
	envelope := contracts.EventEnvelope{
		EventID:       eventID.String(),
		EventType:     eventType,
		OccurredAt:    occurredAt,
		PartitionKey:  partitionKey,
		SourceService: s.cfg.ServiceName,
		RequestID:     requestID,
		SchemaVersion: eventSchemaVersion,
		Data:          data,
	}
	body, _ := json.Marshal(envelope)
	return &ports.OutboxEvent{
		EventID:      eventID,
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      body,
		OccurredAt:   occurredAt,
	}
}

func (s *Service) contractStatusEvent(c domain.Contract, from domain.ContractStatus, requestID string, at time.Time) *ports.OutboxEvent {
	return s.newOutboxEvent(domain.EventContractStatusChanged, c.ContractID.String(), requestID, contracts.ContractStatusChangedPayload{
		ContractID:   c.ContractID.String(),
		ClientID:     c.ClientID.String(),
		FreelancerID: c.FreelancerID.String(),
		FromStatus:   string(from),
		ToStatus:     string(c.Status),
		ChangedAt:    at.Format(time.RFC3339Nano),
	}, at)
}

func (s *Service) milestoneStatusEvent(m domain.Milestone, from domain.MilestoneStatus, requestID string, at time.Time) *ports.OutboxEvent {
	return s.newOutboxEvent(domain.EventMilestoneStatusChanged, m.ContractID.String(), requestID, contracts.MilestoneStatusChangedPayload{
		MilestoneID: m.MilestoneID.String(),
		ContractID:  m.ContractID.String(),
		Sequence:    m.Sequence,
		FromStatus:  string(from),
		ToStatus:    string(m.Status),
		ChangedAt:   at.Format(time.RFC3339Nano),
	}, at)
}

func (s *Service) walletMovementEvent(eventType string, userID uuid.UUID, amount domain.Amount, movement string, relatedID *uuid.UUID, requestID string, at time.Time) *ports.OutboxEvent {
	payload := contracts.WalletMovementPayload{
		UserID:       userID.String(),
		MovementType: movement,
		Amount:       amount.Major(),
		OccurredAt:   at.Format(time.RFC3339Nano),
	}
	if relatedID != nil {
		payload.RelatedID = relatedID.String()
	}
	return s.newOutboxEvent(eventType, userID.String(), requestID, payload, at)
}
