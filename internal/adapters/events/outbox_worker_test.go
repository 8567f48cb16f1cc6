package events_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/adapters/events"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/financial-rails/M15-contract-escrow-service/internal/ports"
)

type recordingPublisher struct {
	published []string
	failType  string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ []byte, _ string) error {
	if eventType == p.failType {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, eventType)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func enqueue(t *testing.T, store *memory.Store, eventType string) {
	t.Helper()
	err := store.Outbox().Enqueue(context.Background(), ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: "contract-1",
		Payload:      []byte(`{}`),
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
}

func TestWorkerPublishesClaimedBatch(t *testing.T) {
	store := memory.NewStore()
	enqueue(t, store, "escrow.deposited")
	enqueue(t, store, "escrow.released")

	pub := &recordingPublisher{}
	worker := events.NewOutboxWorker(quietLogger(), store.Outbox(), pub, time.Second, 10, time.Minute, 3)
	if err := worker.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}

	if len(pub.published) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.published))
	}
	for _, rec := range store.OutboxRecords() {
		if rec.PublishedAt == nil {
			t.Fatalf("record %s not marked published", rec.EventType)
		}
	}

	// A second pass finds nothing left to claim.
	if err := worker.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("ProcessOnce second: %v", err)
	}
	if len(pub.published) != 2 {
		t.Fatalf("published again on empty backlog: %d", len(pub.published))
	}
}

func TestWorkerRetriesThenDeadLetters(t *testing.T) {
	store := memory.NewStore()
	enqueue(t, store, "escrow.deposited")

	pub := &recordingPublisher{failType: "escrow.deposited"}
	worker := events.NewOutboxWorker(quietLogger(), store.Outbox(), pub, time.Second, 10, time.Minute, 2)

	// First failure schedules a retry, second crosses the threshold.
	for i := 0; i < 2; i++ {
		if err := worker.ProcessOnce(context.Background()); err != nil {
			t.Fatalf("ProcessOnce %d: %v", i, err)
		}
	}

	records := store.OutboxRecords()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.DeadLetteredAt == nil {
		t.Fatal("record not dead-lettered after retry threshold")
	}
	if rec.PublishedAt != nil {
		t.Fatal("failed record marked published")
	}
	if rec.LastError == nil || *rec.LastError == "" {
		t.Fatal("last error not recorded")
	}

	// Dead-lettered records are never claimed again.
	if err := worker.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("ProcessOnce after dlq: %v", err)
	}
	if got := store.OutboxRecords()[0].RetryCount; got != rec.RetryCount {
		t.Fatalf("dead-lettered record retried: %d -> %d", rec.RetryCount, got)
	}
}
