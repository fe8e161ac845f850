package service

import (
	"context"
	"testing"
	"time"

	"slotline/internal/events"
	"slotline/internal/waitlist/repository"
	"slotline/pkg/config"
	apperrors "slotline/pkg/errors"
	"slotline/pkg/logger"
	"slotline/pkg/model"
)

type capturePublisher struct {
	events []events.Event
}

func (p *capturePublisher) Publish(ctx context.Context, event events.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{Level: logger.ERROR, Service: "test"}),
	}
}

func entry(customer string, startMin, endMin int) *model.WaitlistEntry {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return &model.WaitlistEntry{
		TenantID:   "t1",
		ResourceID: "r1",
		CustomerID: customer,
		Start:      base.Add(time.Duration(startMin) * time.Minute),
		End:        base.Add(time.Duration(endMin) * time.Minute),
	}
}

func TestJoinAndList(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewWaitlistService(repository.NewMemoryWaitlistRepository(), pub, testConfig())
	ctx := context.Background()

	if err := svc.Join(ctx, entry("c1", 0, 60)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := svc.Join(ctx, entry("c2", 30, 90)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	entries, err := svc.List(ctx, "t1", "r1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestJoinRejectsInvalidInterval(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewWaitlistService(repository.NewMemoryWaitlistRepository(), pub, testConfig())

	err := svc.Join(context.Background(), entry("c1", 60, 60))
	if !apperrors.HasCode(err, apperrors.CodeInvalidInterval) {
		t.Fatalf("expected INVALID_INTERVAL, got %v", err)
	}
}

func TestNotifyReleasedFulfillsOverlappingEntries(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewWaitlistService(repository.NewMemoryWaitlistRepository(), pub, testConfig())
	ctx := context.Background()

	if err := svc.Join(ctx, entry("c1", 0, 60)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := svc.Join(ctx, entry("c2", 30, 90)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	// c3 wants a disjoint slot and must stay queued.
	if err := svc.Join(ctx, entry("c3", 120, 180)); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.NotifyReleased(ctx, "t1", "r1", model.Interval{Start: base, End: base.Add(time.Hour)})

	if len(pub.events) != 2 {
		t.Fatalf("expected 2 notification events, got %d", len(pub.events))
	}
	for _, e := range pub.events {
		if e.Type != events.TypeWaitlistNotified {
			t.Errorf("unexpected event type %s", e.Type)
		}
	}

	remaining, err := svc.List(ctx, "t1", "r1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", len(remaining))
	}
	if remaining[0].CustomerID != "c3" {
		t.Errorf("wrong entry remained: %s", remaining[0].CustomerID)
	}
}

func TestLeaveRemovesEntry(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewWaitlistService(repository.NewMemoryWaitlistRepository(), pub, testConfig())
	ctx := context.Background()

	e := entry("c1", 0, 60)
	if err := svc.Join(ctx, e); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := svc.Leave(ctx, "t1", e.ID); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	err := svc.Leave(ctx, "t1", e.ID)
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for repeated Leave, got %v", err)
	}
}
