package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"slotline/internal/conflict/repository"
	"slotline/pkg/config"
	apperrors "slotline/pkg/errors"
	"slotline/pkg/logger"
	"slotline/pkg/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{Level: logger.ERROR, Service: "test"}),
	}
}

func newTestGuard() Guard {
	return NewGuard(repository.NewMemoryReservationStore(), testConfig())
}

func interval(startMin, endMin int) model.Interval {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return model.Interval{
		Start: base.Add(time.Duration(startMin) * time.Minute),
		End:   base.Add(time.Duration(endMin) * time.Minute),
	}
}

func TestReserveAndConflict(t *testing.T) {
	guard := newTestGuard()
	ctx := context.Background()

	token, err := guard.Reserve(ctx, ReserveRequest{
		TenantID:   "t1",
		ResourceID: "r1",
		Interval:   interval(0, 60),
	})
	if err != nil {
		t.Fatalf("first reserve failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	_, err = guard.Reserve(ctx, ReserveRequest{
		TenantID:   "t1",
		ResourceID: "r1",
		Interval:   interval(30, 90),
	})
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestReserveTouchingIntervalsBothSucceed(t *testing.T) {
	guard := newTestGuard()
	ctx := context.Background()

	if _, err := guard.Reserve(ctx, ReserveRequest{TenantID: "t1", ResourceID: "r1", Interval: interval(0, 60)}); err != nil {
		t.Fatalf("reserve [0,60) failed: %v", err)
	}
	if _, err := guard.Reserve(ctx, ReserveRequest{TenantID: "t1", ResourceID: "r1", Interval: interval(60, 120)}); err != nil {
		t.Fatalf("reserve [60,120) should not conflict with [0,60): %v", err)
	}
}

func TestReserveSeparateResourcesAndTenants(t *testing.T) {
	guard := newTestGuard()
	ctx := context.Background()

	cases := []ReserveRequest{
		{TenantID: "t1", ResourceID: "r1", Interval: interval(0, 60)},
		{TenantID: "t1", ResourceID: "r2", Interval: interval(0, 60)},
		{TenantID: "t2", ResourceID: "r1", Interval: interval(0, 60)},
	}
	for _, req := range cases {
		if _, err := guard.Reserve(ctx, req); err != nil {
			t.Fatalf("reserve for %s/%s failed: %v", req.TenantID, req.ResourceID, err)
		}
	}
}

func TestReserveInvalidInterval(t *testing.T) {
	guard := newTestGuard()
	ctx := context.Background()

	_, err := guard.Reserve(ctx, ReserveRequest{
		TenantID:   "t1",
		ResourceID: "r1",
		Interval:   interval(60, 60),
	})
	if !apperrors.HasCode(err, apperrors.CodeInvalidInterval) {
		t.Fatalf("expected invalid interval error, got %v", err)
	}

	_, err = guard.Reserve(ctx, ReserveRequest{
		TenantID:   "t1",
		ResourceID: "r1",
		Interval:   interval(90, 30),
	})
	if !apperrors.HasCode(err, apperrors.CodeInvalidInterval) {
		t.Fatalf("expected invalid interval error, got %v", err)
	}
}

func TestReleaseFreesSlot(t *testing.T) {
	guard := newTestGuard()
	ctx := context.Background()

	token, err := guard.Reserve(ctx, ReserveRequest{TenantID: "t1", ResourceID: "r1", Interval: interval(0, 60)})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	if err := guard.Release(ctx, "t1", token); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	if _, err := guard.Reserve(ctx, ReserveRequest{TenantID: "t1", ResourceID: "r1", Interval: interval(0, 60)}); err != nil {
		t.Fatalf("reserve after release failed: %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	guard := newTestGuard()
	ctx := context.Background()

	token, err := guard.Reserve(ctx, ReserveRequest{TenantID: "t1", ResourceID: "r1", Interval: interval(0, 60)})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	if err := guard.Release(ctx, "t1", token); err != nil {
		t.Fatalf("first release failed: %v", err)
	}
	if err := guard.Release(ctx, "t1", token); err != nil {
		t.Fatalf("second release should be a no-op, got %v", err)
	}
}

func TestRebookWithinOwnSlot(t *testing.T) {
	guard := newTestGuard()
	ctx := context.Background()

	token, err := guard.Reserve(ctx, ReserveRequest{TenantID: "t1", ResourceID: "r1", Interval: interval(0, 60)})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	// Shifting within the original slot overlaps only the caller's own
	// reservation and must succeed.
	newToken, err := guard.Rebook(ctx, ReserveRequest{TenantID: "t1", ResourceID: "r1", Interval: interval(15, 75)}, token)
	if err != nil {
		t.Fatalf("rebook within own slot failed: %v", err)
	}
	if newToken == token {
		t.Fatal("rebook should issue a fresh token")
	}

	// Old slot's head is free again.
	if _, err := guard.Reserve(ctx, ReserveRequest{TenantID: "t1", ResourceID: "r1", Interval: interval(0, 15)}); err != nil {
		t.Fatalf("reserve of vacated head failed: %v", err)
	}
}

func TestRebookConflictKeepsOldReservation(t *testing.T) {
	guard := newTestGuard()
	ctx := context.Background()

	token, err := guard.Reserve(ctx, ReserveRequest{TenantID: "t1", ResourceID: "r1", Interval: interval(0, 60)})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if _, err := guard.Reserve(ctx, ReserveRequest{TenantID: "t1", ResourceID: "r1", Interval: interval(120, 180)}); err != nil {
		t.Fatalf("blocker reserve failed: %v", err)
	}

	_, err = guard.Rebook(ctx, ReserveRequest{TenantID: "t1", ResourceID: "r1", Interval: interval(120, 180)}, token)
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// The failed rebook must not have freed the original slot.
	busy, err := guard.HasConflict(ctx, "t1", "r1", interval(0, 60))
	if err != nil {
		t.Fatalf("HasConflict failed: %v", err)
	}
	if !busy {
		t.Fatal("original reservation was lost after failed rebook")
	}
}

func TestRebookUnknownToken(t *testing.T) {
	guard := newTestGuard()
	ctx := context.Background()

	_, err := guard.Rebook(ctx, ReserveRequest{TenantID: "t1", ResourceID: "r1", Interval: interval(0, 60)}, "no-such-token")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	guard := newTestGuard()
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := guard.Reserve(ctx, ReserveRequest{
				TenantID:   "t1",
				ResourceID: "r1",
				Interval:   interval(0, 60),
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		switch {
		case err == nil:
			won++
		case apperrors.HasCode(err, apperrors.CodeConflict):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if won != 1 {
		t.Fatalf("expected exactly 1 winner, got %d (conflicts: %d)", won, lost)
	}
	if lost != workers-1 {
		t.Fatalf("expected %d conflicts, got %d", workers-1, lost)
	}
}

func TestConcurrentReserveDisjointSlots(t *testing.T) {
	guard := newTestGuard()
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		slot := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := guard.Reserve(ctx, ReserveRequest{
				TenantID:   "t1",
				ResourceID: "r1",
				Interval:   interval(slot*30, slot*30+30),
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			t.Fatalf("disjoint reserve failed: %v", err)
		}
	}
}
