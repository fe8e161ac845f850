package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestStore() *MemoryStore {
	store := NewMemoryStore(time.Hour, time.Hour)
	store.Stop()
	return store
}

func TestCheckOrReserveNewKey(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	res, err := store.CheckOrReserve(ctx, "t1", "key-1", "hash-a")
	if err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if res.Outcome != OutcomeNew {
		t.Fatalf("expected OutcomeNew, got %v", res.Outcome)
	}
}

func TestReplayAfterComplete(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	if _, err := store.CheckOrReserve(ctx, "t1", "key-1", "hash-a"); err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if err := store.Complete(ctx, "t1", "key-1", []byte(`{"booking_id":"b1"}`)); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	res, err := store.CheckOrReserve(ctx, "t1", "key-1", "hash-a")
	if err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if res.Outcome != OutcomeReplay {
		t.Fatalf("expected OutcomeReplay, got %v", res.Outcome)
	}
	if string(res.Result) != `{"booking_id":"b1"}` {
		t.Fatalf("unexpected stored result: %s", res.Result)
	}
}

func TestKeyReuseWithDifferentPayload(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	if _, err := store.CheckOrReserve(ctx, "t1", "key-1", "hash-a"); err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if err := store.Complete(ctx, "t1", "key-1", []byte("ok")); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	res, err := store.CheckOrReserve(ctx, "t1", "key-1", "hash-b")
	if err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if res.Outcome != OutcomeConflict {
		t.Fatalf("expected OutcomeConflict, got %v", res.Outcome)
	}
}

func TestInFlightKeyReportsInProgress(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	if _, err := store.CheckOrReserve(ctx, "t1", "key-1", "hash-a"); err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}

	res, err := store.CheckOrReserve(ctx, "t1", "key-1", "hash-a")
	if err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if res.Outcome != OutcomeInProgress {
		t.Fatalf("expected OutcomeInProgress, got %v", res.Outcome)
	}
}

func TestForgetAllowsRetry(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	if _, err := store.CheckOrReserve(ctx, "t1", "key-1", "hash-a"); err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if err := store.Forget(ctx, "t1", "key-1"); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}

	res, err := store.CheckOrReserve(ctx, "t1", "key-1", "hash-a")
	if err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if res.Outcome != OutcomeNew {
		t.Fatalf("expected OutcomeNew after Forget, got %v", res.Outcome)
	}
}

func TestExpiredRecordBehavesAsNew(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	if _, err := store.CheckOrReserve(ctx, "t1", "key-1", "hash-a"); err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if err := store.Complete(ctx, "t1", "key-1", []byte("ok")); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	store.now = func() time.Time { return base.Add(2 * time.Hour) }

	res, err := store.CheckOrReserve(ctx, "t1", "key-1", "hash-b")
	if err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if res.Outcome != OutcomeNew {
		t.Fatalf("expected OutcomeNew after retention, got %v", res.Outcome)
	}
}

func TestKeysAreTenantScoped(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	if _, err := store.CheckOrReserve(ctx, "t1", "key-1", "hash-a"); err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}

	res, err := store.CheckOrReserve(ctx, "t2", "key-1", "hash-b")
	if err != nil {
		t.Fatalf("CheckOrReserve failed: %v", err)
	}
	if res.Outcome != OutcomeNew {
		t.Fatalf("expected OutcomeNew for other tenant, got %v", res.Outcome)
	}
}

func TestConcurrentSameKeySingleOwner(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	const workers = 30
	var wg sync.WaitGroup
	outcomes := make(chan Outcome, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.CheckOrReserve(ctx, "t1", "key-1", "hash-a")
			if err != nil {
				t.Errorf("CheckOrReserve failed: %v", err)
				return
			}
			outcomes <- res.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	var owners int
	for outcome := range outcomes {
		switch outcome {
		case OutcomeNew:
			owners++
		case OutcomeInProgress:
		default:
			t.Fatalf("unexpected outcome: %v", outcome)
		}
	}

	if owners != 1 {
		t.Fatalf("expected exactly 1 owner, got %d", owners)
	}
}

func TestRequestFingerprintStable(t *testing.T) {
	a := RequestFingerprint(map[string]string{"resource": "r1", "start": "10:00", "end": "11:00"})
	b := RequestFingerprint(map[string]string{"end": "11:00", "start": "10:00", "resource": "r1"})
	if a != b {
		t.Fatal("fingerprint should not depend on map ordering")
	}

	c := RequestFingerprint(map[string]string{"resource": "r2", "start": "10:00", "end": "11:00"})
	if a == c {
		t.Fatal("different payloads must not collide")
	}
}
