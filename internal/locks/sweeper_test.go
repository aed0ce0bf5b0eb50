package locks

import (
	"context"
	"testing"
	"time"

	"ridehub/internal/notifications"

	"github.com/google/uuid"
)

func newTestSweeper(seatNos ...string) (*Sweeper, *service, *fakeStore, *fakeProducer, *fakeClock, uuid.UUID) {
	svc, store, producer, clock, tripID := newTestEngine(seatNos...)
	sweeper := NewSweeper(store, producer, testLockConfig())
	sweeper.SetClock(clock.Now)
	return sweeper, svc, store, producer, clock, tripID
}

func TestSweepReclaimsLapsedHolds(t *testing.T) {
	sweeper, svc, store, producer, clock, tripID := newTestSweeper("A1", "A2", "A3")
	ctx := context.Background()

	lapsing, err := svc.Hold(ctx, tripID, uuid.New(), &HoldRequest{SeatNos: []string{"A1", "A2"}, TTLSeconds: 1})
	if err != nil {
		t.Fatalf("hold failed: %v", err)
	}
	fresh, err := svc.Hold(ctx, tripID, uuid.New(), &HoldRequest{SeatNos: []string{"A3"}})
	if err != nil {
		t.Fatalf("hold failed: %v", err)
	}

	clock.Advance(2 * time.Second)
	sweeper.SweepOnce(ctx)

	for _, handle := range lapsing.Locks {
		id := uuid.MustParse(handle.LockID)
		if got := store.lockStatus(id); got != LockStatusExpired {
			t.Errorf("seat %s: expected EXPIRED after sweep, got %s", handle.SeatNo, got)
		}
	}
	freshID := uuid.MustParse(fresh.Locks[0].LockID)
	if got := store.lockStatus(freshID); got != LockStatusHeld {
		t.Errorf("fresh hold swept: got %s", got)
	}
	if got := producer.countState(notifications.SeatStateAvailable); got != 2 {
		t.Errorf("expected 2 available events, got %d", got)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	sweeper, svc, _, producer, clock, tripID := newTestSweeper("A1")
	ctx := context.Background()

	if _, err := svc.Hold(ctx, tripID, uuid.New(), &HoldRequest{SeatNos: []string{"A1"}, TTLSeconds: 1}); err != nil {
		t.Fatalf("hold failed: %v", err)
	}
	clock.Advance(2 * time.Second)

	sweeper.SweepOnce(ctx)
	sweeper.SweepOnce(ctx)

	if got := producer.countState(notifications.SeatStateAvailable); got != 1 {
		t.Errorf("second sweep re-emitted: %d available events", got)
	}
}

func TestSweepPurgesTerminalRowsAfterRetention(t *testing.T) {
	sweeper, svc, store, _, clock, tripID := newTestSweeper("A1", "A2")
	userID := uuid.New()
	ctx := context.Background()

	resp, err := svc.Hold(ctx, tripID, userID, &HoldRequest{SeatNos: []string{"A1"}})
	if err != nil {
		t.Fatalf("hold failed: %v", err)
	}
	if err := svc.Release(ctx, uuid.MustParse(resp.Locks[0].LockID), userID); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	// Inside the retention window the released row sticks around for audit
	// and idempotency replay.
	clock.Advance(time.Hour)
	sweeper.SweepOnce(ctx)
	if store.lockCount() != 1 {
		t.Fatalf("row purged inside retention window: %d rows", store.lockCount())
	}

	clock.Advance(24 * time.Hour)
	sweeper.SweepOnce(ctx)
	if store.lockCount() != 0 {
		t.Errorf("expected terminal row purged after retention, got %d rows", store.lockCount())
	}
}

func TestSweepKeepsActiveHolds(t *testing.T) {
	sweeper, svc, store, _, _, tripID := newTestSweeper("A1")
	ctx := context.Background()

	resp, err := svc.Hold(ctx, tripID, uuid.New(), &HoldRequest{SeatNos: []string{"A1"}})
	if err != nil {
		t.Fatalf("hold failed: %v", err)
	}
	sweeper.SweepOnce(ctx)

	id := uuid.MustParse(resp.Locks[0].LockID)
	if got := store.lockStatus(id); got != LockStatusHeld {
		t.Errorf("active hold disturbed by sweep: %s", got)
	}
}

func TestSweeperStartStop(t *testing.T) {
	tripID := uuid.New()
	store := newFakeStore(tripID, "A1")
	cfg := testLockConfig()
	cfg.Locks.SweepInterval = 5 * time.Millisecond

	sweeper := NewSweeper(store, &fakeProducer{}, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper.Start(ctx)
	sweeper.Start(ctx) // second start is a no-op
	time.Sleep(20 * time.Millisecond)
	sweeper.Stop()
	sweeper.Stop() // second stop is a no-op
}
