package locks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ridehub/internal/catalog"
	"ridehub/internal/notifications"
	"ridehub/internal/shared/config"

	"github.com/google/uuid"
)

// fakeStore backs both the lock Repository and the SeatCatalog for a single
// trip, honoring the same conditional-write contract the Postgres layer
// provides: every mutation checks expected state under one mutex, so
// concurrent callers race exactly as they would against the real indexes.
type fakeStore struct {
	mu     sync.Mutex
	tripID uuid.UUID
	seats  map[string]catalog.SeatDescriptor
	booked map[string]bool
	locks  map[uuid.UUID]*SeatLock
}

func newFakeStore(tripID uuid.UUID, seatNos ...string) *fakeStore {
	s := &fakeStore{
		tripID: tripID,
		seats:  make(map[string]catalog.SeatDescriptor),
		booked: make(map[string]bool),
		locks:  make(map[uuid.UUID]*SeatLock),
	}
	for _, seatNo := range seatNos {
		s.seats[seatNo] = catalog.SeatDescriptor{TripID: tripID, SeatNo: seatNo, FloorNo: 1}
	}
	return s
}

// --- SeatCatalog ---

func (s *fakeStore) GetSeatNumbers(ctx context.Context, tripID uuid.UUID) (map[string]catalog.SeatDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]catalog.SeatDescriptor)
	if tripID != s.tripID {
		return out, nil
	}
	for k, v := range s.seats {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) BookedSeats(ctx context.Context, tripID uuid.UUID, seatNos []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, seatNo := range seatNos {
		if s.booked[seatNo] {
			out = append(out, seatNo)
		}
	}
	return out, nil
}

func (s *fakeStore) IsBooked(ctx context.Context, tripID uuid.UUID, seatNo string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.booked[seatNo], nil
}

// --- Repository ---

func (s *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		return nil, ErrLockNotFound
	}
	cp := *lock
	return &cp, nil
}

func (s *fakeStore) FindByIdempotencyKey(ctx context.Context, key string) ([]SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SeatLock
	for _, l := range s.locks {
		if l.IdempotencyKey == key {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatNo < out[j].SeatNo })
	return out, nil
}

func (s *fakeStore) FindActiveBySeats(ctx context.Context, tripID uuid.UUID, seatNos []string, now time.Time) ([]SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]bool, len(seatNos))
	for _, seatNo := range seatNos {
		want[seatNo] = true
	}
	var out []SeatLock
	for _, l := range s.locks {
		if l.TripID == tripID && want[l.SeatNo] && l.IsActive(now) {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *fakeStore) InsertBatchExclusive(ctx context.Context, tripID uuid.UUID, batch []SeatLock, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]bool, len(batch))
	for _, l := range batch {
		want[l.SeatNo] = true
	}

	for _, l := range s.locks {
		if l.TripID == tripID && want[l.SeatNo] && l.Status == LockStatusHeld && !l.ExpiresAt.After(now) {
			l.Status = LockStatusExpired
			l.UpdatedAt = now
		}
	}

	for _, l := range s.locks {
		if l.IdempotencyKey == batch[0].IdempotencyKey {
			return errIdempotencyRace
		}
	}

	conflict := &ConflictError{}
	for _, l := range s.locks {
		if l.TripID == tripID && want[l.SeatNo] && l.IsActive(now) {
			conflict.Held = append(conflict.Held, l.SeatNo)
		}
	}
	// Same contract as the real transaction: booked is checked inside the
	// exclusive section, so a hold whose pre-check raced a confirm still
	// comes back as a seat conflict.
	for _, l := range batch {
		if s.booked[l.SeatNo] {
			conflict.Booked = append(conflict.Booked, l.SeatNo)
		}
	}
	if conflict.HasConflicts() {
		sort.Strings(conflict.Held)
		return conflict
	}

	for i := range batch {
		cp := batch[i]
		s.locks[cp.ID] = &cp
	}
	return nil
}

func (s *fakeStore) Renew(ctx context.Context, id, userID uuid.UUID, newExpiresAt, now time.Time, maxRenewals int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok || l.UserID != userID || l.Status != LockStatusHeld ||
		!l.ExpiresAt.After(now) || l.RenewalCount >= maxRenewals {
		return false, nil
	}
	l.ExpiresAt = newExpiresAt
	l.RenewalCount++
	l.UpdatedAt = now
	return true, nil
}

func (s *fakeStore) Transition(ctx context.Context, id uuid.UUID, from, to LockStatus, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok || l.Status != from {
		return false, nil
	}
	l.Status = to
	l.UpdatedAt = now
	return true, nil
}

func (s *fakeStore) ConfirmAndBook(ctx context.Context, batch []SeatLock, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range batch {
		l, ok := s.locks[b.ID]
		if !ok || l.Status != LockStatusHeld || !l.ExpiresAt.After(now) {
			return ErrLockExpired
		}
	}
	for _, b := range batch {
		l := s.locks[b.ID]
		if s.booked[l.SeatNo] {
			return fmt.Errorf("%w: seat %s already booked", ErrInvariantViolation, l.SeatNo)
		}
	}
	for _, b := range batch {
		l := s.locks[b.ID]
		s.booked[l.SeatNo] = true
		l.Status = LockStatusReleased
		l.UpdatedAt = now
	}
	return nil
}

func (s *fakeStore) FindLapsed(ctx context.Context, now time.Time, limit int) ([]SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SeatLock
	for _, l := range s.locks {
		if l.Status == LockStatusHeld && !l.ExpiresAt.After(now) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return s.Transition(ctx, id, LockStatusHeld, LockStatusExpired, now)
}

func (s *fakeStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, l := range s.locks {
		if l.Status.IsTerminal() && l.UpdatedAt.Before(cutoff) {
			delete(s.locks, id)
			deleted++
		}
	}
	return deleted, nil
}

// lockStatus reads a lock's current status directly from the store.
func (s *fakeStore) lockStatus(id uuid.UUID) LockStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		return ""
	}
	return l.Status
}

func (s *fakeStore) lockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

// fakeProducer records emitted availability transitions.
type fakeProducer struct {
	mu     sync.Mutex
	events []notifications.SeatState
	seats  []string
}

func (p *fakeProducer) EmitSeatAvailabilityChanged(ctx context.Context, tripID uuid.UUID, seatNo string, state notifications.SeatState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, state)
	p.seats = append(p.seats, seatNo)
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) HealthCheck(ctx context.Context) error { return nil }

func (p *fakeProducer) lastEvent() (notifications.SeatState, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return "", ""
	}
	return p.events[len(p.events)-1], p.seats[len(p.seats)-1]
}

func (p *fakeProducer) countState(state notifications.SeatState) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == state {
			n++
		}
	}
	return n
}

// fakeClock is a settable clock so expiry is tested without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testLockConfig() *config.Config {
	return &config.Config{
		Locks: config.LockConfig{
			TTLMin:         time.Second,
			TTLMax:         15 * time.Minute,
			TTLDefault:     10 * time.Minute,
			MaxRenewals:    3,
			RenewalEnabled: true,
			SweepInterval:  15 * time.Second,
			SweepBatchSize: 100,
			Retention:      24 * time.Hour,
		},
	}
}

// newTestEngine wires a service against the fakes for a trip with the given
// seats.
func newTestEngine(seatNos ...string) (*service, *fakeStore, *fakeProducer, *fakeClock, uuid.UUID) {
	tripID := uuid.New()
	store := newFakeStore(tripID, seatNos...)
	producer := &fakeProducer{}
	clock := newFakeClock()

	svc := NewService(store, store, producer, testLockConfig())
	svc.SetClock(clock.Now)
	return svc, store, producer, clock, tripID
}
