package catalog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ridehub/pkg/cache"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeRepository struct {
	trip      *Trip
	seats     []TripSeat
	tripReads int
	seatReads int
}

func (r *fakeRepository) GetTripByID(ctx context.Context, id uuid.UUID) (*Trip, error) {
	r.tripReads++
	if r.trip == nil || r.trip.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return r.trip, nil
}

func (r *fakeRepository) ListUpcomingTrips(ctx context.Context, limit, offset int) ([]Trip, error) {
	if r.trip == nil {
		return nil, nil
	}
	return []Trip{*r.trip}, nil
}

func (r *fakeRepository) GetTripSeats(ctx context.Context, tripID uuid.UUID) ([]TripSeat, error) {
	r.seatReads++
	var out []TripSeat
	for _, seat := range r.seats {
		if seat.TripID == tripID {
			out = append(out, seat)
		}
	}
	return out, nil
}

func (r *fakeRepository) FindBooked(ctx context.Context, tx *gorm.DB, tripID uuid.UUID, seatNos []string) ([]string, error) {
	wanted := make(map[string]bool, len(seatNos))
	for _, no := range seatNos {
		wanted[no] = true
	}
	var booked []string
	for _, seat := range r.seats {
		if seat.TripID == tripID && seat.Booked && wanted[seat.SeatNo] {
			booked = append(booked, seat.SeatNo)
		}
	}
	return booked, nil
}

func (r *fakeRepository) MarkBooked(ctx context.Context, tx *gorm.DB, tripID uuid.UUID, seatNos []string) (int64, error) {
	var flipped int64
	wanted := make(map[string]bool, len(seatNos))
	for _, no := range seatNos {
		wanted[no] = true
	}
	for i := range r.seats {
		if r.seats[i].TripID == tripID && wanted[r.seats[i].SeatNo] && !r.seats[i].Booked {
			r.seats[i].Booked = true
			flipped++
		}
	}
	return flipped, nil
}

// fakeCache stores marshaled values in memory, keeping the same JSON
// round-trip semantics as the Redis-backed implementation.
type fakeCache struct {
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

func (c *fakeCache) DeletePattern(ctx context.Context, pattern string) error {
	return nil
}

func (c *fakeCache) Exists(ctx context.Context, key string) bool {
	_, ok := c.entries[key]
	return ok
}

func (c *fakeCache) Ping(ctx context.Context) error { return nil }

func newTestTrip() *Trip {
	tripID := uuid.New()
	return &Trip{
		ID:          tripID,
		RouteCode:   "HAN-HPH",
		Origin:      "Hanoi",
		Destination: "Hai Phong",
		DepartureAt: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC),
		ArrivalAt:   time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
	}
}

func TestGetTripCachesDetail(t *testing.T) {
	trip := newTestTrip()
	repo := &fakeRepository{trip: trip}
	svc := NewService(repo)
	svc.SetCacheService(newFakeCache())
	ctx := context.Background()

	first, err := svc.GetTrip(ctx, trip.ID.String())
	if err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	if first.RouteCode != "HAN-HPH" {
		t.Errorf("expected route HAN-HPH, got %s", first.RouteCode)
	}

	second, err := svc.GetTrip(ctx, trip.ID.String())
	if err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if second.ID != trip.ID {
		t.Errorf("cached trip ID mismatch: got %s", second.ID)
	}
	if repo.tripReads != 1 {
		t.Errorf("expected a single repository read, got %d", repo.tripReads)
	}
}

func TestGetTripRejectsBadID(t *testing.T) {
	svc := NewService(&fakeRepository{})

	if _, err := svc.GetTrip(context.Background(), "not-a-uuid"); err == nil {
		t.Error("expected error for malformed trip ID")
	}
}

func TestGetSeatNumbersEmptyForUnknownTrip(t *testing.T) {
	trip := newTestTrip()
	repo := &fakeRepository{trip: trip}
	svc := NewService(repo)

	seats, err := svc.GetSeatNumbers(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seats) != 0 {
		t.Errorf("expected empty seat map, got %d entries", len(seats))
	}
}

func TestBookedSeatsFiltersToRequested(t *testing.T) {
	trip := newTestTrip()
	repo := &fakeRepository{
		trip: trip,
		seats: []TripSeat{
			{TripID: trip.ID, SeatNo: "A1", FloorNo: 1, Booked: true},
			{TripID: trip.ID, SeatNo: "A2", FloorNo: 1, Booked: false},
			{TripID: trip.ID, SeatNo: "B1", FloorNo: 2, Booked: true},
		},
	}
	svc := NewService(repo)
	ctx := context.Background()

	booked, err := svc.BookedSeats(ctx, trip.ID, []string{"A1", "A2"})
	if err != nil {
		t.Fatalf("booked lookup failed: %v", err)
	}
	if len(booked) != 1 || booked[0] != "A1" {
		t.Errorf("expected [A1], got %v", booked)
	}

	isBooked, err := svc.IsBooked(ctx, trip.ID, "A2")
	if err != nil {
		t.Fatalf("is-booked lookup failed: %v", err)
	}
	if isBooked {
		t.Error("A2 should not be booked")
	}
}
