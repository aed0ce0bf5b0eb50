package notifications

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SeatState carried on availability events
type SeatState string

const (
	SeatStateAvailable SeatState = "AVAILABLE"
	SeatStateHeld      SeatState = "HELD"
	SeatStateBooked    SeatState = "BOOKED"
)

// SeatAvailabilityEvent tells downstream consumers (search index, trip
// listings, waiting UIs) that a seat's sellability changed. Best-effort:
// consumers must tolerate loss and re-read the lock store for truth.
type SeatAvailabilityEvent struct {
	ID        uuid.UUID `json:"id"`
	TripID    uuid.UUID `json:"trip_id"`
	SeatNo    string    `json:"seat_no"`
	Available bool      `json:"available"`
	State     SeatState `json:"state"`
	EmittedAt time.Time `json:"emitted_at"`
}

// NewSeatAvailabilityEvent builds an event for one seat transition.
func NewSeatAvailabilityEvent(tripID uuid.UUID, seatNo string, state SeatState) *SeatAvailabilityEvent {
	return &SeatAvailabilityEvent{
		ID:        uuid.New(),
		TripID:    tripID,
		SeatNo:    seatNo,
		Available: state == SeatStateAvailable,
		State:     state,
		EmittedAt: time.Now().UTC(),
	}
}

// ToJSON serializes the event for the wire
func (e *SeatAvailabilityEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// GetPartitionKey keeps all events for one seat on one partition so
// consumers observe that seat's transitions in order.
func (e *SeatAvailabilityEvent) GetPartitionKey() string {
	return fmt.Sprintf("%s:%s", e.TripID, e.SeatNo)
}
