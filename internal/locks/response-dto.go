package locks

import "time"

type LockHandle struct {
	LockID  string `json:"lock_id"`
	SeatNo  string `json:"seat_no"`
	FloorNo int    `json:"floor_no"`
}

type HoldResponse struct {
	TripID         string       `json:"trip_id"`
	UserID         string       `json:"user_id"`
	Locks          []LockHandle `json:"locks"`
	ExpiresAt      time.Time    `json:"expires_at"`
	IdempotencyKey string       `json:"idempotency_key"`
}

// ConflictResponse reports why a hold could not be granted. Unavailable is
// the union of the three partitions, kept for clients that only care whether
// to retry with different seats.
type ConflictResponse struct {
	Unavailable []string `json:"unavailable"`
	Held        []string `json:"held,omitempty"`
	Booked      []string `json:"booked,omitempty"`
	Unknown     []string `json:"unknown,omitempty"`
}

type RenewResponse struct {
	LockID       string    `json:"lock_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	RenewalCount int       `json:"renewal_count"`
}

type LockResponse struct {
	LockID       string    `json:"lock_id"`
	TripID       string    `json:"trip_id"`
	SeatNo       string    `json:"seat_no"`
	Status       string    `json:"status"`
	ExpiresAt    time.Time `json:"expires_at"`
	RenewalCount int       `json:"renewal_count"`
}

type SeatStatusResponse struct {
	TripID    string     `json:"trip_id"`
	SeatNo    string     `json:"seat_no"`
	FloorNo   int        `json:"floor_no"`
	State     SeatState  `json:"state"`
	HeldUntil *time.Time `json:"held_until,omitempty"`
}

type SeatMapResponse struct {
	TripID string               `json:"trip_id"`
	Seats  []SeatStatusResponse `json:"seats"`
}

func (l *SeatLock) ToResponse() *LockResponse {
	return &LockResponse{
		LockID:       l.ID.String(),
		TripID:       l.TripID.String(),
		SeatNo:       l.SeatNo,
		Status:       string(l.Status),
		ExpiresAt:    l.ExpiresAt,
		RenewalCount: l.RenewalCount,
	}
}
