package locks

import (
	"time"

	"github.com/google/uuid"
)

// SeatLock is a time-bounded exclusive claim on one seat of one trip.
// Exclusivity is enforced at the storage layer: a partial unique index on
// (trip_id, seat_no) over non-terminal rows is the sole arbiter of who wins
// a race (see database.MigrateConstraints). Rows are never deleted on
// finalization; they are retained for idempotency replay and audit, then
// garbage-collected by the sweeper.
type SeatLock struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TripID         uuid.UUID  `gorm:"type:uuid;not null;index:idx_seat_locks_trip" json:"trip_id"`
	SeatNo         string     `gorm:"type:varchar(16);not null;index:idx_seat_locks_trip" json:"seat_no"`
	FloorNo        int        `gorm:"not null;default:1" json:"floor_no"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Status         LockStatus `gorm:"type:varchar(16);not null" json:"status"`
	ExpiresAt      time.Time  `gorm:"not null" json:"expires_at"`
	IdempotencyKey string     `gorm:"type:varchar(80);not null;index:idx_seat_locks_idem" json:"idempotency_key"`
	RenewalCount   int        `gorm:"not null;default:0" json:"renewal_count"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName sets the table name for SeatLock
func (SeatLock) TableName() string {
	return "seat_locks"
}

// IsLapsed reports whether a HELD lock's expiry has passed. A lapsed HELD
// row must be treated as not actually held ("lazy expiry") so correctness
// never depends on sweeper timing.
func (l *SeatLock) IsLapsed(now time.Time) bool {
	return l.Status == LockStatusHeld && !l.ExpiresAt.After(now)
}

// IsActive reports whether the lock currently excludes other holders.
func (l *SeatLock) IsActive(now time.Time) bool {
	switch l.Status {
	case LockStatusHeld:
		return l.ExpiresAt.After(now)
	case LockStatusConfirmed:
		return true
	}
	return false
}
