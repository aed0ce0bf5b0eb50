package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds the database constraints the reservation engine's
// concurrency control depends on. These cannot be expressed as GORM tags.
func MigrateConstraints(db *gorm.DB) error {
	// Seat exclusivity: at most one live lock per seat. Terminal rows fall
	// out of the index, so expired or released locks never block a new hold.
	err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uniq_active_seat_lock
		ON seat_locks (trip_id, seat_no)
		WHERE status IN ('HELD', 'CONFIRMED');
	`).Error
	if err != nil {
		return err
	}

	// Idempotency replay: one row per (key, seat) so a whole batch shares a
	// key but a retry can never insert it twice.
	err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uniq_seat_locks_idem
		ON seat_locks (idempotency_key, seat_no);
	`).Error
	if err != nil {
		return err
	}

	// Sweeper scan: lapsed HELD rows by expiry.
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_seat_locks_status_expires
		ON seat_locks (status, expires_at);
	`).Error
	if err != nil {
		return err
	}

	return nil
}
