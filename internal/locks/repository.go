package locks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ridehub/internal/catalog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// errIdempotencyRace signals that a concurrent request with the same
// idempotency key inserted first; the caller re-reads and replays.
var errIdempotencyRace = errors.New("idempotency key already inserted")

// Repository is the durable lock store. Every mutation is a conditional
// write: the WHERE clause carries the expected current state and a zero
// rows-affected count means another writer won the race. No in-process
// locking — multiple service instances may run concurrently and the
// database constraints are the only arbiter.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*SeatLock, error)
	FindByIdempotencyKey(ctx context.Context, key string) ([]SeatLock, error)
	FindActiveBySeats(ctx context.Context, tripID uuid.UUID, seatNos []string, now time.Time) ([]SeatLock, error)

	// InsertBatchExclusive atomically inserts the whole batch after demoting
	// lapsed HELD rows on the same seats. All-or-nothing: on any conflict no
	// rows are created and a *ConflictError (or errIdempotencyRace) comes back.
	InsertBatchExclusive(ctx context.Context, tripID uuid.UUID, batch []SeatLock, now time.Time) error

	// Renew extends expiry iff the lock is HELD, unexpired, owned by userID
	// and under the renewal cap. Returns false when the guard fails.
	Renew(ctx context.Context, id, userID uuid.UUID, newExpiresAt, now time.Time, maxRenewals int) (bool, error)

	// Transition is a compare-and-swap on status. Returns false if the lock
	// was not in the expected from status (first-writer-wins).
	Transition(ctx context.Context, id uuid.UUID, from, to LockStatus, now time.Time) (bool, error)

	// ConfirmAndBook finalizes a hold batch in one transaction: each lock
	// HELD→CONFIRMED (requires unexpired), TripSeat rows flipped to booked,
	// then CONFIRMED→RELEASED. Rolls back entirely on any guard failure.
	ConfirmAndBook(ctx context.Context, batch []SeatLock, now time.Time) error

	// Sweeper support
	FindLapsed(ctx context.Context, now time.Time, limit int) ([]SeatLock, error)
	MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db          *gorm.DB
	catalogRepo catalog.Repository
}

func NewRepository(db *gorm.DB, catalogRepo catalog.Repository) Repository {
	return &repository{db: db, catalogRepo: catalogRepo}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*SeatLock, error) {
	var lock SeatLock
	err := r.db.WithContext(ctx).First(&lock, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLockNotFound
		}
		return nil, err
	}
	return &lock, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) ([]SeatLock, error) {
	var lks []SeatLock
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		Order("seat_no ASC").
		Find(&lks).Error
	return lks, err
}

func (r *repository) FindActiveBySeats(ctx context.Context, tripID uuid.UUID, seatNos []string, now time.Time) ([]SeatLock, error) {
	var lks []SeatLock
	err := r.db.WithContext(ctx).
		Where("trip_id = ? AND seat_no IN ?", tripID, seatNos).
		Where("status = ? OR (status = ? AND expires_at > ?)", LockStatusConfirmed, LockStatusHeld, now).
		Find(&lks).Error
	return lks, err
}

func (r *repository) InsertBatchExclusive(ctx context.Context, tripID uuid.UUID, batch []SeatLock, now time.Time) error {
	seatNos := make([]string, 0, len(batch))
	for _, l := range batch {
		seatNos = append(seatNos, l.SeatNo)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lazy expiry: a lapsed HELD row must not block a new hold even if
		// the sweeper has not run yet. Demote in place so the partial unique
		// index no longer covers it.
		if err := tx.Model(&SeatLock{}).
			Where("trip_id = ? AND seat_no IN ? AND status = ? AND expires_at <= ?",
				tripID, seatNos, LockStatusHeld, now).
			Updates(map[string]interface{}{"status": LockStatusExpired, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("failed to demote lapsed locks: %w", err)
		}

		// Pre-check for active conflicts so the common contention case comes
		// back with the full unavailable list instead of an index error.
		var conflicts []SeatLock
		if err := tx.
			Where("trip_id = ? AND seat_no IN ?", tripID, seatNos).
			Where("status = ? OR (status = ? AND expires_at > ?)", LockStatusConfirmed, LockStatusHeld, now).
			Find(&conflicts).Error; err != nil {
			return fmt.Errorf("failed to check conflicting locks: %w", err)
		}
		if len(conflicts) > 0 {
			conflict := &ConflictError{}
			for _, c := range conflicts {
				conflict.Held = append(conflict.Held, c.SeatNo)
			}
			return conflict
		}

		if err := tx.Create(&batch).Error; err != nil {
			return r.translateInsertError(tx, err, tripID, seatNos, now)
		}

		// Booked re-check AFTER the insert, inside the transaction. The
		// insert serializes against an in-flight confirm on the same seat:
		// the confirm's CONFIRMED row blocks the unique-index insert until
		// that transaction commits, leaving the lock RELEASED and the seat
		// booked. Reading booked here therefore sees any confirm that beat
		// us, and rolling back turns the race into a seat conflict instead
		// of a granted hold on a dead seat.
		booked, err := r.catalogRepo.FindBooked(ctx, tx, tripID, seatNos)
		if err != nil {
			return fmt.Errorf("failed to re-check booked seats: %w", err)
		}
		if len(booked) > 0 {
			return &ConflictError{Booked: booked}
		}
		return nil
	})
}

// translateInsertError maps unique-index violations from the insert race
// window to the proper structured outcome. The pre-check above makes this
// rare; it fires only when two transactions interleave on the same seats.
func (r *repository) translateInsertError(tx *gorm.DB, err error, tripID uuid.UUID, seatNos []string, now time.Time) error {
	msg := err.Error()
	if strings.Contains(msg, "uniq_seat_locks_idem") {
		return errIdempotencyRace
	}
	if strings.Contains(msg, "uniq_active_seat_lock") || errors.Is(err, gorm.ErrDuplicatedKey) {
		var conflicts []SeatLock
		if ferr := tx.Session(&gorm.Session{NewDB: true}).
			Where("trip_id = ? AND seat_no IN ?", tripID, seatNos).
			Where("status = ? OR (status = ? AND expires_at > ?)", LockStatusConfirmed, LockStatusHeld, now).
			Find(&conflicts).Error; ferr == nil && len(conflicts) > 0 {
			conflict := &ConflictError{}
			for _, c := range conflicts {
				conflict.Held = append(conflict.Held, c.SeatNo)
			}
			return conflict
		}
		return &ConflictError{Held: seatNos}
	}
	return fmt.Errorf("failed to insert seat locks: %w", err)
}

func (r *repository) Renew(ctx context.Context, id, userID uuid.UUID, newExpiresAt, now time.Time, maxRenewals int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&SeatLock{}).
		Where("id = ? AND user_id = ? AND status = ? AND expires_at > ? AND renewal_count < ?",
			id, userID, LockStatusHeld, now, maxRenewals).
		Updates(map[string]interface{}{
			"expires_at":    newExpiresAt,
			"renewal_count": gorm.Expr("renewal_count + 1"),
			"updated_at":    now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, from, to LockStatus, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&SeatLock{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": now})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ConfirmAndBook(ctx context.Context, batch []SeatLock, now time.Time) error {
	if len(batch) == 0 {
		return ErrLockNotFound
	}
	tripID := batch[0].TripID

	ids := make([]uuid.UUID, 0, len(batch))
	seatNos := make([]string, 0, len(batch))
	for _, l := range batch {
		ids = append(ids, l.ID)
		seatNos = append(seatNos, l.SeatNo)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// HELD -> CONFIRMED, guarded on unexpired. Short count means a lock
		// lapsed or was finalized since the caller read it.
		confirm := tx.Model(&SeatLock{}).
			Where("id IN ? AND status = ? AND expires_at > ?", ids, LockStatusHeld, now).
			Updates(map[string]interface{}{"status": LockStatusConfirmed, "updated_at": now})
		if confirm.Error != nil {
			return confirm.Error
		}
		if confirm.RowsAffected != int64(len(ids)) {
			return ErrLockExpired
		}

		// Flip the durable ground truth. booked=false guard makes the flip
		// exactly-once; a short count means a seat was already booked while
		// we held an active lock on it, which the unique index should make
		// impossible.
		flipped, err := r.catalogRepo.MarkBooked(ctx, tx, tripID, seatNos)
		if err != nil {
			return fmt.Errorf("failed to mark seats booked: %w", err)
		}
		if flipped != int64(len(seatNos)) {
			return fmt.Errorf("%w: booked %d of %d seats on trip %s",
				ErrInvariantViolation, flipped, len(seatNos), tripID)
		}

		// CONFIRMED is a transient audit marker; the lock is spent once the
		// seats are booked.
		release := tx.Model(&SeatLock{}).
			Where("id IN ? AND status = ?", ids, LockStatusConfirmed).
			Updates(map[string]interface{}{"status": LockStatusReleased, "updated_at": now})
		return release.Error
	})
}

func (r *repository) FindLapsed(ctx context.Context, now time.Time, limit int) ([]SeatLock, error) {
	var lks []SeatLock
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", LockStatusHeld, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&lks).Error
	return lks, err
}

func (r *repository) MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return r.Transition(ctx, id, LockStatusHeld, LockStatusExpired, now)
}

func (r *repository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]LockStatus{LockStatusExpired, LockStatusReleased}, cutoff).
		Delete(&SeatLock{})
	return result.RowsAffected, result.Error
}
