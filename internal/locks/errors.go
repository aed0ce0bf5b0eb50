package locks

import (
	"errors"
	"fmt"
)

// Expected outcomes of the reservation flow. These are structured results,
// not failures: controllers map them to 4xx responses and callers decide
// whether to pick other seats, re-hold, or give up. Only storage faults and
// invariant violations surface as 5xx.
var (
	// Contention: user-recoverable, never retried automatically.
	ErrSeatAlreadyHeld   = errors.New("seat is held by another lock")
	ErrSeatAlreadyBooked = errors.New("seat is already booked")

	// Policy violations: caller error.
	ErrSeatUnknown          = errors.New("seat not in trip's seat map")
	ErrDuplicateSeats       = errors.New("duplicate seat numbers in request")
	ErrNoSeatsRequested     = errors.New("no seats requested")
	ErrInvalidTTL           = errors.New("requested TTL outside allowed bounds")
	ErrRenewalLimitExceeded = errors.New("renewal limit exceeded")
	ErrRenewalDisabled      = errors.New("lock renewal is disabled")
	ErrLockNotOwned         = errors.New("lock is owned by another user")

	// Expiry races: caller must re-hold rather than retry the same call.
	ErrLockExpired          = errors.New("lock has expired")
	ErrLockAlreadyFinalized = errors.New("lock is already in a terminal state")

	ErrLockNotFound = errors.New("lock not found")
	ErrTripNotFound = errors.New("trip not found")

	// ErrInvariantViolation means the storage layer let two active locks
	// coexist on one seat, or a booked flip matched fewer rows than locks
	// confirmed. Unreachable with the conditional writes in place; treated
	// as fatal for the operation and logged loudly.
	ErrInvariantViolation = errors.New("seat lock invariant violation")
)

// ConflictError reports which requested seats were unavailable and why.
// Returned by Hold with no locks created (all-or-nothing).
type ConflictError struct {
	Held    []string // seats with an active lock owned by someone else
	Booked  []string // seats already permanently booked
	Unknown []string // seats not present in the trip's seat map
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("seats unavailable: held=%v booked=%v unknown=%v", e.Held, e.Booked, e.Unknown)
}

// Unavailable returns every conflicting seat number.
func (e *ConflictError) Unavailable() []string {
	out := make([]string, 0, len(e.Held)+len(e.Booked)+len(e.Unknown))
	out = append(out, e.Held...)
	out = append(out, e.Booked...)
	out = append(out, e.Unknown...)
	return out
}

// HasConflicts reports whether any seat was unavailable.
func (e *ConflictError) HasConflicts() bool {
	return len(e.Held)+len(e.Booked)+len(e.Unknown) > 0
}
