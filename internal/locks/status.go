package locks

// LockStatus is the lifecycle state of a SeatLock.
//
//	          Hold()              Confirm()
//	 [none] ----------> HELD ----------------> CONFIRMED -> RELEASED
//	                      |  \
//	           Release()  |   \ expiresAt passed
//	                      v    v
//	                  RELEASED EXPIRED
//
// CONFIRMED, EXPIRED and RELEASED are terminal for a lock instance; a new
// hold attempt creates a new row rather than resurrecting one. Whichever of
// Confirm/Release/expiry commits its transition first wins; later attempts
// observe a terminal status.
type LockStatus string

const (
	LockStatusHeld      LockStatus = "HELD"
	LockStatusExpired   LockStatus = "EXPIRED"
	LockStatusConfirmed LockStatus = "CONFIRMED"
	LockStatusReleased  LockStatus = "RELEASED"
)

// IsTerminal reports whether no further transition is permitted.
func (s LockStatus) IsTerminal() bool {
	switch s {
	case LockStatusExpired, LockStatusConfirmed, LockStatusReleased:
		return true
	}
	return false
}

// SeatState is the effective, user-facing state of one seat.
type SeatState string

const (
	SeatStateAvailable SeatState = "AVAILABLE"
	SeatStateHeld      SeatState = "HELD"
	SeatStateBooked    SeatState = "BOOKED"
)
