package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Trip identifies a scheduled vehicle run. Trips and their seat layouts are
// owned by trip scheduling; this service reads them and never mutates
// anything except TripSeat.Booked (via the booking finalizer).
type Trip struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RouteCode   string    `gorm:"type:varchar(32);not null;index" json:"route_code"`
	VehiclePlate string   `gorm:"type:varchar(16)" json:"vehicle_plate"`
	Origin      string    `gorm:"type:varchar(120);not null" json:"origin"`
	Destination string    `gorm:"type:varchar(120);not null" json:"destination"`
	DepartureAt time.Time `gorm:"not null;index" json:"departure_at"`
	ArrivalAt   time.Time `json:"arrival_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relationships
	Seats []TripSeat `json:"seats,omitempty" gorm:"foreignKey:TripID;constraint:OnDelete:CASCADE;"`
}

// TripSeat is the permanent booking record for one sellable seat on a trip.
// Booked flips false→true exactly once, by the booking finalizer; it is the
// durable ground truth that outlives any lock.
type TripSeat struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TripID    uuid.UUID `gorm:"type:uuid;index;not null;uniqueIndex:idx_trip_seat" json:"trip_id"`
	SeatNo    string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_trip_seat" json:"seat_no"`
	FloorNo   int       `gorm:"not null;default:1" json:"floor_no"`
	Booked    bool      `gorm:"not null;default:false" json:"booked"`
	Price     float64   `gorm:"not null;default:0" json:"price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the table name for Trip
func (Trip) TableName() string {
	return "trips"
}

// TableName sets the table name for TripSeat
func (TripSeat) TableName() string {
	return "trip_seats"
}

// SeatDescriptor identifies one sellable unit. Derived, not persisted.
type SeatDescriptor struct {
	TripID  uuid.UUID `json:"trip_id"`
	SeatNo  string    `json:"seat_no"`
	FloorNo int       `json:"floor_no"`
}

// TripResponse for API responses
type TripResponse struct {
	ID          string    `json:"id"`
	RouteCode   string    `json:"route_code"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	DepartureAt time.Time `json:"departure_at"`
	ArrivalAt   time.Time `json:"arrival_at"`
	SeatCount   int       `json:"seat_count"`
}

func (t *Trip) ToResponse() TripResponse {
	return TripResponse{
		ID:          t.ID.String(),
		RouteCode:   t.RouteCode,
		Origin:      t.Origin,
		Destination: t.Destination,
		DepartureAt: t.DepartureAt,
		ArrivalAt:   t.ArrivalAt,
		SeatCount:   len(t.Seats),
	}
}
