package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	// Trip reads
	GetTripByID(ctx context.Context, id uuid.UUID) (*Trip, error)
	ListUpcomingTrips(ctx context.Context, limit, offset int) ([]Trip, error)

	// Seat map reads
	GetTripSeats(ctx context.Context, tripID uuid.UUID) ([]TripSeat, error)

	// FindBooked returns the subset of seatNos already permanently booked,
	// reading through tx when called inside another transaction.
	FindBooked(ctx context.Context, tx *gorm.DB, tripID uuid.UUID, seatNos []string) ([]string, error)

	// Permanent booking flip, used only by the booking finalizer. Returns the
	// number of rows flipped; the caller enforces it equals len(seatNos).
	MarkBooked(ctx context.Context, tx *gorm.DB, tripID uuid.UUID, seatNos []string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetTripByID(ctx context.Context, id uuid.UUID) (*Trip, error) {
	var trip Trip
	err := r.db.WithContext(ctx).Preload("Seats").First(&trip, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

func (r *repository) ListUpcomingTrips(ctx context.Context, limit, offset int) ([]Trip, error) {
	var trips []Trip
	err := r.db.WithContext(ctx).
		Where("departure_at > NOW()").
		Order("departure_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&trips).Error
	return trips, err
}

func (r *repository) GetTripSeats(ctx context.Context, tripID uuid.UUID) ([]TripSeat, error) {
	var seats []TripSeat
	err := r.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		Order("floor_no ASC, seat_no ASC").
		Find(&seats).Error
	return seats, err
}

func (r *repository) FindBooked(ctx context.Context, tx *gorm.DB, tripID uuid.UUID, seatNos []string) ([]string, error) {
	db := tx
	if db == nil {
		db = r.db
	}
	var booked []string
	err := db.WithContext(ctx).Model(&TripSeat{}).
		Where("trip_id = ? AND seat_no IN ? AND booked = true", tripID, seatNos).
		Pluck("seat_no", &booked).Error
	return booked, err
}

// MarkBooked runs inside the finalizer's transaction. The booked=false guard
// makes the flip exactly-once: a seat already booked is not matched, the
// affected count comes up short and the caller rolls the transaction back.
func (r *repository) MarkBooked(ctx context.Context, tx *gorm.DB, tripID uuid.UUID, seatNos []string) (int64, error) {
	db := tx
	if db == nil {
		db = r.db
	}
	result := db.WithContext(ctx).Model(&TripSeat{}).
		Where("trip_id = ? AND seat_no IN ? AND booked = false", tripID, seatNos).
		Update("booked", true)
	return result.RowsAffected, result.Error
}
