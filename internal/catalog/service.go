package catalog

import (
	"context"
	"errors"
	"fmt"

	"ridehub/internal/shared/constants"
	"ridehub/pkg/cache"
	"ridehub/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service is the read-only seat catalog consumed by the reservation engine:
// which seats exist on a trip and which are already permanently booked.
type Service interface {
	GetTrip(ctx context.Context, tripID string) (*Trip, error)
	ListUpcomingTrips(ctx context.Context, limit, offset int) ([]TripResponse, error)

	// Engine collaborator surface
	GetSeatNumbers(ctx context.Context, tripID uuid.UUID) (map[string]SeatDescriptor, error)
	IsBooked(ctx context.Context, tripID uuid.UUID, seatNo string) (bool, error)
	BookedSeats(ctx context.Context, tripID uuid.UUID, seatNos []string) ([]string, error)
}

type service struct {
	repo         Repository
	cacheService cache.Service
}

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

func (s *service) GetTrip(ctx context.Context, tripID string) (*Trip, error) {
	id, err := uuid.Parse(tripID)
	if err != nil {
		return nil, fmt.Errorf("invalid trip ID: %w", err)
	}

	// Trip details (route, times, seat layout) are immutable after
	// scheduling, so they get the long detail TTL.
	cacheKey := constants.BuildTripDetailKey(id.String())
	if s.cacheService != nil {
		var cached Trip
		if err := s.cacheService.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	trip, err := s.repo.GetTripByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("trip not found")
		}
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	if s.cacheService != nil {
		if err := s.cacheService.Set(ctx, cacheKey, trip, constants.TTL_TRIP_DETAIL); err != nil {
			logger.GetDefault().Debug("failed to cache trip detail", "error", err)
		}
	}
	return trip, nil
}

func (s *service) ListUpcomingTrips(ctx context.Context, limit, offset int) ([]TripResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	trips, err := s.repo.ListUpcomingTrips(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}

	responses := make([]TripResponse, 0, len(trips))
	for i := range trips {
		responses = append(responses, trips[i].ToResponse())
	}
	return responses, nil
}

// GetSeatNumbers enumerates the valid seat numbers for a trip. The seat map
// is immutable once the trip is scheduled, so it is safe to cache briefly.
func (s *service) GetSeatNumbers(ctx context.Context, tripID uuid.UUID) (map[string]SeatDescriptor, error) {
	var seats []TripSeat

	cacheKey := constants.BuildTripSeatMapKey(tripID.String())
	if s.cacheService != nil {
		if err := s.cacheService.Get(ctx, cacheKey, &seats); err == nil {
			return seatMapFrom(tripID, seats), nil
		}
	}

	seats, err := s.repo.GetTripSeats(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip seats: %w", err)
	}
	// An unknown trip yields an empty map; callers decide whether that is an
	// error. Do not cache it, the trip may simply not be seeded yet.
	if len(seats) == 0 {
		return map[string]SeatDescriptor{}, nil
	}

	if s.cacheService != nil {
		if err := s.cacheService.Set(ctx, cacheKey, seats, constants.TTL_TRIP_SEAT_MAP); err != nil {
			logger.GetDefault().Debug("failed to cache trip seat map", "error", err)
		}
	}

	return seatMapFrom(tripID, seats), nil
}

func seatMapFrom(tripID uuid.UUID, seats []TripSeat) map[string]SeatDescriptor {
	m := make(map[string]SeatDescriptor, len(seats))
	for _, seat := range seats {
		m[seat.SeatNo] = SeatDescriptor{TripID: tripID, SeatNo: seat.SeatNo, FloorNo: seat.FloorNo}
	}
	return m
}

func (s *service) IsBooked(ctx context.Context, tripID uuid.UUID, seatNo string) (bool, error) {
	booked, err := s.BookedSeats(ctx, tripID, []string{seatNo})
	if err != nil {
		return false, err
	}
	return len(booked) > 0, nil
}

// BookedSeats returns the subset of seatNos already permanently booked.
// Always read fresh: the booked flag is on the hold critical path.
func (s *service) BookedSeats(ctx context.Context, tripID uuid.UUID, seatNos []string) ([]string, error) {
	booked, err := s.repo.FindBooked(ctx, nil, tripID, seatNos)
	if err != nil {
		return nil, fmt.Errorf("failed to check booked seats: %w", err)
	}
	return booked, nil
}
