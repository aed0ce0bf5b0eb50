package constants

import (
	"fmt"
	"time"
)

// Redis cache keys and TTLs for the route service.
// Pattern: ridehub:{module}:{operation}:{identifier}

const CACHE_PREFIX = "ridehub"

// Seat state is polled by booking UIs, so TTLs are short: a stale entry may
// briefly show a seat as held after release, never the other way around
// (mutating operations invalidate on commit).
const (
	TTL_SEAT_STATUS   = 5 * time.Second
	TTL_TRIP_SEAT_MAP = 10 * time.Second
	TTL_TRIP_DETAIL   = 15 * time.Minute
)

const (
	CACHE_KEY_SEAT_STATUS   = CACHE_PREFIX + ":locks:status"  // + :trip:X:seat:Y
	CACHE_KEY_TRIP_SEAT_MAP = CACHE_PREFIX + ":trips:seatmap" // + :trip:X
	CACHE_KEY_TRIP_DETAIL   = CACHE_PREFIX + ":trips:detail"  // + :trip:X
)

// BuildSeatStatusKey builds the cache key for a single seat's status.
func BuildSeatStatusKey(tripID, seatNo string) string {
	return fmt.Sprintf("%s:trip:%s:seat:%s", CACHE_KEY_SEAT_STATUS, tripID, seatNo)
}

// BuildTripSeatMapKey builds the cache key for a trip's full seat map view.
func BuildTripSeatMapKey(tripID string) string {
	return fmt.Sprintf("%s:trip:%s", CACHE_KEY_TRIP_SEAT_MAP, tripID)
}

// BuildTripDetailKey builds the cache key for trip metadata.
func BuildTripDetailKey(tripID string) string {
	return fmt.Sprintf("%s:trip:%s", CACHE_KEY_TRIP_DETAIL, tripID)
}
