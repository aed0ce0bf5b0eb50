package locks

type HoldRequest struct {
	SeatNos []string `json:"seat_nos" binding:"required,min=1,dive,required"`
	// TTLSeconds of 0 means the server default. Out-of-range values are
	// rejected, not clamped.
	TTLSeconds     int    `json:"ttl_seconds"`
	IdempotencyKey string `json:"idempotency_key"`
}

type RenewRequest struct {
	// ExtensionSeconds of 0 means the server default. Bounded by the same
	// TTL range as a fresh hold; out-of-range values are rejected.
	ExtensionSeconds int `json:"extension_seconds"`
}
