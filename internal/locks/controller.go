package locks

import (
	"errors"
	"net/http"

	"ridehub/internal/shared/middleware"
	"ridehub/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// Hold handles POST /trips/:tripId/locks
func (c *Controller) Hold(ctx *gin.Context) {
	tripID, err := uuid.Parse(ctx.Param("tripId"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid trip ID", nil, err.Error())
		return
	}
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Authentication required", nil, nil)
		return
	}

	var req HoldRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request payload", nil, err.Error())
		return
	}
	// Header wins over body so proxies can inject retry-safe keys.
	if key := ctx.GetHeader("X-Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	resp, err := c.service.Hold(ctx.Request.Context(), tripID, userID, &req)
	if err != nil {
		respondLockError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusCreated, "Seats held", resp, nil)
}

// Renew handles POST /locks/:lockId/renew
func (c *Controller) Renew(ctx *gin.Context) {
	lockID, userID, ok := lockCallContext(ctx)
	if !ok {
		return
	}
	var req RenewRequest
	if ctx.Request.Body != nil && ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid renew request", nil, err.Error())
			return
		}
	}
	resp, err := c.service.Renew(ctx.Request.Context(), lockID, userID, &req)
	if err != nil {
		respondLockError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Lock renewed", resp, nil)
}

// Release handles DELETE /locks/:lockId
func (c *Controller) Release(ctx *gin.Context) {
	lockID, userID, ok := lockCallContext(ctx)
	if !ok {
		return
	}
	if err := c.service.Release(ctx.Request.Context(), lockID, userID); err != nil {
		respondLockError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Lock released", nil, nil)
}

// Confirm handles POST /locks/:lockId/confirm
func (c *Controller) Confirm(ctx *gin.Context) {
	lockID, userID, ok := lockCallContext(ctx)
	if !ok {
		return
	}
	resp, err := c.service.Confirm(ctx.Request.Context(), lockID, userID)
	if err != nil {
		respondLockError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Booking confirmed", resp, nil)
}

// Abort handles POST /locks/:lockId/abort
func (c *Controller) Abort(ctx *gin.Context) {
	lockID, userID, ok := lockCallContext(ctx)
	if !ok {
		return
	}
	if err := c.service.Abort(ctx.Request.Context(), lockID, userID); err != nil {
		respondLockError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Lock aborted", nil, nil)
}

// GetSeatStatus handles GET /trips/:tripId/seats/:seatNo
func (c *Controller) GetSeatStatus(ctx *gin.Context) {
	tripID, err := uuid.Parse(ctx.Param("tripId"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid trip ID", nil, err.Error())
		return
	}
	resp, err := c.service.GetSeatStatus(ctx.Request.Context(), tripID, ctx.Param("seatNo"))
	if err != nil {
		respondLockError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Seat status retrieved", resp, nil)
}

// GetTripSeatMap handles GET /trips/:tripId/seats
func (c *Controller) GetTripSeatMap(ctx *gin.Context) {
	tripID, err := uuid.Parse(ctx.Param("tripId"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid trip ID", nil, err.Error())
		return
	}
	resp, err := c.service.GetTripSeatMap(ctx.Request.Context(), tripID)
	if err != nil {
		respondLockError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Seat map retrieved", resp, nil)
}

func lockCallContext(ctx *gin.Context) (lockID, userID uuid.UUID, ok bool) {
	lockID, err := uuid.Parse(ctx.Param("lockId"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid lock ID", nil, err.Error())
		return uuid.Nil, uuid.Nil, false
	}
	userID, found := middleware.CurrentUserID(ctx)
	if !found {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Authentication required", nil, nil)
		return uuid.Nil, uuid.Nil, false
	}
	return lockID, userID, true
}

// respondLockError maps domain errors to HTTP. Seat contention is a normal
// outcome and never surfaces as a 5xx.
func respondLockError(ctx *gin.Context, err error) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		response.RespondJSON(ctx, "error", http.StatusConflict, "Seats unavailable", nil, ConflictResponse{
			Unavailable: conflict.Unavailable(),
			Held:        conflict.Held,
			Booked:      conflict.Booked,
			Unknown:     conflict.Unknown,
		})
		return
	}

	switch {
	case errors.Is(err, ErrNoSeatsRequested),
		errors.Is(err, ErrDuplicateSeats),
		errors.Is(err, ErrInvalidTTL):
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid hold request", nil, err.Error())
	case errors.Is(err, ErrTripNotFound),
		errors.Is(err, ErrSeatUnknown),
		errors.Is(err, ErrLockNotFound):
		response.RespondJSON(ctx, "error", http.StatusNotFound, "Resource not found", nil, err.Error())
	case errors.Is(err, ErrLockNotOwned),
		errors.Is(err, ErrRenewalDisabled):
		response.RespondJSON(ctx, "error", http.StatusForbidden, "Operation not permitted", nil, err.Error())
	case errors.Is(err, ErrLockExpired):
		response.RespondJSON(ctx, "error", http.StatusGone, "Lock has expired", nil, err.Error())
	case errors.Is(err, ErrLockAlreadyFinalized),
		errors.Is(err, ErrRenewalLimitExceeded):
		response.RespondJSON(ctx, "error", http.StatusConflict, "Lock state conflict", nil, err.Error())
	default:
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Internal server error", nil, err.Error())
	}
}
