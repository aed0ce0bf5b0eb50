package locks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ridehub/internal/catalog"
	"ridehub/internal/notifications"
	"ridehub/internal/shared/config"
	"ridehub/internal/shared/constants"
	"ridehub/pkg/cache"
	"ridehub/pkg/logger"

	"github.com/google/uuid"
)

// SeatCatalog is the slice of the catalog service the reservation engine
// needs. Satisfied by catalog.Service.
type SeatCatalog interface {
	GetSeatNumbers(ctx context.Context, tripID uuid.UUID) (map[string]catalog.SeatDescriptor, error)
	BookedSeats(ctx context.Context, tripID uuid.UUID, seatNos []string) ([]string, error)
	IsBooked(ctx context.Context, tripID uuid.UUID, seatNo string) (bool, error)
}

type Service interface {
	Hold(ctx context.Context, tripID, userID uuid.UUID, req *HoldRequest) (*HoldResponse, error)
	Renew(ctx context.Context, lockID, userID uuid.UUID, req *RenewRequest) (*RenewResponse, error)
	Release(ctx context.Context, lockID, userID uuid.UUID) error
	Abort(ctx context.Context, lockID, userID uuid.UUID) error
	Confirm(ctx context.Context, lockID, userID uuid.UUID) (*LockResponse, error)
	GetSeatStatus(ctx context.Context, tripID uuid.UUID, seatNo string) (*SeatStatusResponse, error)
	GetTripSeatMap(ctx context.Context, tripID uuid.UUID) (*SeatMapResponse, error)
}

type service struct {
	repo         Repository
	catalog      SeatCatalog
	producer     notifications.AvailabilityProducer
	cacheService cache.Service
	cfg          *config.Config
	appLogger    *logger.Logger

	// now is injectable so expiry behavior is testable without sleeping.
	now func() time.Time
}

func NewService(repo Repository, seatCatalog SeatCatalog, producer notifications.AvailabilityProducer, cfg *config.Config) *service {
	return &service{
		repo:      repo,
		catalog:   seatCatalog,
		producer:  producer,
		cfg:       cfg,
		appLogger: logger.GetDefault(),
		now:       time.Now,
	}
}

func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

func (s *service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *service) Hold(ctx context.Context, tripID, userID uuid.UUID, req *HoldRequest) (*HoldResponse, error) {
	if len(req.SeatNos) == 0 {
		return nil, ErrNoSeatsRequested
	}
	seen := make(map[string]struct{}, len(req.SeatNos))
	for _, seatNo := range req.SeatNos {
		if _, dup := seen[seatNo]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSeats, seatNo)
		}
		seen[seatNo] = struct{}{}
	}

	ttl, err := s.resolveTTL(req.TTLSeconds)
	if err != nil {
		return nil, err
	}

	idemKey := req.IdempotencyKey
	if idemKey == "" {
		idemKey = uuid.NewString()
	} else {
		// Replay fast path: a retry with a known key gets the original
		// outcome back without touching the seats again.
		existing, err := s.repo.FindByIdempotencyKey(ctx, idemKey)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return s.replayHold(existing, userID, idemKey)
		}
	}

	seatMap, err := s.catalog.GetSeatNumbers(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if len(seatMap) == 0 {
		return nil, ErrTripNotFound
	}

	conflict := &ConflictError{}
	for _, seatNo := range req.SeatNos {
		if _, ok := seatMap[seatNo]; !ok {
			conflict.Unknown = append(conflict.Unknown, seatNo)
		}
	}
	booked, err := s.catalog.BookedSeats(ctx, tripID, req.SeatNos)
	if err != nil {
		return nil, err
	}
	conflict.Booked = booked
	if conflict.HasConflicts() {
		s.appLogger.LogHoldConflict(ctx, tripID.String(), userID.String(), conflict.Held, conflict.Booked)
		return nil, conflict
	}

	now := s.now()
	expiresAt := now.Add(ttl)
	batch := make([]SeatLock, 0, len(req.SeatNos))
	for _, seatNo := range req.SeatNos {
		desc := seatMap[seatNo]
		batch = append(batch, SeatLock{
			ID:             uuid.New(),
			TripID:         tripID,
			SeatNo:         seatNo,
			FloorNo:        desc.FloorNo,
			UserID:         userID,
			Status:         LockStatusHeld,
			ExpiresAt:      expiresAt,
			IdempotencyKey: idemKey,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	if err := s.repo.InsertBatchExclusive(ctx, tripID, batch, now); err != nil {
		if errors.Is(err, errIdempotencyRace) {
			existing, rerr := s.repo.FindByIdempotencyKey(ctx, idemKey)
			if rerr != nil || len(existing) == 0 {
				return nil, fmt.Errorf("failed to replay hold after race: %w", err)
			}
			return s.replayHold(existing, userID, idemKey)
		}
		var ce *ConflictError
		if errors.As(err, &ce) {
			s.appLogger.LogHoldConflict(ctx, tripID.String(), userID.String(), ce.Held, ce.Booked)
			return nil, ce
		}
		return nil, err
	}

	for _, seatNo := range req.SeatNos {
		s.producer.EmitSeatAvailabilityChanged(ctx, tripID, seatNo, notifications.SeatStateHeld)
	}
	s.invalidateSeatStatus(ctx, tripID, req.SeatNos)
	s.appLogger.LogLocksAcquired(ctx, tripID.String(), userID.String(), req.SeatNos, expiresAt)

	return buildHoldResponse(batch, idemKey), nil
}

// replayHold turns a previously stored batch back into the response the
// original request produced. Only the original holder may replay a key.
func (s *service) replayHold(batch []SeatLock, userID uuid.UUID, idemKey string) (*HoldResponse, error) {
	if batch[0].UserID != userID {
		return nil, ErrLockNotOwned
	}
	return buildHoldResponse(batch, idemKey), nil
}

func buildHoldResponse(batch []SeatLock, idemKey string) *HoldResponse {
	resp := &HoldResponse{
		TripID:         batch[0].TripID.String(),
		UserID:         batch[0].UserID.String(),
		ExpiresAt:      batch[0].ExpiresAt,
		IdempotencyKey: idemKey,
	}
	for _, l := range batch {
		resp.Locks = append(resp.Locks, LockHandle{
			LockID:  l.ID.String(),
			SeatNo:  l.SeatNo,
			FloorNo: l.FloorNo,
		})
	}
	return resp
}

func (s *service) resolveTTL(ttlSeconds int) (time.Duration, error) {
	if ttlSeconds == 0 {
		return s.cfg.Locks.TTLDefault, nil
	}
	ttl := time.Duration(ttlSeconds) * time.Second
	if ttl < s.cfg.Locks.TTLMin || ttl > s.cfg.Locks.TTLMax {
		return 0, fmt.Errorf("%w: %s not in [%s, %s]", ErrInvalidTTL, ttl, s.cfg.Locks.TTLMin, s.cfg.Locks.TTLMax)
	}
	return ttl, nil
}

func (s *service) Renew(ctx context.Context, lockID, userID uuid.UUID, req *RenewRequest) (*RenewResponse, error) {
	if !s.cfg.Locks.RenewalEnabled {
		return nil, ErrRenewalDisabled
	}

	// The extension is measured from now, not from the current expiry, so a
	// renewal can never push a lock further out than a fresh hold could.
	extensionSeconds := 0
	if req != nil {
		extensionSeconds = req.ExtensionSeconds
	}
	extension, err := s.resolveTTL(extensionSeconds)
	if err != nil {
		return nil, err
	}

	now := s.now()
	newExpiresAt := now.Add(extension)
	ok, err := s.repo.Renew(ctx, lockID, userID, newExpiresAt, now, s.cfg.Locks.MaxRenewals)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.explainRenewFailure(ctx, lockID, userID, now)
	}

	lock, err := s.repo.GetByID(ctx, lockID)
	if err != nil {
		return nil, err
	}
	s.invalidateSeatStatus(ctx, lock.TripID, []string{lock.SeatNo})
	return &RenewResponse{
		LockID:       lock.ID.String(),
		ExpiresAt:    lock.ExpiresAt,
		RenewalCount: lock.RenewalCount,
	}, nil
}

// explainRenewFailure re-reads the lock to turn a failed CAS into the
// specific refusal the caller can act on.
func (s *service) explainRenewFailure(ctx context.Context, lockID, userID uuid.UUID, now time.Time) error {
	lock, err := s.repo.GetByID(ctx, lockID)
	if err != nil {
		return err
	}
	switch {
	case lock.UserID != userID:
		return ErrLockNotOwned
	case lock.Status.IsTerminal():
		return ErrLockAlreadyFinalized
	case lock.IsLapsed(now):
		s.reclaimLapsed(ctx, lock, now)
		return ErrLockExpired
	case lock.RenewalCount >= s.cfg.Locks.MaxRenewals:
		return ErrRenewalLimitExceeded
	default:
		return ErrLockExpired
	}
}

func (s *service) Release(ctx context.Context, lockID, userID uuid.UUID) error {
	return s.terminate(ctx, lockID, userID, "released")
}

// Abort is Release under a different name so payment-failure flows read as
// what they are in handlers and logs.
func (s *service) Abort(ctx context.Context, lockID, userID uuid.UUID) error {
	return s.terminate(ctx, lockID, userID, "aborted")
}

func (s *service) terminate(ctx context.Context, lockID, userID uuid.UUID, reason string) error {
	lock, err := s.repo.GetByID(ctx, lockID)
	if err != nil {
		return err
	}
	if lock.UserID != userID {
		return ErrLockNotOwned
	}
	// Releasing a spent lock is a no-op so client retries always succeed.
	if lock.Status.IsTerminal() {
		return nil
	}

	now := s.now()
	ok, err := s.repo.Transition(ctx, lockID, LockStatusHeld, LockStatusReleased, now)
	if err != nil {
		return err
	}
	if !ok {
		// Lost a race with confirm or the sweeper; both leave the lock
		// terminal, which is what the caller asked for.
		return nil
	}

	s.producer.EmitSeatAvailabilityChanged(ctx, lock.TripID, lock.SeatNo, notifications.SeatStateAvailable)
	s.invalidateSeatStatus(ctx, lock.TripID, []string{lock.SeatNo})
	s.appLogger.InfoWithContext(ctx, "seat lock "+reason, map[string]interface{}{
		"lock_id": lockID.String(),
		"trip_id": lock.TripID.String(),
		"seat_no": lock.SeatNo,
	})
	return nil
}

func (s *service) Confirm(ctx context.Context, lockID, userID uuid.UUID) (*LockResponse, error) {
	lock, err := s.repo.GetByID(ctx, lockID)
	if err != nil {
		return nil, err
	}
	if lock.UserID != userID {
		return nil, ErrLockNotOwned
	}
	if lock.Status.IsTerminal() {
		return nil, ErrLockAlreadyFinalized
	}

	now := s.now()
	if lock.IsLapsed(now) {
		s.reclaimLapsed(ctx, lock, now)
		return nil, ErrLockExpired
	}

	if err := s.repo.ConfirmAndBook(ctx, []SeatLock{*lock}, now); err != nil {
		if errors.Is(err, ErrInvariantViolation) {
			s.appLogger.LogInvariantViolation(ctx, "confirm rolled back", err)
		}
		return nil, err
	}

	s.producer.EmitSeatAvailabilityChanged(ctx, lock.TripID, lock.SeatNo, notifications.SeatStateBooked)
	s.invalidateSeatStatus(ctx, lock.TripID, []string{lock.SeatNo})
	s.appLogger.LogLockFinalized(ctx, lockID.String(), lock.TripID.String(), userID.String())

	resp := lock.ToResponse()
	resp.Status = string(LockStatusConfirmed)
	return resp, nil
}

// reclaimLapsed demotes a lapsed HELD lock found in the request path so the
// seat frees up immediately instead of waiting for the sweeper.
func (s *service) reclaimLapsed(ctx context.Context, lock *SeatLock, now time.Time) {
	ok, err := s.repo.MarkExpired(ctx, lock.ID, now)
	if err != nil || !ok {
		return
	}
	s.producer.EmitSeatAvailabilityChanged(ctx, lock.TripID, lock.SeatNo, notifications.SeatStateAvailable)
	s.invalidateSeatStatus(ctx, lock.TripID, []string{lock.SeatNo})
}

func (s *service) GetSeatStatus(ctx context.Context, tripID uuid.UUID, seatNo string) (*SeatStatusResponse, error) {
	cacheKey := constants.BuildSeatStatusKey(tripID.String(), seatNo)
	if s.cacheService != nil {
		var cached SeatStatusResponse
		if err := s.cacheService.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	seatMap, err := s.catalog.GetSeatNumbers(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if len(seatMap) == 0 {
		return nil, ErrTripNotFound
	}
	desc, ok := seatMap[seatNo]
	if !ok {
		return nil, ErrSeatUnknown
	}

	status := &SeatStatusResponse{
		TripID:  tripID.String(),
		SeatNo:  seatNo,
		FloorNo: desc.FloorNo,
		State:   SeatStateAvailable,
	}

	booked, err := s.catalog.IsBooked(ctx, tripID, seatNo)
	if err != nil {
		return nil, err
	}
	if booked {
		status.State = SeatStateBooked
	} else {
		active, err := s.repo.FindActiveBySeats(ctx, tripID, []string{seatNo}, s.now())
		if err != nil {
			return nil, err
		}
		if len(active) > 0 {
			if active[0].Status == LockStatusConfirmed {
				status.State = SeatStateBooked
			} else {
				status.State = SeatStateHeld
				heldUntil := active[0].ExpiresAt
				status.HeldUntil = &heldUntil
			}
		}
	}

	if s.cacheService != nil {
		_ = s.cacheService.Set(ctx, cacheKey, status, constants.TTL_SEAT_STATUS)
	}
	return status, nil
}

func (s *service) GetTripSeatMap(ctx context.Context, tripID uuid.UUID) (*SeatMapResponse, error) {
	seatMap, err := s.catalog.GetSeatNumbers(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if len(seatMap) == 0 {
		return nil, ErrTripNotFound
	}

	seatNos := make([]string, 0, len(seatMap))
	for seatNo := range seatMap {
		seatNos = append(seatNos, seatNo)
	}

	bookedList, err := s.catalog.BookedSeats(ctx, tripID, seatNos)
	if err != nil {
		return nil, err
	}
	bookedSet := make(map[string]struct{}, len(bookedList))
	for _, seatNo := range bookedList {
		bookedSet[seatNo] = struct{}{}
	}

	active, err := s.repo.FindActiveBySeats(ctx, tripID, seatNos, s.now())
	if err != nil {
		return nil, err
	}
	heldUntil := make(map[string]time.Time, len(active))
	confirmed := make(map[string]struct{})
	for _, l := range active {
		if l.Status == LockStatusConfirmed {
			confirmed[l.SeatNo] = struct{}{}
		} else {
			heldUntil[l.SeatNo] = l.ExpiresAt
		}
	}

	resp := &SeatMapResponse{TripID: tripID.String()}
	for _, seatNo := range seatNos {
		desc := seatMap[seatNo]
		seat := SeatStatusResponse{
			TripID:  tripID.String(),
			SeatNo:  seatNo,
			FloorNo: desc.FloorNo,
			State:   SeatStateAvailable,
		}
		if _, ok := bookedSet[seatNo]; ok {
			seat.State = SeatStateBooked
		} else if _, ok := confirmed[seatNo]; ok {
			seat.State = SeatStateBooked
		} else if until, ok := heldUntil[seatNo]; ok {
			seat.State = SeatStateHeld
			u := until
			seat.HeldUntil = &u
		}
		resp.Seats = append(resp.Seats, seat)
	}
	sort.Slice(resp.Seats, func(i, j int) bool {
		if resp.Seats[i].FloorNo != resp.Seats[j].FloorNo {
			return resp.Seats[i].FloorNo < resp.Seats[j].FloorNo
		}
		return resp.Seats[i].SeatNo < resp.Seats[j].SeatNo
	})
	return resp, nil
}

func (s *service) invalidateSeatStatus(ctx context.Context, tripID uuid.UUID, seatNos []string) {
	if s.cacheService == nil {
		return
	}
	for _, seatNo := range seatNos {
		_ = s.cacheService.Delete(ctx, constants.BuildSeatStatusKey(tripID.String(), seatNo))
	}
}
