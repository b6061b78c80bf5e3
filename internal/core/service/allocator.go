package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/aircraft-assembly/internal/core/domain"
	"github.com/rl1809/aircraft-assembly/internal/metrics"
	"github.com/rl1809/aircraft-assembly/internal/port"
)

// AssemblyStore is the slice of the inventory store the allocator needs.
type AssemblyStore interface {
	GetPart(ctx context.Context, id string) (domain.Part, error)
	CommitAssembly(ctx context.Context, aircraft domain.Aircraft) error
}

type AssembleRequest struct {
	// RequestID is an optional client supplied idempotency key.
	RequestID    string
	Caller       domain.Caller
	AircraftType domain.AircraftType
	Selection    domain.Selection
}

// AssemblyAllocator validates a part selection against the catalog and
// current stock, then consumes every selected part and records the aircraft
// in one indivisible store step.
type AssemblyAllocator struct {
	store   AssemblyStore
	catalog port.Catalog
	authz   port.Authorizer
	idem    port.IdempotencyRepository
	logger  *zap.Logger

	now       func() time.Time
	newID     func() string
	newSerial func(prefix string) string
}

// NewAssemblyAllocator wires the allocator. idem may be nil, in which case
// request ids are ignored.
func NewAssemblyAllocator(store AssemblyStore, catalog port.Catalog, authz port.Authorizer, idem port.IdempotencyRepository, logger *zap.Logger) *AssemblyAllocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssemblyAllocator{
		store:     store,
		catalog:   catalog,
		authz:     authz,
		idem:      idem,
		logger:    logger,
		now:       time.Now,
		newID:     newID,
		newSerial: newSerial,
	}
}

func (a *AssemblyAllocator) Assemble(ctx context.Context, req AssembleRequest) (domain.Aircraft, error) {
	start := time.Now()
	aircraft, err := a.assemble(ctx, req)

	outcome := metrics.OutcomeCommitted
	if err != nil {
		outcome = "internal"
		if de, ok := domain.AsError(err); ok {
			outcome = string(de.Code)
		}
	}
	metrics.ObserveAssembly(req.AircraftType.String(), outcome, time.Since(start))
	return aircraft, err
}

func (a *AssemblyAllocator) assemble(ctx context.Context, req AssembleRequest) (aircraft domain.Aircraft, err error) {
	if err := a.authz.CanAssemble(req.Caller); err != nil {
		return domain.Aircraft{}, err
	}

	if req.RequestID != "" && a.idem != nil {
		key := fmt.Sprintf("assemble:%s:%s", req.Caller.Team, req.RequestID)
		ok, setErr := a.idem.SetIdempotency(ctx, key)
		if setErr != nil {
			return domain.Aircraft{}, fmt.Errorf("idempotency check failed: %w", setErr)
		}
		if !ok {
			return domain.Aircraft{}, &domain.Error{
				Code:   domain.CodeDuplicateRequest,
				Detail: fmt.Sprintf("request %s was already processed", req.RequestID),
			}
		}
		defer func() {
			if err == nil {
				return
			}
			if relErr := a.idem.ReleaseIdempotency(context.WithoutCancel(ctx), key); relErr != nil {
				a.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(relErr))
			}
		}()
	}

	if err := a.validate(ctx, req.AircraftType, req.Selection); err != nil {
		a.logger.Info("assembly rejected",
			zap.String("aircraft_type", req.AircraftType.String()),
			zap.String("team", req.Caller.Team),
			zap.Error(err))
		return domain.Aircraft{}, err
	}

	// Cancellation is honoured up to here. Once the commit starts it runs
	// to completion.
	if err := ctx.Err(); err != nil {
		return domain.Aircraft{}, err
	}

	aircraft = domain.Aircraft{
		ID:           a.newID(),
		AircraftType: req.AircraftType,
		Owner:        req.Caller.Team,
		CreatedAt:    a.now().UTC(),
		UsedParts:    req.Selection.Flatten(),
	}

	for attempt := 0; attempt < maxSerialAttempts; attempt++ {
		aircraft.SerialNumber = a.newSerial(aircraftSerialPrefix)
		err = a.store.CommitAssembly(ctx, aircraft)
		if !errors.Is(err, domain.ErrDuplicateSerial) {
			break
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrConflict):
		var partID string
		var conflict *domain.PartConflictError
		if errors.As(err, &conflict) {
			partID = conflict.PartID
		}
		a.logger.Info("assembly lost race",
			zap.String("aircraft_type", req.AircraftType.String()),
			zap.String("part_id", partID),
			zap.Error(err))
		return domain.Aircraft{}, domain.ConcurrentConflict(partID, err.Error())
	case errors.Is(err, domain.ErrDuplicateSerial):
		return domain.Aircraft{}, fmt.Errorf("assign aircraft serial after %d attempts: %w", maxSerialAttempts, err)
	default:
		a.logger.Error("assembly commit failed",
			zap.String("aircraft_type", req.AircraftType.String()),
			zap.Error(err))
		return domain.Aircraft{}, fmt.Errorf("commit assembly: %w", err)
	}

	a.logger.Info("aircraft assembled",
		zap.String("aircraft_id", aircraft.ID),
		zap.String("serial_number", aircraft.SerialNumber),
		zap.String("aircraft_type", aircraft.AircraftType.String()),
		zap.Int("parts", len(aircraft.UsedParts)))
	return aircraft, nil
}

// validate runs the schema, count, uniqueness and liveness checks in that
// order and returns the first failure.
func (a *AssemblyAllocator) validate(ctx context.Context, aircraftType domain.AircraftType, sel domain.Selection) error {
	required, err := a.catalog.RequirementsFor(aircraftType)
	if err != nil {
		return err
	}
	for t := range sel {
		if !t.Valid() {
			return domain.UnknownPartType(t)
		}
	}

	for _, t := range required.PartTypes() {
		if got := len(sel[t]); got != required[t] {
			return domain.CountMismatch(t, required[t], got)
		}
	}
	for _, t := range sel.PartTypes() {
		if _, ok := required[t]; !ok && len(sel[t]) > 0 {
			return domain.CountMismatch(t, 0, len(sel[t]))
		}
	}

	used := sel.Flatten()
	seen := make(map[string]struct{}, len(used))
	for _, u := range used {
		if _, dup := seen[u.PartID]; dup {
			return domain.DuplicatePart(u.PartID)
		}
		seen[u.PartID] = struct{}{}
	}

	for _, u := range used {
		part, err := a.store.GetPart(ctx, u.PartID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PartUnavailable(u.PartID, "part does not exist")
		}
		if err != nil {
			return fmt.Errorf("load part %s: %w", u.PartID, err)
		}
		if !part.Available() {
			return domain.PartUnavailable(u.PartID, fmt.Sprintf("consumed by aircraft %s", part.ConsumedBy))
		}
		if part.AircraftType != aircraftType {
			return domain.PartUnavailable(u.PartID, fmt.Sprintf("built for %s, not %s", part.AircraftType, aircraftType))
		}
		if part.Type != u.Type {
			return domain.PartTypeMismatch(u.PartID, u.Type, part.Type)
		}
	}
	return nil
}
