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

type CreatePartRequest struct {
	Caller       domain.Caller
	Type         domain.PartType
	AircraftType domain.AircraftType
}

// InventoryService manages the part lifecycle outside of assembly:
// production, lookup and recycling.
type InventoryService struct {
	parts   port.PartRepository
	catalog port.Catalog
	authz   port.Authorizer
	logger  *zap.Logger

	now       func() time.Time
	newID     func() string
	newSerial func(prefix string) string
}

func NewInventoryService(parts port.PartRepository, catalog port.Catalog, authz port.Authorizer, logger *zap.Logger) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{
		parts:     parts,
		catalog:   catalog,
		authz:     authz,
		logger:    logger,
		now:       time.Now,
		newID:     newID,
		newSerial: newSerial,
	}
}

func (s *InventoryService) CreatePart(ctx context.Context, req CreatePartRequest) (domain.Part, error) {
	if !req.Type.Valid() {
		return domain.Part{}, domain.UnknownPartType(req.Type)
	}
	required, err := s.catalog.RequirementsFor(req.AircraftType)
	if err != nil {
		return domain.Part{}, err
	}
	if _, ok := required[req.Type]; !ok {
		return domain.Part{}, domain.InvalidArgument(fmt.Sprintf("%s does not use %s parts", req.AircraftType, req.Type))
	}
	if err := s.authz.CanCreatePart(req.Caller, req.Type); err != nil {
		return domain.Part{}, err
	}

	part := domain.Part{
		ID:           s.newID(),
		Type:         req.Type,
		AircraftType: req.AircraftType,
		Owner:        req.Caller.Team,
		State:        domain.PartStateAvailable,
		CreatedAt:    s.now().UTC(),
	}

	for attempt := 0; attempt < maxSerialAttempts; attempt++ {
		part.SerialNumber = s.newSerial(partSerialPrefix)
		err = s.parts.CreatePart(ctx, part)
		if !errors.Is(err, domain.ErrDuplicateSerial) {
			break
		}
	}
	if err != nil {
		return domain.Part{}, fmt.Errorf("create part: %w", err)
	}

	metrics.PartsCreatedTotal.WithLabelValues(part.AircraftType.String(), part.Type.String()).Inc()
	s.logger.Info("part created",
		zap.String("part_id", part.ID),
		zap.String("serial_number", part.SerialNumber),
		zap.String("part_type", part.Type.String()),
		zap.String("aircraft_type", part.AircraftType.String()),
		zap.String("team", part.Owner))
	return part, nil
}

func (s *InventoryService) GetPart(ctx context.Context, id string) (domain.Part, error) {
	return s.parts.GetPart(ctx, id)
}

func (s *InventoryService) ListParts(ctx context.Context, filter domain.PartFilter, page domain.PageRequest) (domain.Page[domain.Part], error) {
	return s.parts.ListParts(ctx, filter, page.Normalize())
}

// RecyclePart removes an Available part from stock. Consumed parts stay
// part of their aircraft forever.
func (s *InventoryService) RecyclePart(ctx context.Context, caller domain.Caller, id string) (domain.Part, error) {
	part, err := s.parts.GetPart(ctx, id)
	if err != nil {
		return domain.Part{}, err
	}
	if !part.Available() {
		return domain.Part{}, domain.AlreadyConsumed(id)
	}
	if err := s.authz.CanRecycle(caller, part); err != nil {
		return domain.Part{}, err
	}

	deleted, err := s.parts.DeleteAvailablePart(ctx, id)
	if err != nil {
		return domain.Part{}, err
	}

	metrics.PartsRecycledTotal.WithLabelValues(deleted.AircraftType.String(), deleted.Type.String()).Inc()
	s.logger.Info("part recycled",
		zap.String("part_id", deleted.ID),
		zap.String("serial_number", deleted.SerialNumber),
		zap.String("team", caller.Team))
	return deleted, nil
}

// InventoryStatus tallies stock for every catalogued aircraft type. Part
// types the aircraft needs but nobody produced yet are reported as zero.
func (s *InventoryService) InventoryStatus(ctx context.Context) (domain.InventoryStatus, error) {
	status := make(domain.InventoryStatus)
	for _, at := range s.catalog.AircraftTypes() {
		required, err := s.catalog.RequirementsFor(at)
		if err != nil {
			return nil, err
		}
		counts, err := s.parts.CountParts(ctx, at)
		if err != nil {
			return nil, fmt.Errorf("count parts for %s: %w", at, err)
		}
		line := make(map[domain.PartType]domain.StockCount, len(required))
		for _, t := range required.PartTypes() {
			line[t] = counts[t]
		}
		status[at] = line
	}
	return status, nil
}
