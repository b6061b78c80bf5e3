package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/aircraft-assembly/internal/core/domain"
	"github.com/rl1809/aircraft-assembly/internal/metrics"
	"github.com/rl1809/aircraft-assembly/internal/port"
)

// AvailabilityResolver answers "can this aircraft type be built from current
// stock". Reports are read-only snapshots and reserve nothing.
type AvailabilityResolver struct {
	parts   port.PartRepository
	catalog port.Catalog
	logger  *zap.Logger
}

func NewAvailabilityResolver(parts port.PartRepository, catalog port.Catalog, logger *zap.Logger) *AvailabilityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityResolver{parts: parts, catalog: catalog, logger: logger}
}

func (r *AvailabilityResolver) CheckAvailability(ctx context.Context, aircraftType domain.AircraftType) (domain.AvailabilityReport, error) {
	req, err := r.catalog.RequirementsFor(aircraftType)
	if err != nil {
		return domain.AvailabilityReport{}, err
	}

	report := domain.AvailabilityReport{AircraftType: aircraftType, CanAssemble: true}
	for _, t := range req.PartTypes() {
		parts, err := r.parts.ListAvailable(ctx, aircraftType, t)
		if err != nil {
			return domain.AvailabilityReport{}, fmt.Errorf("list available %s parts for %s: %w", t, aircraftType, err)
		}
		line := domain.AvailabilityLine{
			Type:      t,
			Required:  req[t],
			Available: len(parts),
			Parts:     parts,
		}
		if !line.Satisfied() {
			report.CanAssemble = false
		}
		report.Lines = append(report.Lines, line)
	}

	metrics.ObserveAvailability(aircraftType.String(), report.CanAssemble)
	r.logger.Debug("availability checked",
		zap.String("aircraft_type", aircraftType.String()),
		zap.Bool("can_assemble", report.CanAssemble))
	return report, nil
}

// RequirementsOverview reports availability for every catalogued aircraft type.
func (r *AvailabilityResolver) RequirementsOverview(ctx context.Context) ([]domain.AvailabilityReport, error) {
	types := r.catalog.AircraftTypes()
	reports := make([]domain.AvailabilityReport, 0, len(types))
	for _, t := range types {
		report, err := r.CheckAvailability(ctx, t)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// SuggestSelection returns the oldest available parts that satisfy the
// requirement, or CountMismatch naming the first short part type.
func (r *AvailabilityResolver) SuggestSelection(ctx context.Context, aircraftType domain.AircraftType) (domain.Selection, error) {
	report, err := r.CheckAvailability(ctx, aircraftType)
	if err != nil {
		return nil, err
	}
	sel, ok := report.Suggest()
	if !ok {
		short := report.Missing()[0]
		return nil, domain.CountMismatch(short.Type, short.Required, short.Available)
	}
	return sel, nil
}
