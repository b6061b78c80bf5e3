package service

import (
	"context"
	"fmt"

	"github.com/rl1809/aircraft-assembly/internal/core/domain"
	"github.com/rl1809/aircraft-assembly/internal/port"
)

type AircraftService struct {
	aircraft port.AircraftRepository
	parts    port.PartRepository
}

func NewAircraftService(aircraft port.AircraftRepository, parts port.PartRepository) *AircraftService {
	return &AircraftService{aircraft: aircraft, parts: parts}
}

// GetAircraft returns the aircraft together with the parts it consumed, in
// the order they were recorded.
func (s *AircraftService) GetAircraft(ctx context.Context, id string) (domain.AircraftDetail, error) {
	aircraft, err := s.aircraft.GetAircraft(ctx, id)
	if err != nil {
		return domain.AircraftDetail{}, err
	}

	detail := domain.AircraftDetail{Aircraft: aircraft, Parts: make([]domain.Part, 0, len(aircraft.UsedParts))}
	for _, u := range aircraft.UsedParts {
		part, err := s.parts.GetPart(ctx, u.PartID)
		if err != nil {
			return domain.AircraftDetail{}, fmt.Errorf("resolve part %s of aircraft %s: %w", u.PartID, id, err)
		}
		detail.Parts = append(detail.Parts, part)
	}
	return detail, nil
}

func (s *AircraftService) ListAircraft(ctx context.Context, filter domain.AircraftFilter, page domain.PageRequest) (domain.Page[domain.Aircraft], error) {
	return s.aircraft.ListAircraft(ctx, filter, page.Normalize())
}
