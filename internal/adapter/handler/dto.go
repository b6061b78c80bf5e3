package handler

import (
	"strings"
	"time"

	"github.com/rl1809/aircraft-assembly/internal/core/domain"
)

// Wire types shared by the HTTP and gRPC transports.

type PartResponse struct {
	ID           string     `json:"id"`
	SerialNumber string     `json:"serial_number"`
	Type         string     `json:"type"`
	AircraftType string     `json:"aircraft_type"`
	Owner        string     `json:"owner"`
	State        string     `json:"state"`
	CreatedAt    time.Time  `json:"created_at"`
	ConsumedBy   string     `json:"consumed_by,omitempty"`
	ConsumedAt   *time.Time `json:"consumed_at,omitempty"`
}

type AvailablePart struct {
	ID           string    `json:"id"`
	SerialNumber string    `json:"serial_number"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"created_at"`
}

type MissingPart struct {
	Type      string `json:"type"`
	Available int    `json:"available"`
	Required  int    `json:"required"`
}

type AvailabilityResponse struct {
	AircraftType  string              `json:"aircraft_type"`
	CanAssemble   bool                `json:"can_assemble"`
	MissingParts  []MissingPart       `json:"missing_parts"`
	RequiredParts map[string]int      `json:"required_parts"`
	Parts         []AvailablePart     `json:"parts"`
	Suggested     map[string][]string `json:"suggested_parts,omitempty"`
}

type UsedPartResponse struct {
	PartID string `json:"part_id"`
	Type   string `json:"type"`
}

type AircraftResponse struct {
	ID           string             `json:"id"`
	SerialNumber string             `json:"serial_number"`
	AircraftType string             `json:"aircraft_type"`
	Owner        string             `json:"owner"`
	CreatedAt    time.Time          `json:"created_at"`
	UsedParts    []UsedPartResponse `json:"used_parts"`
}

type AircraftDetailResponse struct {
	AircraftResponse
	Parts []PartResponse `json:"parts"`
}

type StockCountResponse struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Used      int `json:"used"`
}

// DataTableResponse is the paging envelope the dashboard tables expect.
type DataTableResponse[T any] struct {
	Draw            int `json:"draw"`
	RecordsTotal    int `json:"recordsTotal"`
	RecordsFiltered int `json:"recordsFiltered"`
	Data            []T `json:"data"`
}

type ErrorResponse struct {
	Detail   string `json:"detail"`
	Code     string `json:"code"`
	PartType string `json:"part_type,omitempty"`
	PartID   string `json:"part_id,omitempty"`
	Required int    `json:"required,omitempty"`
	Provided int    `json:"provided,omitempty"`
}

type DetailResponse struct {
	Detail string `json:"detail"`
}

type AssembleAircraftRequest struct {
	RequestID    string              `json:"request_id,omitempty"`
	AircraftType string              `json:"aircraft_type"`
	Parts        map[string][]string `json:"parts"`
}

type CreatePartRequest struct {
	Type         string `json:"type"`
	AircraftType string `json:"aircraft_type"`
}

type CheckAvailabilityRequest struct {
	AircraftType string `json:"aircraft_type"`
	Suggest      bool   `json:"suggest,omitempty"`
}

type GetAircraftRequest struct {
	ID string `json:"id"`
}

type RecyclePartRequest struct {
	ID string `json:"id"`
}

func toPartResponse(p domain.Part) PartResponse {
	resp := PartResponse{
		ID:           p.ID,
		SerialNumber: p.SerialNumber,
		Type:         p.Type.String(),
		AircraftType: p.AircraftType.String(),
		Owner:        p.Owner,
		State:        string(p.State),
		CreatedAt:    p.CreatedAt,
		ConsumedBy:   p.ConsumedBy,
	}
	if !p.ConsumedAt.IsZero() {
		at := p.ConsumedAt
		resp.ConsumedAt = &at
	}
	return resp
}

func toPartResponses(parts []domain.Part) []PartResponse {
	out := make([]PartResponse, 0, len(parts))
	for _, p := range parts {
		out = append(out, toPartResponse(p))
	}
	return out
}

func toAvailabilityResponse(r domain.AvailabilityReport) AvailabilityResponse {
	resp := AvailabilityResponse{
		AircraftType:  r.AircraftType.String(),
		CanAssemble:   r.CanAssemble,
		MissingParts:  []MissingPart{},
		RequiredParts: make(map[string]int, len(r.Lines)),
		Parts:         []AvailablePart{},
	}
	for _, l := range r.Lines {
		resp.RequiredParts[l.Type.String()] = l.Required
		if !l.Satisfied() {
			resp.MissingParts = append(resp.MissingParts, MissingPart{
				Type:      l.Type.String(),
				Available: l.Available,
				Required:  l.Required,
			})
		}
	}
	for _, p := range r.Parts() {
		resp.Parts = append(resp.Parts, AvailablePart{
			ID:           p.ID,
			SerialNumber: p.SerialNumber,
			Type:         p.Type.String(),
			CreatedAt:    p.CreatedAt,
		})
	}
	return resp
}

func toAircraftResponse(a domain.Aircraft) AircraftResponse {
	resp := AircraftResponse{
		ID:           a.ID,
		SerialNumber: a.SerialNumber,
		AircraftType: a.AircraftType.String(),
		Owner:        a.Owner,
		CreatedAt:    a.CreatedAt,
		UsedParts:    make([]UsedPartResponse, 0, len(a.UsedParts)),
	}
	for _, u := range a.UsedParts {
		resp.UsedParts = append(resp.UsedParts, UsedPartResponse{PartID: u.PartID, Type: u.Type.String()})
	}
	return resp
}

func toAircraftDetailResponse(d domain.AircraftDetail) AircraftDetailResponse {
	return AircraftDetailResponse{
		AircraftResponse: toAircraftResponse(d.Aircraft),
		Parts:            toPartResponses(d.Parts),
	}
}

func toInventoryStatusResponse(status domain.InventoryStatus) map[string]map[string]StockCountResponse {
	out := make(map[string]map[string]StockCountResponse, len(status))
	for at, counts := range status {
		line := make(map[string]StockCountResponse, len(counts))
		for pt, c := range counts {
			line[pt.String()] = StockCountResponse{Total: c.Total, Available: c.Available, Used: c.Used}
		}
		out[at.String()] = line
	}
	return out
}

func toErrorResponse(e *domain.Error) ErrorResponse {
	return ErrorResponse{
		Detail:   e.Error(),
		Code:     string(e.Code),
		PartType: e.PartType.String(),
		PartID:   e.PartID,
		Required: e.Required,
		Provided: e.Provided,
	}
}

// parseAssemble validates the request body at the boundary, turning the
// keyed parts object into a typed selection.
func parseAssemble(req AssembleAircraftRequest) (domain.AircraftType, domain.Selection, error) {
	aircraftType := domain.NormalizeAircraftType(req.AircraftType)
	if aircraftType == "" {
		return "", nil, domain.InvalidArgument("aircraft_type is required")
	}
	if len(req.Parts) == 0 {
		return "", nil, domain.InvalidArgument("parts is required")
	}
	sel, err := domain.ParseSelection(req.Parts)
	if err != nil {
		return "", nil, err
	}
	for t, ids := range sel {
		for _, id := range ids {
			if strings.TrimSpace(id) == "" {
				return "", nil, domain.InvalidArgument("empty part id under " + t.String())
			}
		}
	}
	return aircraftType, sel, nil
}

func parseCreatePart(req CreatePartRequest) (domain.PartType, domain.AircraftType, error) {
	if strings.TrimSpace(req.Type) == "" || strings.TrimSpace(req.AircraftType) == "" {
		return "", "", domain.InvalidArgument("type and aircraft_type are required")
	}
	pt, err := domain.ParsePartType(req.Type)
	if err != nil {
		return "", "", err
	}
	return pt, domain.NormalizeAircraftType(req.AircraftType), nil
}
