package port

import (
	"context"

	"github.com/rl1809/aircraft-assembly/internal/core/domain"
)

type PartRepository interface {
	// CreatePart stores a new Available part. Returns domain.ErrDuplicateSerial
	// when the serial number is taken.
	CreatePart(ctx context.Context, part domain.Part) error

	// GetPart returns domain.ErrNotFound for unknown ids.
	GetPart(ctx context.Context, id string) (domain.Part, error)

	// ListAvailable returns Available parts built for aircraftType, optionally
	// narrowed to partType, ordered by created_at then id.
	ListAvailable(ctx context.Context, aircraftType domain.AircraftType, partType domain.PartType) ([]domain.Part, error)

	ListParts(ctx context.Context, filter domain.PartFilter, page domain.PageRequest) (domain.Page[domain.Part], error)

	// CountParts tallies parts built for aircraftType per part type.
	CountParts(ctx context.Context, aircraftType domain.AircraftType) (map[domain.PartType]domain.StockCount, error)

	// DeleteAvailablePart removes a part only while it is Available.
	// Returns domain.ErrNotFound or domain.ErrAlreadyConsumed.
	DeleteAvailablePart(ctx context.Context, id string) (domain.Part, error)
}

type AircraftRepository interface {
	// GetAircraft returns domain.ErrNotFound for unknown ids.
	GetAircraft(ctx context.Context, id string) (domain.Aircraft, error)

	ListAircraft(ctx context.Context, filter domain.AircraftFilter, page domain.PageRequest) (domain.Page[domain.Aircraft], error)
}

type AssemblyRepository interface {
	// CommitAssembly stores aircraft and moves every part in aircraft.UsedParts
	// from Available to Consumed as one indivisible step. Each claim is
	// re-checked inside that step; if any part is missing, consumed, built for
	// another aircraft type or of another part type nothing is applied and
	// domain.ErrConflict is returned. A taken serial number yields
	// domain.ErrDuplicateSerial. Cancelling ctx does not interrupt a commit
	// that has started.
	CommitAssembly(ctx context.Context, aircraft domain.Aircraft) error
}

// InventoryStore is one backing store owning both parts and aircraft, so the
// assembly commit can span them.
type InventoryStore interface {
	PartRepository
	AircraftRepository
	AssemblyRepository
}
