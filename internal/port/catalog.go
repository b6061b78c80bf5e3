package port

import "github.com/rl1809/aircraft-assembly/internal/core/domain"

type Catalog interface {
	// RequirementsFor returns domain.ErrUnknownAircraftType for unregistered types.
	RequirementsFor(aircraftType domain.AircraftType) (domain.Requirement, error)
	AircraftTypes() []domain.AircraftType
}

// Authorizer answers "may this caller do X". Every method returns nil or an
// error matching domain.ErrForbidden.
type Authorizer interface {
	CanCreatePart(caller domain.Caller, partType domain.PartType) error
	CanAssemble(caller domain.Caller) error
	CanRecycle(caller domain.Caller, part domain.Part) error
}
