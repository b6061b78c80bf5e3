package service

import (
	"fmt"

	"github.com/rl1809/aircraft-assembly/internal/core/domain"
	"github.com/rl1809/aircraft-assembly/internal/port"
)

// TeamPolicy grants each production team the part type it manufactures and
// reserves assembly for assembly teams. Parts may only be recycled by the
// team that produced them.
type TeamPolicy struct {
	produces map[domain.TeamType]domain.PartType
}

var _ port.Authorizer = (*TeamPolicy)(nil)

func NewTeamPolicy() *TeamPolicy {
	return &TeamPolicy{
		produces: map[domain.TeamType]domain.PartType{
			domain.TeamTypeWing:     domain.PartTypeWing,
			domain.TeamTypeBody:     domain.PartTypeBody,
			domain.TeamTypeTail:     domain.PartTypeTail,
			domain.TeamTypeAvionics: domain.PartTypeAvionics,
		},
	}
}

func (p *TeamPolicy) CanCreatePart(caller domain.Caller, partType domain.PartType) error {
	if caller.Anonymous() {
		return domain.Forbidden("caller does not belong to a team")
	}
	allowed, ok := p.produces[caller.TeamType]
	if !ok {
		return domain.Forbidden(fmt.Sprintf("team type %s cannot produce parts", caller.TeamType))
	}
	if allowed != partType {
		return domain.Forbidden(fmt.Sprintf("team type %s can only produce %s parts", caller.TeamType, allowed))
	}
	return nil
}

func (p *TeamPolicy) CanAssemble(caller domain.Caller) error {
	if caller.Anonymous() {
		return domain.Forbidden("caller does not belong to a team")
	}
	if caller.TeamType != domain.TeamTypeAssembly {
		return domain.Forbidden("only assembly teams can assemble aircraft")
	}
	return nil
}

func (p *TeamPolicy) CanRecycle(caller domain.Caller, part domain.Part) error {
	if caller.Anonymous() {
		return domain.Forbidden("caller does not belong to a team")
	}
	if part.Owner != caller.Team {
		return domain.Forbidden(fmt.Sprintf("part %s belongs to team %s", part.ID, part.Owner))
	}
	return nil
}
