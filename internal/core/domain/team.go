package domain

import "strings"

type TeamType string

const (
	TeamTypeAdmin    TeamType = "ADMIN"
	TeamTypeWing     TeamType = "WING"
	TeamTypeBody     TeamType = "BODY"
	TeamTypeTail     TeamType = "TAIL"
	TeamTypeAvionics TeamType = "AVIONICS"
	TeamTypeAssembly TeamType = "ASSEMBLY"
)

func ParseTeamType(raw string) TeamType {
	return TeamType(strings.ToUpper(strings.TrimSpace(raw)))
}

// Caller identifies who issues a request. Authentication happens upstream.
type Caller struct {
	Member   string
	Team     string
	TeamType TeamType
}

func (c Caller) Anonymous() bool {
	return c.Team == ""
}
