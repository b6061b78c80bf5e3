package domain

import (
	"sort"
	"strings"
	"time"
)

type AircraftType string

func (t AircraftType) String() string {
	return string(t)
}

// NormalizeAircraftType upper-cases and trims a user supplied type name.
func NormalizeAircraftType(raw string) AircraftType {
	return AircraftType(strings.ToUpper(strings.TrimSpace(raw)))
}

// Requirement maps each part type to the exact count an aircraft needs.
type Requirement map[PartType]int

// PartTypes returns the required part types in canonical order.
func (r Requirement) PartTypes() []PartType {
	types := make([]PartType, 0, len(r))
	for t := range r {
		types = append(types, t)
	}
	sortPartTypes(types)
	return types
}

func (r Requirement) Total() int {
	n := 0
	for _, c := range r {
		n += c
	}
	return n
}

func (r Requirement) Clone() Requirement {
	out := make(Requirement, len(r))
	for t, c := range r {
		out[t] = c
	}
	return out
}

type UsedPart struct {
	PartID string
	Type   PartType
}

type Aircraft struct {
	ID           string
	SerialNumber string
	AircraftType AircraftType
	Owner        string
	CreatedAt    time.Time
	UsedParts    []UsedPart
}

func (a Aircraft) PartIDs() []string {
	ids := make([]string, len(a.UsedParts))
	for i, p := range a.UsedParts {
		ids[i] = p.PartID
	}
	return ids
}

// CountByType tallies UsedParts per part type.
func (a Aircraft) CountByType() map[PartType]int {
	counts := make(map[PartType]int)
	for _, p := range a.UsedParts {
		counts[p.Type]++
	}
	return counts
}

// Satisfies reports whether the used parts match req exactly.
func (a Aircraft) Satisfies(req Requirement) bool {
	counts := a.CountByType()
	if len(counts) != len(req) {
		return false
	}
	for t, want := range req {
		if counts[t] != want {
			return false
		}
	}
	return true
}

// Claims converts the used parts into the claims a store must apply.
func (a Aircraft) Claims() []PartClaim {
	claims := make([]PartClaim, len(a.UsedParts))
	for i, p := range a.UsedParts {
		claims[i] = PartClaim{PartID: p.PartID, Type: p.Type}
	}
	return claims
}

// AircraftDetail is an aircraft with its used parts resolved.
type AircraftDetail struct {
	Aircraft
	Parts []Part
}

func sortPartTypes(types []PartType) {
	rank := make(map[PartType]int, len(PartTypes))
	for i, t := range PartTypes {
		rank[t] = i
	}
	sort.Slice(types, func(i, j int) bool {
		ri, iok := rank[types[i]]
		rj, jok := rank[types[j]]
		if iok && jok {
			return ri < rj
		}
		if iok != jok {
			return iok
		}
		return types[i] < types[j]
	})
}
