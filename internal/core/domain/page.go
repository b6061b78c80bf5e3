package domain

import (
	"strings"
	"time"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type PageRequest struct {
	Offset     int
	Limit      int
	Descending bool
}

// Normalize clamps the request into the supported window.
func (p PageRequest) Normalize() PageRequest {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

type Page[T any] struct {
	Items []T
	Total int
}

// TimeRange bounds are inclusive; zero values are open.
type TimeRange struct {
	After  time.Time
	Before time.Time
}

func (r TimeRange) Contains(t time.Time) bool {
	if !r.After.IsZero() && t.Before(r.After) {
		return false
	}
	if !r.Before.IsZero() && t.After(r.Before) {
		return false
	}
	return true
}

type PartFilter struct {
	Type         PartType
	AircraftType AircraftType
	State        PartState
	Owner        string
	Created      TimeRange
}

func (f PartFilter) Match(p Part) bool {
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if f.AircraftType != "" && p.AircraftType != f.AircraftType {
		return false
	}
	if f.State != "" && p.State != f.State {
		return false
	}
	if f.Owner != "" && p.Owner != f.Owner {
		return false
	}
	return f.Created.Contains(p.CreatedAt)
}

type AircraftFilter struct {
	AircraftType AircraftType
	SerialNumber string // substring, case-insensitive
	Owner        string
	Created      TimeRange
}

func (f AircraftFilter) Match(a Aircraft) bool {
	if f.AircraftType != "" && a.AircraftType != f.AircraftType {
		return false
	}
	if f.SerialNumber != "" && !strings.Contains(strings.ToUpper(a.SerialNumber), strings.ToUpper(f.SerialNumber)) {
		return false
	}
	if f.Owner != "" && a.Owner != f.Owner {
		return false
	}
	return f.Created.Contains(a.CreatedAt)
}
