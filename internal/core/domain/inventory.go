package domain

import (
	"fmt"
	"strings"
	"time"
)

type PartType string

const (
	PartTypeWing     PartType = "WING"
	PartTypeBody     PartType = "BODY"
	PartTypeTail     PartType = "TAIL"
	PartTypeAvionics PartType = "AVIONICS"
)

// PartTypes lists every part category in canonical order.
var PartTypes = []PartType{PartTypeBody, PartTypeWing, PartTypeTail, PartTypeAvionics}

func (t PartType) Valid() bool {
	switch t {
	case PartTypeWing, PartTypeBody, PartTypeTail, PartTypeAvionics:
		return true
	}
	return false
}

func (t PartType) String() string {
	return string(t)
}

// ParsePartType accepts any casing ("wing", "Wing", "WING").
func ParsePartType(raw string) (PartType, error) {
	t := PartType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", UnknownPartType(PartType(raw))
	}
	return t, nil
}

type PartState string

const (
	PartStateAvailable PartState = "AVAILABLE"
	PartStateConsumed  PartState = "CONSUMED"
)

func (s PartState) Valid() bool {
	return s == PartStateAvailable || s == PartStateConsumed
}

// Part is a single manufactured component. Only State, ConsumedBy and
// ConsumedAt ever change, and only once.
type Part struct {
	ID           string
	SerialNumber string
	Type         PartType
	AircraftType AircraftType
	Owner        string
	State        PartState
	CreatedAt    time.Time
	ConsumedBy   string
	ConsumedAt   time.Time
}

func (p Part) Available() bool {
	return p.State == PartStateAvailable
}

func (p Part) String() string {
	return fmt.Sprintf("%s - %s (%s)", p.AircraftType, p.Type, p.SerialNumber)
}

// StockCount summarises parts of one type built for one aircraft type.
type StockCount struct {
	Total     int
	Available int
	Used      int
}

// PartClaim is one entry of an atomic consumption request: the part must
// still be Available and of Type when the claim is applied.
type PartClaim struct {
	PartID string
	Type   PartType
}
