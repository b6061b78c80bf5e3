package domain

// AvailabilityLine reports one required part type of an aircraft type.
type AvailabilityLine struct {
	Type      PartType
	Required  int
	Available int
	Parts     []Part
}

func (l AvailabilityLine) Satisfied() bool {
	return l.Available >= l.Required
}

// AvailabilityReport is an advisory snapshot; it reserves nothing.
type AvailabilityReport struct {
	AircraftType AircraftType
	CanAssemble  bool
	Lines        []AvailabilityLine
}

func (r AvailabilityReport) Missing() []AvailabilityLine {
	var missing []AvailabilityLine
	for _, l := range r.Lines {
		if !l.Satisfied() {
			missing = append(missing, l)
		}
	}
	return missing
}

func (r AvailabilityReport) Required() Requirement {
	req := make(Requirement, len(r.Lines))
	for _, l := range r.Lines {
		req[l.Type] = l.Required
	}
	return req
}

// Parts lists every available part in the report, grouped by line order.
func (r AvailabilityReport) Parts() []Part {
	var parts []Part
	for _, l := range r.Lines {
		parts = append(parts, l.Parts...)
	}
	return parts
}

// InventoryStatus maps aircraft type to per part type stock counts.
type InventoryStatus map[AircraftType]map[PartType]StockCount

// Suggest picks the first Required parts of every line, which the stores
// return oldest first. It reports false when any line is short.
func (r AvailabilityReport) Suggest() (Selection, bool) {
	if !r.CanAssemble {
		return nil, false
	}
	sel := make(Selection, len(r.Lines))
	for _, l := range r.Lines {
		if !l.Satisfied() {
			return nil, false
		}
		ids := make([]string, 0, l.Required)
		for _, p := range l.Parts[:l.Required] {
			ids = append(ids, p.ID)
		}
		sel[l.Type] = ids
	}
	return sel, true
}
