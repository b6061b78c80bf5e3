package domain

import "strings"

// Selection is the caller's choice of concrete part ids per part type.
type Selection map[PartType][]string

const selectionKeySuffix = "_ids"

// ParseSelection converts a "<type>_ids" keyed payload into a Selection.
// Keys without the suffix are accepted as bare part type names.
func ParseSelection(raw map[string][]string) (Selection, error) {
	sel := make(Selection, len(raw))
	for key, ids := range raw {
		name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(key)), selectionKeySuffix)
		t, err := ParsePartType(name)
		if err != nil {
			return nil, err
		}
		sel[t] = append(sel[t], ids...)
	}
	return sel, nil
}

// Keyed renders the selection back into the "<type>_ids" wire shape.
func (s Selection) Keyed() map[string][]string {
	out := make(map[string][]string, len(s))
	for t, ids := range s {
		out[strings.ToLower(string(t))+selectionKeySuffix] = append([]string(nil), ids...)
	}
	return out
}

// PartTypes returns the selected part types in canonical order.
func (s Selection) PartTypes() []PartType {
	types := make([]PartType, 0, len(s))
	for t := range s {
		types = append(types, t)
	}
	sortPartTypes(types)
	return types
}

// Flatten lists every selected part in canonical type order, preserving
// the caller's order inside each type.
func (s Selection) Flatten() []UsedPart {
	var out []UsedPart
	for _, t := range s.PartTypes() {
		for _, id := range s[t] {
			out = append(out, UsedPart{PartID: id, Type: t})
		}
	}
	return out
}
