package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rl1809/aircraft-assembly/internal/core/domain"
	"github.com/rl1809/aircraft-assembly/internal/port"
)

var _ port.InventoryStore = (*MemoryStore)(nil)

// MemoryStore keeps parts and aircraft in process memory behind one lock.
// Commits hold the write lock for validation and mutation together; reads
// hold the read lock and hand out copies.
type MemoryStore struct {
	mu              sync.RWMutex
	parts           map[string]domain.Part
	aircraft        map[string]domain.Aircraft
	partSerials     map[string]struct{}
	aircraftSerials map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		parts:           make(map[string]domain.Part),
		aircraft:        make(map[string]domain.Aircraft),
		partSerials:     make(map[string]struct{}),
		aircraftSerials: make(map[string]struct{}),
	}
}

func (m *MemoryStore) CreatePart(ctx context.Context, part domain.Part) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.parts[part.ID]; exists {
		return fmt.Errorf("create part %s: id already exists", part.ID)
	}
	if _, taken := m.partSerials[part.SerialNumber]; taken {
		return domain.ErrDuplicateSerial
	}
	m.parts[part.ID] = part
	m.partSerials[part.SerialNumber] = struct{}{}
	return nil
}

func (m *MemoryStore) GetPart(ctx context.Context, id string) (domain.Part, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.parts[id]
	if !ok {
		return domain.Part{}, domain.NotFound("part", id)
	}
	return p, nil
}

func (m *MemoryStore) ListAvailable(ctx context.Context, aircraftType domain.AircraftType, partType domain.PartType) ([]domain.Part, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Part
	for _, p := range m.parts {
		if !p.Available() || p.AircraftType != aircraftType {
			continue
		}
		if partType != "" && p.Type != partType {
			continue
		}
		out = append(out, p)
	}
	sortParts(out, false)
	return out, nil
}

func (m *MemoryStore) ListParts(ctx context.Context, filter domain.PartFilter, page domain.PageRequest) (domain.Page[domain.Part], error) {
	page = page.Normalize()

	m.mu.RLock()
	var matched []domain.Part
	for _, p := range m.parts {
		if filter.Match(p) {
			matched = append(matched, p)
		}
	}
	m.mu.RUnlock()

	sortParts(matched, page.Descending)
	return domain.Page[domain.Part]{Items: window(matched, page), Total: len(matched)}, nil
}

func (m *MemoryStore) CountParts(ctx context.Context, aircraftType domain.AircraftType) (map[domain.PartType]domain.StockCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[domain.PartType]domain.StockCount)
	for _, p := range m.parts {
		if p.AircraftType != aircraftType {
			continue
		}
		c := counts[p.Type]
		c.Total++
		if p.Available() {
			c.Available++
		} else {
			c.Used++
		}
		counts[p.Type] = c
	}
	return counts, nil
}

// DeleteAvailablePart keeps the serial reserved so it is never handed out again.
func (m *MemoryStore) DeleteAvailablePart(ctx context.Context, id string) (domain.Part, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.parts[id]
	if !ok {
		return domain.Part{}, domain.NotFound("part", id)
	}
	if !p.Available() {
		return domain.Part{}, domain.AlreadyConsumed(id)
	}
	delete(m.parts, id)
	return p, nil
}

func (m *MemoryStore) GetAircraft(ctx context.Context, id string) (domain.Aircraft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.aircraft[id]
	if !ok {
		return domain.Aircraft{}, domain.NotFound("aircraft", id)
	}
	return cloneAircraft(a), nil
}

func (m *MemoryStore) ListAircraft(ctx context.Context, filter domain.AircraftFilter, page domain.PageRequest) (domain.Page[domain.Aircraft], error) {
	page = page.Normalize()

	m.mu.RLock()
	var matched []domain.Aircraft
	for _, a := range m.aircraft {
		if filter.Match(a) {
			matched = append(matched, cloneAircraft(a))
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if page.Descending {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if page.Descending {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
	return domain.Page[domain.Aircraft]{Items: window(matched, page), Total: len(matched)}, nil
}

func (m *MemoryStore) CommitAssembly(ctx context.Context, aircraft domain.Aircraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.aircraft[aircraft.ID]; exists {
		return fmt.Errorf("commit assembly: aircraft %s already exists", aircraft.ID)
	}
	if _, taken := m.aircraftSerials[aircraft.SerialNumber]; taken {
		return domain.ErrDuplicateSerial
	}

	seen := make(map[string]struct{}, len(aircraft.UsedParts))
	for _, claim := range aircraft.Claims() {
		if _, dup := seen[claim.PartID]; dup {
			return domain.PartConflict(claim.PartID, "claimed twice")
		}
		seen[claim.PartID] = struct{}{}

		p, ok := m.parts[claim.PartID]
		switch {
		case !ok:
			return domain.PartConflict(claim.PartID, "does not exist")
		case !p.Available():
			return domain.PartConflict(claim.PartID, fmt.Sprintf("already consumed by %s", p.ConsumedBy))
		case p.AircraftType != aircraft.AircraftType:
			return domain.PartConflict(claim.PartID, fmt.Sprintf("built for %s", p.AircraftType))
		case p.Type != claim.Type:
			return domain.PartConflict(claim.PartID, fmt.Sprintf("is a %s", p.Type))
		}
	}

	for _, claim := range aircraft.Claims() {
		p := m.parts[claim.PartID]
		p.State = domain.PartStateConsumed
		p.ConsumedBy = aircraft.ID
		p.ConsumedAt = aircraft.CreatedAt
		m.parts[claim.PartID] = p
	}
	m.aircraft[aircraft.ID] = cloneAircraft(aircraft)
	m.aircraftSerials[aircraft.SerialNumber] = struct{}{}
	return nil
}

// MemorySnapshot is a deep copy of the store contents.
type MemorySnapshot struct {
	Parts    map[string]domain.Part
	Aircraft map[string]domain.Aircraft
}

func (m *MemoryStore) Snapshot() MemorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MemorySnapshot{
		Parts:    make(map[string]domain.Part, len(m.parts)),
		Aircraft: make(map[string]domain.Aircraft, len(m.aircraft)),
	}
	for id, p := range m.parts {
		snap.Parts[id] = p
	}
	for id, a := range m.aircraft {
		snap.Aircraft[id] = cloneAircraft(a)
	}
	return snap
}

func cloneAircraft(a domain.Aircraft) domain.Aircraft {
	a.UsedParts = append([]domain.UsedPart(nil), a.UsedParts...)
	return a
}

// sortParts orders by created_at then id, the deterministic stock order.
func sortParts(parts []domain.Part, descending bool) {
	sort.Slice(parts, func(i, j int) bool {
		a, b := parts[i], parts[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if descending {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if descending {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
}

func window[T any](items []T, page domain.PageRequest) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}
