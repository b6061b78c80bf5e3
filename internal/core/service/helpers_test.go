package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/rl1809/aircraft-assembly/internal/adapter/storage"
	"github.com/rl1809/aircraft-assembly/internal/core/catalog"
	"github.com/rl1809/aircraft-assembly/internal/core/domain"
)

var (
	assemblyTeam = domain.Caller{Member: "ayse", Team: "assembly-1", TeamType: domain.TeamTypeAssembly}
	wingTeam     = domain.Caller{Member: "mehmet", Team: "wing-1", TeamType: domain.TeamTypeWing}
	baseTime     = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
)

// Mock IdempotencyRepository
type mockIdempotencyRepo struct {
	keys     map[string]bool
	released []string
	mu       sync.Mutex
}

func newMockIdempotencyRepo() *mockIdempotencyRepo {
	return &mockIdempotencyRepo{keys: make(map[string]bool)}
}

func (m *mockIdempotencyRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockIdempotencyRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	m.released = append(m.released, key)
	return nil
}

type fixture struct {
	store     *storage.MemoryStore
	idem      *mockIdempotencyRepo
	allocator *AssemblyAllocator
	resolver  *AvailabilityResolver
	inventory *InventoryService
	aircraft  *AircraftService
	seq       int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := storage.NewMemoryStore()
	cat := catalog.Default()
	policy := NewTeamPolicy()
	idem := newMockIdempotencyRepo()

	return &fixture{
		store:     store,
		idem:      idem,
		allocator: NewAssemblyAllocator(store, cat, policy, idem, logger),
		resolver:  NewAvailabilityResolver(store, cat, logger),
		inventory: NewInventoryService(store, cat, policy, logger),
		aircraft:  NewAircraftService(store, store),
	}
}

// addParts stores n Available parts, each one minute younger than the last.
func (f *fixture) addParts(t *testing.T, at domain.AircraftType, pt domain.PartType, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		f.seq++
		p := domain.Part{
			ID:           fmt.Sprintf("%s-%s-%03d", at, pt, f.seq),
			SerialNumber: fmt.Sprintf("P-%08X", f.seq),
			Type:         pt,
			AircraftType: at,
			Owner:        "team-" + string(pt),
			State:        domain.PartStateAvailable,
			CreatedAt:    baseTime.Add(time.Duration(f.seq) * time.Minute),
		}
		if err := f.store.CreatePart(context.Background(), p); err != nil {
			t.Fatalf("seed part: %v", err)
		}
		ids = append(ids, p.ID)
	}
	return ids
}

// addTB2Kit stocks exactly one TB2 worth of parts and returns it as a selection.
func (f *fixture) addTB2Kit(t *testing.T) domain.Selection {
	t.Helper()
	return domain.Selection{
		domain.PartTypeWing:     f.addParts(t, "TB2", domain.PartTypeWing, 2),
		domain.PartTypeBody:     f.addParts(t, "TB2", domain.PartTypeBody, 1),
		domain.PartTypeTail:     f.addParts(t, "TB2", domain.PartTypeTail, 1),
		domain.PartTypeAvionics: f.addParts(t, "TB2", domain.PartTypeAvionics, 1),
	}
}

func assembleReq(sel domain.Selection) AssembleRequest {
	return AssembleRequest{Caller: assemblyTeam, AircraftType: "TB2", Selection: sel}
}

func expectCode(t *testing.T, err error, code domain.ErrorCode) *domain.Error {
	t.Helper()
	de, ok := domain.AsError(err)
	if !ok {
		t.Fatalf("expected %s, got %v", code, err)
	}
	if de.Code != code {
		t.Fatalf("expected %s, got %s (%v)", code, de.Code, err)
	}
	return de
}
