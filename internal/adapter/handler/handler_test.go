package handler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/rl1809/aircraft-assembly/internal/adapter/storage"
	"github.com/rl1809/aircraft-assembly/internal/core/catalog"
	"github.com/rl1809/aircraft-assembly/internal/core/domain"
	"github.com/rl1809/aircraft-assembly/internal/core/service"
)

var (
	assemblyCaller = domain.Caller{Member: "m1", Team: "assembly-1", TeamType: domain.TeamTypeAssembly}
	wingCaller     = domain.Caller{Member: "m2", Team: "wing-1", TeamType: domain.TeamTypeWing}
)

type testEnv struct {
	store *storage.MemoryStore
	svc   Services
	seq   int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := storage.NewMemoryStore()
	cat := catalog.Default()
	policy := service.NewTeamPolicy()

	return &testEnv{
		store: store,
		svc: Services{
			Allocator: service.NewAssemblyAllocator(store, cat, policy, storage.NewMemoryIdempotency(time.Minute), logger),
			Resolver:  service.NewAvailabilityResolver(store, cat, logger),
			Inventory: service.NewInventoryService(store, cat, policy, logger),
			Aircraft:  service.NewAircraftService(store, store),
		},
	}
}

func (e *testEnv) addParts(t *testing.T, at domain.AircraftType, pt domain.PartType, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		e.seq++
		p := domain.Part{
			ID:           fmt.Sprintf("part-%03d", e.seq),
			SerialNumber: fmt.Sprintf("P-%08X", e.seq),
			Type:         pt,
			AircraftType: at,
			Owner:        "wing-1",
			State:        domain.PartStateAvailable,
			CreatedAt:    time.Date(2024, 1, 1, 0, e.seq, 0, 0, time.UTC),
		}
		if err := e.store.CreatePart(context.Background(), p); err != nil {
			t.Fatalf("seed part: %v", err)
		}
		ids = append(ids, p.ID)
	}
	return ids
}

// addTB2Kit returns the request body parts object for one full TB2 kit.
func (e *testEnv) addTB2Kit(t *testing.T) map[string][]string {
	t.Helper()
	return map[string][]string{
		"wing_ids":     e.addParts(t, "TB2", domain.PartTypeWing, 2),
		"body_ids":     e.addParts(t, "TB2", domain.PartTypeBody, 1),
		"tail_ids":     e.addParts(t, "TB2", domain.PartTypeTail, 1),
		"avionics_ids": e.addParts(t, "TB2", domain.PartTypeAvionics, 1),
	}
}
