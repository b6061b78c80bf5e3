package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rl1809/aircraft-assembly/internal/core/domain"
	"github.com/rl1809/aircraft-assembly/internal/port"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) port.InventoryStore {
		return NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) port.InventoryStore {
		path := filepath.Join(t.TempDir(), "inventory.db")
		store, err := OpenSQLStore(context.Background(), DriverSQLite, path, PoolOptions{})
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestMySQLStore(t *testing.T) {
	runStoreSuite(t, externalStore(DriverMySQL, "MYSQL_DSN"))
}

func TestPostgresStore(t *testing.T) {
	runStoreSuite(t, externalStore(DriverPostgres, "POSTGRES_DSN"))
}

func externalStore(driver, env string) func(t *testing.T) port.InventoryStore {
	return func(t *testing.T) port.InventoryStore {
		dsn := os.Getenv(env)
		if dsn == "" {
			t.Skipf("%s not set", env)
		}
		store, err := OpenSQLStore(context.Background(), driver, dsn, PoolOptions{MaxOpenConns: 10, MaxIdleConns: 5})
		if err != nil {
			t.Skipf("%s not available: %v", driver, err)
		}
		for _, table := range []string{"aircraft_parts", "aircraft", "parts"} {
			if _, err := store.DB().Exec("DELETE FROM " + table); err != nil {
				t.Fatalf("cleanup %s: %v", table, err)
			}
		}
		t.Cleanup(func() { store.Close() })
		return store
	}
}

func runStoreSuite(t *testing.T, newStore func(t *testing.T) port.InventoryStore) {
	t.Run("CreateAndGetPart", func(t *testing.T) { testCreateAndGetPart(t, newStore(t)) })
	t.Run("DuplicateSerial", func(t *testing.T) { testDuplicateSerial(t, newStore(t)) })
	t.Run("ListAvailableOrdering", func(t *testing.T) { testListAvailableOrdering(t, newStore(t)) })
	t.Run("ListPartsFilterAndPage", func(t *testing.T) { testListPartsFilterAndPage(t, newStore(t)) })
	t.Run("CommitAssembly", func(t *testing.T) { testCommitAssembly(t, newStore(t)) })
	t.Run("CommitAssemblyAllOrNothing", func(t *testing.T) { testCommitAllOrNothing(t, newStore(t)) })
	t.Run("CommitAssemblyDuplicateSerial", func(t *testing.T) { testCommitDuplicateSerial(t, newStore(t)) })
	t.Run("CommitAssemblyConcurrent", func(t *testing.T) { testCommitConcurrent(t, newStore(t)) })
	t.Run("DeleteAvailablePart", func(t *testing.T) { testDeleteAvailablePart(t, newStore(t)) })
	t.Run("CountParts", func(t *testing.T) { testCountParts(t, newStore(t)) })
	t.Run("ListAircraft", func(t *testing.T) { testListAircraft(t, newStore(t)) })
}

func seedPart(t *testing.T, store port.InventoryStore, n int, pt domain.PartType, at domain.AircraftType, owner string) domain.Part {
	t.Helper()
	p := domain.Part{
		ID:           fmt.Sprintf("part-%03d", n),
		SerialNumber: fmt.Sprintf("P-%08X", n),
		Type:         pt,
		AircraftType: at,
		Owner:        owner,
		State:        domain.PartStateAvailable,
		CreatedAt:    baseTime.Add(time.Duration(n) * time.Minute),
	}
	if err := store.CreatePart(context.Background(), p); err != nil {
		t.Fatalf("seed part %d: %v", n, err)
	}
	return p
}

// seedTB2 stores one complete TB2 kit and returns it as used parts.
func seedTB2(t *testing.T, store port.InventoryStore, start int) []domain.UsedPart {
	t.Helper()
	kit := []domain.PartType{
		domain.PartTypeBody, domain.PartTypeWing, domain.PartTypeWing,
		domain.PartTypeTail, domain.PartTypeAvionics,
	}
	used := make([]domain.UsedPart, 0, len(kit))
	for i, pt := range kit {
		p := seedPart(t, store, start+i, pt, "TB2", "team-"+string(pt))
		used = append(used, domain.UsedPart{PartID: p.ID, Type: pt})
	}
	return used
}

func newAircraft(n int, used []domain.UsedPart) domain.Aircraft {
	return domain.Aircraft{
		ID:           fmt.Sprintf("aircraft-%03d", n),
		SerialNumber: fmt.Sprintf("A-%08X", n),
		AircraftType: "TB2",
		Owner:        "assembly",
		CreatedAt:    baseTime.Add(time.Duration(n) * time.Hour),
		UsedParts:    used,
	}
}

func testCreateAndGetPart(t *testing.T, store port.InventoryStore) {
	ctx := context.Background()
	want := seedPart(t, store, 1, domain.PartTypeWing, "TB2", "wing-team")

	got, err := store.GetPart(ctx, want.ID)
	if err != nil {
		t.Fatalf("GetPart failed: %v", err)
	}
	if got.SerialNumber != want.SerialNumber || got.Type != want.Type || got.AircraftType != want.AircraftType {
		t.Errorf("unexpected part: %+v", got)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("expected created_at %v, got %v", want.CreatedAt, got.CreatedAt)
	}
	if !got.Available() || got.ConsumedBy != "" || !got.ConsumedAt.IsZero() {
		t.Errorf("expected fresh available part, got %+v", got)
	}

	_, err = store.GetPart(ctx, "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testDuplicateSerial(t *testing.T, store port.InventoryStore) {
	p := seedPart(t, store, 1, domain.PartTypeWing, "TB2", "wing-team")
	p.ID = "another-id"

	err := store.CreatePart(context.Background(), p)
	if !errors.Is(err, domain.ErrDuplicateSerial) {
		t.Errorf("expected ErrDuplicateSerial, got %v", err)
	}
}

func testListAvailableOrdering(t *testing.T, store port.InventoryStore) {
	ctx := context.Background()
	seedPart(t, store, 3, domain.PartTypeWing, "TB2", "wing-team")
	seedPart(t, store, 1, domain.PartTypeWing, "TB2", "wing-team")
	seedPart(t, store, 2, domain.PartTypeWing, "TB3", "wing-team")
	seedPart(t, store, 4, domain.PartTypeTail, "TB2", "tail-team")

	wings, err := store.ListAvailable(ctx, "TB2", domain.PartTypeWing)
	if err != nil {
		t.Fatalf("ListAvailable failed: %v", err)
	}
	if len(wings) != 2 || wings[0].ID != "part-001" || wings[1].ID != "part-003" {
		t.Errorf("expected oldest-first TB2 wings [part-001 part-003], got %v", wings)
	}

	all, err := store.ListAvailable(ctx, "TB2", "")
	if err != nil {
		t.Fatalf("ListAvailable failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 TB2 parts, got %d", len(all))
	}
}

func testListPartsFilterAndPage(t *testing.T, store port.InventoryStore) {
	ctx := context.Background()
	for i := 1; i <= 12; i++ {
		seedPart(t, store, i, domain.PartTypeWing, "TB2", "wing-team")
	}
	seedPart(t, store, 13, domain.PartTypeTail, "TB2", "tail-team")

	page, err := store.ListParts(ctx, domain.PartFilter{Type: domain.PartTypeWing}, domain.PageRequest{Offset: 10, Limit: 5})
	if err != nil {
		t.Fatalf("ListParts failed: %v", err)
	}
	if page.Total != 12 {
		t.Errorf("expected total 12, got %d", page.Total)
	}
	if len(page.Items) != 2 || page.Items[0].ID != "part-011" {
		t.Errorf("unexpected page items: %v", page.Items)
	}

	desc, err := store.ListParts(ctx, domain.PartFilter{}, domain.PageRequest{Limit: 1, Descending: true})
	if err != nil {
		t.Fatalf("ListParts failed: %v", err)
	}
	if len(desc.Items) != 1 || desc.Items[0].ID != "part-013" || desc.Total != 13 {
		t.Errorf("expected newest part first, got %v (total %d)", desc.Items, desc.Total)
	}

	ranged, err := store.ListParts(ctx, domain.PartFilter{
		Owner:   "wing-team",
		Created: domain.TimeRange{After: baseTime.Add(2 * time.Minute), Before: baseTime.Add(4 * time.Minute)},
	}, domain.PageRequest{})
	if err != nil {
		t.Fatalf("ListParts failed: %v", err)
	}
	if ranged.Total != 3 {
		t.Errorf("expected inclusive range to match 3 parts, got %d", ranged.Total)
	}
}

func testCommitAssembly(t *testing.T, store port.InventoryStore) {
	ctx := context.Background()
	used := seedTB2(t, store, 1)
	aircraft := newAircraft(1, used)

	if err := store.CommitAssembly(ctx, aircraft); err != nil {
		t.Fatalf("CommitAssembly failed: %v", err)
	}

	for _, u := range used {
		p, err := store.GetPart(ctx, u.PartID)
		if err != nil {
			t.Fatalf("GetPart failed: %v", err)
		}
		if p.State != domain.PartStateConsumed || p.ConsumedBy != aircraft.ID {
			t.Errorf("part %s not consumed by %s: %+v", p.ID, aircraft.ID, p)
		}
		if !p.ConsumedAt.Equal(aircraft.CreatedAt) {
			t.Errorf("expected consumed_at %v, got %v", aircraft.CreatedAt, p.ConsumedAt)
		}
	}

	got, err := store.GetAircraft(ctx, aircraft.ID)
	if err != nil {
		t.Fatalf("GetAircraft failed: %v", err)
	}
	if got.SerialNumber != aircraft.SerialNumber || len(got.UsedParts) != len(used) {
		t.Errorf("unexpected aircraft: %+v", got)
	}
	for i := range used {
		if got.UsedParts[i] != used[i] {
			t.Errorf("used part %d: expected %v, got %v", i, used[i], got.UsedParts[i])
		}
	}

	remaining, err := store.ListAvailable(ctx, "TB2", "")
	if err != nil {
		t.Fatalf("ListAvailable failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected no available TB2 parts, got %d", len(remaining))
	}
}

func testCommitAllOrNothing(t *testing.T, store port.InventoryStore) {
	ctx := context.Background()
	used := seedTB2(t, store, 1)
	foreign := seedPart(t, store, 10, domain.PartTypeTail, "TB3", "tail-team")
	spareWing := seedPart(t, store, 11, domain.PartTypeWing, "TB2", "wing-team")

	tests := []struct {
		name    string
		replace domain.UsedPart
	}{
		{"missing part", domain.UsedPart{PartID: "ghost", Type: domain.PartTypeTail}},
		{"wrong aircraft type", domain.UsedPart{PartID: foreign.ID, Type: domain.PartTypeTail}},
		{"wrong part type", domain.UsedPart{PartID: spareWing.ID, Type: domain.PartTypeTail}},
		{"claimed twice", domain.UsedPart{PartID: used[1].PartID, Type: domain.PartTypeWing}},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := append([]domain.UsedPart(nil), used...)
			claims[3] = tt.replace

			err := store.CommitAssembly(ctx, newAircraft(i+1, claims))
			if !errors.Is(err, domain.ErrConflict) {
				t.Fatalf("expected ErrConflict, got %v", err)
			}
			var conflict *domain.PartConflictError
			if !errors.As(err, &conflict) || conflict.PartID != tt.replace.PartID {
				t.Errorf("expected conflict naming part %s, got %v", tt.replace.PartID, err)
			}

			available, err := store.ListAvailable(ctx, "TB2", "")
			if err != nil {
				t.Fatalf("ListAvailable failed: %v", err)
			}
			if len(available) != len(used)+1 {
				t.Errorf("expected all %d parts still available, got %d", len(used)+1, len(available))
			}
			if _, err := store.GetAircraft(ctx, newAircraft(i+1, nil).ID); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("expected no aircraft recorded, got %v", err)
			}
		})
	}
}

func testCommitDuplicateSerial(t *testing.T, store port.InventoryStore) {
	ctx := context.Background()
	first := newAircraft(1, seedTB2(t, store, 1))
	if err := store.CommitAssembly(ctx, first); err != nil {
		t.Fatalf("CommitAssembly failed: %v", err)
	}

	used := seedTB2(t, store, 10)
	second := newAircraft(2, used)
	second.SerialNumber = first.SerialNumber

	err := store.CommitAssembly(ctx, second)
	if !errors.Is(err, domain.ErrDuplicateSerial) {
		t.Fatalf("expected ErrDuplicateSerial, got %v", err)
	}
	p, _ := store.GetPart(ctx, used[0].PartID)
	if !p.Available() {
		t.Error("part consumed despite rejected commit")
	}
}

func testCommitConcurrent(t *testing.T, store port.InventoryStore) {
	ctx := context.Background()
	used := seedTB2(t, store, 1)

	var successCount, conflictCount atomic.Int32
	var wg sync.WaitGroup
	concurrency := 20

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := store.CommitAssembly(ctx, newAircraft(n+1, used))
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrConflict):
				conflictCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}

	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 commit, got %d", successCount.Load())
	}
	if conflictCount.Load() != int32(concurrency-1) {
		t.Errorf("expected %d conflicts, got %d", concurrency-1, conflictCount.Load())
	}

	page, err := store.ListAircraft(ctx, domain.AircraftFilter{}, domain.PageRequest{})
	if err != nil {
		t.Fatalf("ListAircraft failed: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("expected 1 aircraft recorded, got %d", page.Total)
	}
}

func testDeleteAvailablePart(t *testing.T, store port.InventoryStore) {
	ctx := context.Background()
	used := seedTB2(t, store, 1)
	spare := seedPart(t, store, 10, domain.PartTypeWing, "TB2", "wing-team")
	if err := store.CommitAssembly(ctx, newAircraft(1, used)); err != nil {
		t.Fatalf("CommitAssembly failed: %v", err)
	}

	deleted, err := store.DeleteAvailablePart(ctx, spare.ID)
	if err != nil {
		t.Fatalf("DeleteAvailablePart failed: %v", err)
	}
	if deleted.ID != spare.ID {
		t.Errorf("expected deleted part %s, got %s", spare.ID, deleted.ID)
	}
	if _, err := store.GetPart(ctx, spare.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected deleted part gone, got %v", err)
	}

	_, err = store.DeleteAvailablePart(ctx, used[0].PartID)
	if !errors.Is(err, domain.ErrAlreadyConsumed) {
		t.Errorf("expected ErrAlreadyConsumed, got %v", err)
	}
	_, err = store.DeleteAvailablePart(ctx, "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testCountParts(t *testing.T, store port.InventoryStore) {
	ctx := context.Background()
	used := seedTB2(t, store, 1)
	seedPart(t, store, 10, domain.PartTypeWing, "TB2", "wing-team")
	seedPart(t, store, 11, domain.PartTypeWing, "TB3", "wing-team")
	if err := store.CommitAssembly(ctx, newAircraft(1, used)); err != nil {
		t.Fatalf("CommitAssembly failed: %v", err)
	}

	counts, err := store.CountParts(ctx, "TB2")
	if err != nil {
		t.Fatalf("CountParts failed: %v", err)
	}
	want := domain.StockCount{Total: 3, Available: 1, Used: 2}
	if counts[domain.PartTypeWing] != want {
		t.Errorf("expected wing count %+v, got %+v", want, counts[domain.PartTypeWing])
	}
	if counts[domain.PartTypeBody] != (domain.StockCount{Total: 1, Used: 1}) {
		t.Errorf("unexpected body count %+v", counts[domain.PartTypeBody])
	}
}

func testListAircraft(t *testing.T, store port.InventoryStore) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := store.CommitAssembly(ctx, newAircraft(i+1, seedTB2(t, store, i*10+1))); err != nil {
			t.Fatalf("CommitAssembly failed: %v", err)
		}
	}

	page, err := store.ListAircraft(ctx, domain.AircraftFilter{SerialNumber: "a-00000002"}, domain.PageRequest{})
	if err != nil {
		t.Fatalf("ListAircraft failed: %v", err)
	}
	if page.Total != 1 || page.Items[0].ID != "aircraft-002" {
		t.Fatalf("expected serial substring match on aircraft-002, got %+v", page)
	}
	if len(page.Items[0].UsedParts) != 5 {
		t.Errorf("expected used parts loaded, got %d", len(page.Items[0].UsedParts))
	}

	desc, err := store.ListAircraft(ctx, domain.AircraftFilter{Owner: "assembly"}, domain.PageRequest{Limit: 2, Descending: true})
	if err != nil {
		t.Fatalf("ListAircraft failed: %v", err)
	}
	if desc.Total != 3 || len(desc.Items) != 2 || desc.Items[0].ID != "aircraft-003" {
		t.Errorf("unexpected descending page: %+v", desc)
	}
}
