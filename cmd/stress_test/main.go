package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/aircraft-assembly/internal/adapter/storage"
	"github.com/rl1809/aircraft-assembly/internal/core/catalog"
	"github.com/rl1809/aircraft-assembly/internal/core/domain"
	"github.com/rl1809/aircraft-assembly/internal/core/service"
	"github.com/rl1809/aircraft-assembly/internal/port"
)

const aircraftType domain.AircraftType = catalog.AircraftTB2

func main() {
	driver := flag.String("driver", "memory", "store driver: memory or sqlite")
	kits := flag.Int("kits", 20, "number of complete TB2 kits to produce")
	workers := flag.Int("workers", 50, "concurrent assemblers")
	maxAttempts := flag.Int("attempts", 10, "assembly attempts per worker on conflict")
	flag.Parse()

	ctx := context.Background()
	logger := zap.NewNop()

	store, cleanup, err := openStore(ctx, *driver)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer cleanup()

	cat := catalog.Default()
	policy := service.NewTeamPolicy()
	inventory := service.NewInventoryService(store, cat, policy, logger)
	resolver := service.NewAvailabilityResolver(store, cat, logger)
	allocator := service.NewAssemblyAllocator(store, cat, policy, nil, logger)

	req, err := cat.RequirementsFor(aircraftType)
	if err != nil {
		log.Fatalf("failed to read requirements: %v", err)
	}
	for _, pt := range req.PartTypes() {
		producer := domain.Caller{Team: "team-" + string(pt), TeamType: domain.TeamType(pt)}
		for i := 0; i < req[pt]*(*kits); i++ {
			if _, err := inventory.CreatePart(ctx, service.CreatePartRequest{
				Caller: producer, Type: pt, AircraftType: aircraftType,
			}); err != nil {
				log.Fatalf("failed to produce %s: %v", pt, err)
			}
		}
	}
	log.Printf("produced %d kits of %s parts", *kits, aircraftType)

	// Counters
	var successCount, conflictCount, exhaustedCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			caller := domain.Caller{Member: fmt.Sprintf("worker-%d", worker), Team: "assembly", TeamType: domain.TeamTypeAssembly}

			for attempt := 0; attempt < *maxAttempts; attempt++ {
				sel, err := resolver.SuggestSelection(ctx, aircraftType)
				if errors.Is(err, domain.ErrCountMismatch) {
					exhaustedCount.Add(1)
					return
				}
				if err != nil {
					log.Printf("worker %d: resolve failed: %v", worker, err)
					return
				}

				_, err = allocator.Assemble(ctx, service.AssembleRequest{
					Caller:       caller,
					AircraftType: aircraftType,
					Selection:    sel,
				})
				if err == nil {
					successCount.Add(1)
					return
				}
				if de, ok := domain.AsError(err); ok && de.Retryable() {
					conflictCount.Add(1)
					continue
				}
				// Validation saw a part another worker consumed first.
				if errors.Is(err, domain.ErrPartUnavailable) {
					conflictCount.Add(1)
					continue
				}
				log.Printf("worker %d: assemble failed: %v", worker, err)
				return
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	expected := int32(*kits)
	if int32(*workers) < expected {
		expected = int32(*workers)
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Store:            %s\n", *driver)
	fmt.Printf("Kits Produced:    %d\n", *kits)
	fmt.Printf("Workers:          %d\n", *workers)
	fmt.Printf("Assembled:        %d\n", success)
	fmt.Printf("Lost Races:       %d\n", conflictCount.Load())
	fmt.Printf("Out Of Stock:     %d\n", exhaustedCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == expected {
		fmt.Printf("PASS: Exactly %d aircraft assembled\n", expected)
	} else {
		fmt.Printf("FAIL: Expected %d aircraft, got %d\n", expected, success)
	}

	if err := verifyExclusivity(ctx, store); err != nil {
		fmt.Printf("FAIL: %v\n", err)
	} else {
		fmt.Println("PASS: Every consumed part belongs to exactly one aircraft")
	}
}

func openStore(ctx context.Context, driver string) (port.InventoryStore, func(), error) {
	switch driver {
	case storage.DriverMemory:
		return storage.NewMemoryStore(), func() {}, nil
	case storage.DriverSQLite:
		dir, err := os.MkdirTemp("", "assembly-stress-")
		if err != nil {
			return nil, nil, err
		}
		store, err := storage.OpenSQLStore(ctx, storage.DriverSQLite, filepath.Join(dir, "stress.db"), storage.PoolOptions{})
		if err != nil {
			os.RemoveAll(dir)
			return nil, nil, err
		}
		return store, func() {
			store.Close()
			os.RemoveAll(dir)
		}, nil
	}
	return nil, nil, fmt.Errorf("unsupported driver %q", driver)
}

func verifyExclusivity(ctx context.Context, store port.InventoryStore) error {
	owners := make(map[string]string)
	for offset := 0; ; offset += domain.MaxPageSize {
		page, err := store.ListAircraft(ctx, domain.AircraftFilter{}, domain.PageRequest{Offset: offset, Limit: domain.MaxPageSize})
		if err != nil {
			return err
		}
		for _, a := range page.Items {
			for _, id := range a.PartIDs() {
				if prev, dup := owners[id]; dup {
					return fmt.Errorf("part %s used by %s and %s", id, prev, a.ID)
				}
				owners[id] = a.ID
			}
		}
		if offset+len(page.Items) >= page.Total {
			return nil
		}
	}
}
