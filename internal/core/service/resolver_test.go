package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rl1809/aircraft-assembly/internal/core/domain"
)

func TestCheckAvailability_CanAssemble(t *testing.T) {
	f := newFixture(t)
	sel := f.addTB2Kit(t)

	report, err := f.resolver.CheckAvailability(context.Background(), "TB2")
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}

	if !report.CanAssemble {
		t.Fatal("expected TB2 to be assemblable")
	}
	if len(report.Lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(report.Lines))
	}
	want := []domain.PartType{domain.PartTypeBody, domain.PartTypeWing, domain.PartTypeTail, domain.PartTypeAvionics}
	for i, line := range report.Lines {
		if line.Type != want[i] {
			t.Errorf("line %d: expected %s, got %s", i, want[i], line.Type)
		}
		if line.Available != len(sel[line.Type]) || line.Required != len(sel[line.Type]) {
			t.Errorf("%s: expected %d/%d, got %d/%d", line.Type, len(sel[line.Type]), len(sel[line.Type]), line.Available, line.Required)
		}
	}
}

func TestCheckAvailability_Shortfall(t *testing.T) {
	f := newFixture(t)
	f.addParts(t, "TB2", domain.PartTypeWing, 1)
	f.addParts(t, "TB2", domain.PartTypeBody, 1)
	f.addParts(t, "TB2", domain.PartTypeTail, 1)
	f.addParts(t, "TB2", domain.PartTypeAvionics, 1)
	// Wings for another aircraft do not count.
	f.addParts(t, "TB3", domain.PartTypeWing, 3)

	report, err := f.resolver.CheckAvailability(context.Background(), "TB2")
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}

	if report.CanAssemble {
		t.Error("expected TB2 not to be assemblable")
	}
	missing := report.Missing()
	if len(missing) != 1 || missing[0].Type != domain.PartTypeWing || missing[0].Available != 1 {
		t.Errorf("expected WING short by one, got %+v", missing)
	}
	if len(report.Parts()) != 4 {
		t.Errorf("expected available part ids listed even when short, got %d", len(report.Parts()))
	}
}

func TestCheckAvailability_UnknownType(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.CheckAvailability(context.Background(), "F16")

	if !errors.Is(err, domain.ErrUnknownAircraftType) {
		t.Errorf("expected ErrUnknownAircraftType, got %v", err)
	}
}

func TestCheckAvailability_ReadOnly(t *testing.T) {
	f := newFixture(t)
	f.addTB2Kit(t)
	before := f.store.Snapshot()

	first, err := f.resolver.CheckAvailability(context.Background(), "TB2")
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	second, err := f.resolver.CheckAvailability(context.Background(), "TB2")
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("repeated reports differ without intervening writes")
	}
	if !reflect.DeepEqual(before, f.store.Snapshot()) {
		t.Error("availability check changed the store")
	}
}

func TestRequirementsOverview(t *testing.T) {
	f := newFixture(t)
	f.addTB2Kit(t)

	reports, err := f.resolver.RequirementsOverview(context.Background())
	if err != nil {
		t.Fatalf("RequirementsOverview failed: %v", err)
	}

	if len(reports) != 4 {
		t.Fatalf("expected 4 aircraft types, got %d", len(reports))
	}
	for _, r := range reports {
		if want := r.AircraftType == "TB2"; r.CanAssemble != want {
			t.Errorf("%s: expected CanAssemble=%v", r.AircraftType, want)
		}
	}
}

func TestSuggestSelection_OldestFirst(t *testing.T) {
	f := newFixture(t)
	sel := f.addTB2Kit(t)
	f.addParts(t, "TB2", domain.PartTypeWing, 2)

	got, err := f.resolver.SuggestSelection(context.Background(), "TB2")
	if err != nil {
		t.Fatalf("SuggestSelection failed: %v", err)
	}
	if !reflect.DeepEqual(got, sel) {
		t.Errorf("expected oldest parts %v, got %v", sel, got)
	}

	if _, err := f.allocator.Assemble(context.Background(), assembleReq(got)); err != nil {
		t.Errorf("suggested selection did not assemble: %v", err)
	}
}

func TestSuggestSelection_Short(t *testing.T) {
	f := newFixture(t)
	f.addParts(t, "AKINCI", domain.PartTypeTail, 1)

	_, err := f.resolver.SuggestSelection(context.Background(), "AKINCI")

	de := expectCode(t, err, domain.CodeCountMismatch)
	if de.PartType != domain.PartTypeBody {
		t.Errorf("expected first short type BODY, got %s", de.PartType)
	}
}
