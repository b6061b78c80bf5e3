package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveAssembly(t *testing.T) {
	before := testutil.ToFloat64(AssembliesTotal.WithLabelValues("TB2", OutcomeCommitted))

	ObserveAssembly("TB2", OutcomeCommitted, 15*time.Millisecond)

	after := testutil.ToFloat64(AssembliesTotal.WithLabelValues("TB2", OutcomeCommitted))
	if after-before != 1 {
		t.Errorf("expected counter to grow by 1, got %v", after-before)
	}
}

func TestObserveAvailability(t *testing.T) {
	before := testutil.ToFloat64(AvailabilityChecksTotal.WithLabelValues("TB3", "false"))

	ObserveAvailability("TB3", false)
	ObserveAvailability("TB3", false)

	after := testutil.ToFloat64(AvailabilityChecksTotal.WithLabelValues("TB3", "false"))
	if after-before != 2 {
		t.Errorf("expected counter to grow by 2, got %v", after-before)
	}
}
