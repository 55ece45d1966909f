package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestVaultMetrics(t *testing.T) {
	m := Vault()
	before := testutil.ToFloat64(m.operations.WithLabelValues("put", "failure"))
	m.ObserveOperation("put", "invariant", time.Millisecond)
	m.ObserveOperation("put", "", time.Millisecond)
	if got := testutil.ToFloat64(m.operations.WithLabelValues("put", "failure")); got != before+1 {
		t.Fatalf("expected failure count %v, got %v", before+1, got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues("put", "invariant")); got < 1 {
		t.Fatalf("expected invariant failure recorded, got %v", got)
	}
	m.SetBurned(1000)
	if got := testutil.ToFloat64(m.burned); got != 1000 {
		t.Fatalf("expected burned gauge 1000, got %v", got)
	}
	if Vault() != m {
		t.Fatalf("registry must be a singleton")
	}
}

func TestRPCMetricsCodeLabels(t *testing.T) {
	m := RPC()
	m.ObserveRequest("put", 0)
	m.ObserveRequest("put", -32602)
	if got := testutil.ToFloat64(m.requests.WithLabelValues("put", "-32602")); got != 1 {
		t.Fatalf("expected one invalid-params request, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("put", "ok")); got != 1 {
		t.Fatalf("expected one ok request, got %v", got)
	}
}

func TestEventMetrics(t *testing.T) {
	m := Events()
	m.RecordEvent(" Stake.Locked ")
	if got := testutil.ToFloat64(m.emitted.WithLabelValues("stake.locked")); got != 1 {
		t.Fatalf("expected normalized event label, got %v", got)
	}
}
