package observability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheus(reg)
	if err != nil {
		t.Fatalf("NewPrometheus: %v", err)
	}
	ctx := context.Background()
	rec.Observe(ctx, "get_transitions", true, 10*time.Millisecond)
	rec.Observe(ctx, "get_transitions", true, 20*time.Millisecond)
	rec.Observe(ctx, "get_transitions", false, time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)

	if got := testutil.ToFloat64(rec.operations.WithLabelValues("get_transitions", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("get_transitions", "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if n := testutil.CollectAndCount(rec.durations); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}
	expected := `
# HELP transitions_operations_total Transition operations by outcome.
# TYPE transitions_operations_total counter
transitions_operations_total{operation="get_transitions",status="error"} 1
transitions_operations_total{operation="get_transitions",status="success"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "transitions_operations_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
	if _, err := NewPrometheus(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestExpvarRecorder(t *testing.T) {
	rec := NewExpvar("")
	if !strings.HasPrefix(rec.Name(), "transitions_metrics_") {
		t.Fatalf("unexpected generated name %q", rec.Name())
	}
	rec.Observe(context.Background(), "export", true, 2*time.Millisecond)
	rec.Observe(context.Background(), "export", false, 3*time.Millisecond)
	snap := rec.Snapshot()
	if snap.DurationsMS["export"] != 5 {
		t.Fatalf("expected 5ms total, got %v", snap.DurationsMS["export"])
	}
	if snap.Results["export"]["success"] != 1 || snap.Results["export"]["error"] != 1 {
		t.Fatalf("unexpected results %+v", snap.Results)
	}
	snap.Results["export"]["success"] = 99
	if rec.Snapshot().Results["export"]["success"] != 1 {
		t.Fatalf("snapshot should be a copy")
	}
}

type captured struct {
	ops     []string
	success []bool
}

func (c *captured) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.ops = append(c.ops, op)
	c.success = append(c.success, success)
}

func TestTimeAndMulti(t *testing.T) {
	a, b := &captured{}, &captured{}
	rec := Multi{a, nil, b}
	boom := errors.New("boom")
	if err := Time(context.Background(), rec, "run", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected error passthrough, got %v", err)
	}
	if err := Time(context.Background(), rec, "run", func() error { return nil }); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	for _, c := range []*captured{a, b} {
		if len(c.ops) != 2 || c.success[0] || !c.success[1] {
			t.Fatalf("unexpected observations %+v", c)
		}
	}
	if err := Time(context.Background(), nil, "run", func() error { return nil }); err != nil {
		t.Fatalf("nil recorder: %v", err)
	}
	Nop{}.Observe(context.Background(), "x", true, 0)
}
