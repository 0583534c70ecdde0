package metric

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// gatheredValue returns the summed value of the named metric family, and
// whether it was present at all.
func gatheredValue(t *testing.T, g prometheus.Gatherer, name string) (float64, bool) {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var sum float64
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
			sum += m.GetGauge().GetValue()
		}
		return sum, true
	}
	return 0, false
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry returned nil")
	}

	r.RequestsTotal.WithLabelValues("GET", "/v1/stores", "200").Inc()
	r.StoresAttached.Set(3)
	r.StoreOpsTotal.WithLabelValues("inventory", "set").Add(5)
	r.SnapshotsTotal.WithLabelValues("inventory").Inc()
	r.AuthValidations.WithLabelValues("ok").Inc()
	r.RESPCommands.WithLabelValues("GET").Inc()
	r.RESPConnections.Inc()

	tests := []struct {
		name string
		want float64
	}{
		{"jsonkeep_http_requests_total", 1},
		{"jsonkeep_store_attached", 3},
		{"jsonkeep_store_ops_total", 5},
		{"jsonkeep_snapshot_created_total", 1},
		{"jsonkeep_auth_validations_total", 1},
		{"jsonkeep_resp_commands_total", 1},
		{"jsonkeep_resp_connections_active", 1},
	}
	for _, tt := range tests {
		got, ok := gatheredValue(t, r.Gatherer(), tt.name)
		if !ok {
			t.Errorf("metric %s not registered", tt.name)
			continue
		}
		if got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRegistry_RequestDuration(t *testing.T) {
	r := NewRegistry()
	r.RequestDuration.WithLabelValues("GET", "/v1/stores").Observe(0.042)

	families, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "jsonkeep_http_request_duration_seconds" {
			continue
		}
		m := mf.GetMetric()[0].GetHistogram()
		if m.GetSampleCount() != 1 {
			t.Errorf("SampleCount = %d, want 1", m.GetSampleCount())
		}
		return
	}
	t.Error("request duration histogram not registered")
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.RequestsTotal.WithLabelValues("GET", "/healthz", "200").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "jsonkeep_http_requests_total") {
		t.Error("exposition should contain jsonkeep_http_requests_total")
	}
	if !strings.Contains(body, `route="/healthz"`) {
		t.Error("exposition should carry the route label")
	}
}

func TestRegistry_RegisterCustomCollector(t *testing.T) {
	r := NewRegistry()
	c := NewCollector(staticSource{{Name: "data", Keys: 2, FileBytes: 64}})

	if err := r.Register(c); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, ok := gatheredValue(t, r.Gatherer(), "jsonkeep_store_keys")
	if !ok {
		t.Fatal("jsonkeep_store_keys not collected")
	}
	if got != 2 {
		t.Errorf("jsonkeep_store_keys = %v, want 2", got)
	}
}
