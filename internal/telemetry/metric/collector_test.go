package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// staticSource is a fixed stats source for tests.
type staticSource []StoreStat

func (s staticSource) StoreStats() []StoreStat { return s }

func TestCollector_Describe(t *testing.T) {
	c := NewCollector(nil)
	ch := make(chan *prometheus.Desc, 10)

	c.Describe(ch)
	close(ch)

	var n int
	for range ch {
		n++
	}
	if n != 3 {
		t.Errorf("Describe sent %d descriptors, want 3", n)
	}
}

func TestCollector_Collect(t *testing.T) {
	source := staticSource{
		{Name: "inventory", Keys: 12, FileBytes: 2048},
		{Name: "sessions", Keys: 3, FileBytes: 512, SchedulerHalted: true},
	}
	c := NewCollector(source)

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	// Per-store values by family and store label.
	got := map[string]map[string]float64{}
	for _, mf := range families {
		byStore := map[string]float64{}
		for _, m := range mf.GetMetric() {
			var store string
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "store" {
					store = lp.GetValue()
				}
			}
			byStore[store] = m.GetGauge().GetValue()
		}
		got[mf.GetName()] = byStore
	}

	if v := got["jsonkeep_store_keys"]["inventory"]; v != 12 {
		t.Errorf("keys{inventory} = %v, want 12", v)
	}
	if v := got["jsonkeep_store_file_bytes"]["sessions"]; v != 512 {
		t.Errorf("file_bytes{sessions} = %v, want 512", v)
	}
	if v := got["jsonkeep_store_scheduler_halted"]["sessions"]; v != 1 {
		t.Errorf("scheduler_halted{sessions} = %v, want 1", v)
	}
	if v := got["jsonkeep_store_scheduler_halted"]["inventory"]; v != 0 {
		t.Errorf("scheduler_halted{inventory} = %v, want 0", v)
	}
}

func TestCollector_NilSource(t *testing.T) {
	c := NewCollector(nil)
	ch := make(chan prometheus.Metric, 10)

	// Should not panic
	c.Collect(ch)
	close(ch)

	for range ch {
		t.Error("nil source should collect nothing")
	}
}
