package strategy

import (
	"testing"

	"backlab/internal/domain"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.Strategy{Name: "test-strategy"})

	got, ok := r.Get("test-strategy")
	if !ok {
		t.Fatal("Get returned false for registered preset")
	}
	if got.Name != "test-strategy" {
		t.Errorf("Get returned preset with Name = %q, want %q", got.Name, "test-strategy")
	}
}

func TestRegistryGet_NotFound(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("nonexistent")
	if ok {
		t.Error("Get returned true for unregistered preset")
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.Strategy{Name: "beta"})
	r.Register(domain.Strategy{Name: "alpha"})

	names := r.List()
	if len(names) != 2 {
		t.Fatalf("List returned %d names, want 2", len(names))
	}
	// List returns sorted names.
	if names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("List returned %v, want [alpha beta]", names)
	}
}

func TestBuiltins(t *testing.T) {
	r := Builtins()

	want := []string{"ema-momentum", "macd-cross", "rsi-reversion", "sma-trend"}
	got := r.List()
	if len(got) != len(want) {
		t.Fatalf("Builtins registered %d presets, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("preset %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuiltinsAreRunnable(t *testing.T) {
	known := map[string]bool{"rsi": true, "ema": true, "sma": true, "macd": true}

	r := Builtins()
	for _, name := range r.List() {
		preset, _ := r.Get(name)
		if len(preset.Indicators) == 0 {
			t.Errorf("preset %q declares no indicators", name)
		}
		for _, spec := range preset.Indicators {
			if !known[spec.Name] {
				t.Errorf("preset %q uses unknown indicator %q", name, spec.Name)
			}
		}
		if len(preset.EntryConditions) == 0 {
			t.Errorf("preset %q has no entry conditions and can never trade", name)
		}
		if preset.RiskLevel.Multiplier() <= 0 {
			t.Errorf("preset %q has non-positive position sizing", name)
		}
	}
}
