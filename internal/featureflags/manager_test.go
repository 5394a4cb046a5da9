package featureflags

import "testing"

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	if !m.Enabled("a", 1) || !m.Enabled("c", 1) || !m.Enabled("e", 1) {
		t.Fatal("expected enabled boolean values to evaluate true")
	}
	if m.Enabled("b", 1) || m.Enabled("d", 1) || m.Enabled("f", 1) {
		t.Fatal("expected disabled boolean values to evaluate false")
	}
	if m.Enabled("missing", 1) {
		t.Fatal("unknown flags must be off")
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,junk=abc%")

	if !m.Enabled("always", 1) {
		t.Fatal("100% rollout should always be enabled")
	}
	if m.Enabled("never", 1) || m.Enabled("junk", 1) {
		t.Fatal("0% and malformed rollouts should be disabled")
	}

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		if got := m.Enabled("canary", 42); got != first {
			t.Fatal("rollout evaluation must be deterministic per user")
		}
	}

	if m.Enabled("canary", 0) {
		t.Fatal("percentage rollout requires non-zero userID")
	}
}

func TestDefaults(t *testing.T) {
	m := NewManager("")
	if m.Enabled(ShareWebP, 1) {
		t.Fatal("share_webp should default to off")
	}
	if !m.Enabled(InvoiceStorage, 1) {
		t.Fatal("invoice_storage should default to on")
	}

	m = NewManager("SHARE_WEBP=on")
	if !m.Enabled(ShareWebP, 7) {
		t.Fatal("configured value should override the default")
	}
}

func TestNamesAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off ")

	names := m.Names()
	want := []string{InvoiceStorage, ShareWebP, "x", "y", "z"}
	if len(names) != len(want) {
		t.Fatalf("expected %d flags, got %v", len(want), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected sorted names %v, got %v", want, names)
		}
	}

	snap := m.Snapshot(123)
	if len(snap) != len(want) || !snap["x"] || snap["z"] {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
}

func TestNilManager(t *testing.T) {
	var m *Manager
	if m.Enabled(ShareWebP, 1) {
		t.Fatal("nil manager must report flags off")
	}
	if len(m.Snapshot(1)) != 0 {
		t.Fatal("nil manager snapshot must be empty")
	}
}
