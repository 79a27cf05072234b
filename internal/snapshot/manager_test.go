package snapshot

import "testing"

func TestTickFiresExactlyEveryIntervalOps(t *testing.T) {
	m := NewManager(3)
	want := []bool{false, false, true, false, false, true}
	for i, w := range want {
		if got := m.Tick(); got != w {
			t.Fatalf("tick %d: got %v, want %v", i, got, w)
		}
	}
}

func TestTickWithIntervalOfOneFiresEveryCall(t *testing.T) {
	m := NewManager(1)
	for i := 0; i < 5; i++ {
		if !m.Tick() {
			t.Fatalf("tick %d: expected fire with interval 1", i)
		}
	}
}
