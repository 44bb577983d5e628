package scheduler

import "testing"

func TestOrderingByDueCycleThenInsertion(t *testing.T) {
	s := New()
	var order []string
	s.Schedule(5, func() { order = append(order, "a") })
	s.Schedule(10, func() { order = append(order, "c") })
	s.Schedule(5, func() { order = append(order, "b") })

	s.Tick(5)
	if got := len(order); got != 2 {
		t.Fatalf("after tick(5) fired %d events, want 2", got)
	}
	s.Tick(5)
	want := []string{"a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestCallbackCanRescheduleImmediately(t *testing.T) {
	s := New()
	count := 0
	var self func()
	self = func() {
		count++
		if count < 3 {
			s.Schedule(0, self)
		}
	}
	s.Schedule(1, self)
	s.Tick(1)
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestCurrentAdvancesMonotonically(t *testing.T) {
	s := New()
	s.Tick(3)
	s.Tick(4)
	if s.Current() != 7 {
		t.Fatalf("Current() = %d, want 7", s.Current())
	}
}
