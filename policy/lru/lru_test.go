package lru

import (
	"slices"
	"testing"
)

// Touch must move the id to the back of the victim order.
func TestLRU_TouchPromotes(t *testing.T) {
	t.Parallel()

	p := New[int]().New()
	p.Admit(1)
	p.Admit(2)
	p.Admit(3)
	p.Touch(1)

	var got []int
	for k := range p.Victims() {
		got = append(got, k)
	}
	if want := []int{2, 3, 1}; !slices.Equal(got, want) {
		t.Fatalf("victims want %v, got %v", want, got)
	}
}

// Forget removes the id and Len follows.
func TestLRU_Forget(t *testing.T) {
	t.Parallel()

	p := New[int]().New()
	p.Admit(1)
	p.Admit(2)
	p.Forget(1)
	p.Touch(1) // unknown id: no-op

	if p.Len() != 1 {
		t.Fatalf("Len want 1, got %d", p.Len())
	}
	for k := range p.Victims() {
		if k != 2 {
			t.Fatalf("unexpected victim %d", k)
		}
	}
}
