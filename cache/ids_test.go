package cache

import (
	"context"
	"slices"
	"testing"
)

type listStub struct{ used, free []int }

func (l listStub) UsedIDs(context.Context) ([]int, error) { return l.used, nil }
func (l listStub) FreeIDs(context.Context) ([]int, error) { return l.free, nil }

func TestIDPool_GapsFirst(t *testing.T) {
	t.Parallel()

	var p idPool[int]
	err := p.ensure(context.Background(), listStub{used: []int{1, 2, 5}, free: []int{3, 4, 6}}, func(func(int)) {})
	if err != nil {
		t.Fatal(err)
	}
	var got []int
	for range 5 {
		got = append(got, p.take())
	}
	if !slices.Equal(got, []int{3, 4, 6, 7, 8}) {
		t.Fatalf("want [3 4 6 7 8], got %v", got)
	}
}

func TestIDPool_ReleaseAndUsed(t *testing.T) {
	t.Parallel()

	var p idPool[int]
	p.release(9) // before load
	p.release(0) // below firstID, ignored
	if err := p.ensure(context.Background(), nil, func(bump func(int)) { bump(4) }); err != nil {
		t.Fatal(err)
	}
	if got := p.take(); got != 9 {
		t.Fatalf("released id first, got %d", got)
	}
	if got := p.take(); got != 10 {
		t.Fatalf("then past the maximum, got %d", got)
	}

	p.release(2)
	p.release(2)
	p.used(2)
	p.used(20)
	if got := p.take(); got != 21 {
		t.Fatalf("ids taken elsewhere are skipped, got %d", got)
	}
}

func TestIDPool_EmptyStartsAtOne(t *testing.T) {
	t.Parallel()

	var p idPool[uint32]
	if err := p.ensure(context.Background(), nil, func(func(uint32)) {}); err != nil {
		t.Fatal(err)
	}
	if got := p.take(); got != firstID {
		t.Fatalf("want %d, got %d", firstID, got)
	}
}
