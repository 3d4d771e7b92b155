package cache

import (
	"context"
	"fmt"
	"slices"
)

// firstID is the lowest id handed out by InsertNew.
const firstID = 1

// idPool hands out ids for InsertNew: first the gaps reported by the Store
// and ids released by Remove, then ids counting up from past the largest
// known id. Guarded by the cache lock.
type idPool[K ID] struct {
	loaded bool
	free   []K // ascending, deduplicated once loaded
	next   K
}

// ensure fills the pool from lister on first use. known are ids the cache
// knows about besides the Store (resident entries).
func (p *idPool[K]) ensure(ctx context.Context, lister IDLister[K], known func(func(K))) error {
	if p.loaded {
		return nil
	}
	var maxID K = firstID - 1
	bump := func(id K) {
		if id > maxID {
			maxID = id
		}
	}
	if lister != nil {
		used, err := lister.UsedIDs(ctx)
		if err != nil {
			return fmt.Errorf("cache: list used ids: %w", err)
		}
		free, err := lister.FreeIDs(ctx)
		if err != nil {
			return fmt.Errorf("cache: list free ids: %w", err)
		}
		for _, id := range used {
			bump(id)
		}
		for _, id := range free {
			bump(id)
		}
		p.free = append(p.free, free...)
	}
	for _, id := range p.free {
		bump(id)
	}
	known(bump)

	slices.Sort(p.free)
	p.free = slices.Compact(p.free)
	p.next = maxID + 1
	p.loaded = true
	return nil
}

// take returns the next candidate id. The caller still has to check that the
// id is neither resident nor present upstream.
func (p *idPool[K]) take() K {
	for len(p.free) > 0 {
		id := p.free[0]
		p.free = p.free[1:]
		if id >= firstID {
			return id
		}
	}
	id := p.next
	p.next++
	return id
}

// release makes id available again.
func (p *idPool[K]) release(id K) {
	if id < firstID {
		return
	}
	if !p.loaded {
		p.free = append(p.free, id)
		return
	}
	i, found := slices.BinarySearch(p.free, id)
	if !found {
		p.free = slices.Insert(p.free, i, id)
	}
}

// used records an id taken outside the pool (explicit Insert or a load).
func (p *idPool[K]) used(id K) {
	if !p.loaded {
		return
	}
	if i, found := slices.BinarySearch(p.free, id); found {
		p.free = slices.Delete(p.free, i, i+1)
	}
	if id >= p.next {
		p.next = id + 1
	}
}
