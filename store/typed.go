package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/IvanBrykalov/mapgen/cache"
)

// Codec turns values into blobs and back.
type Codec[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

// Msgpack is the msgpack Codec for *T.
type Msgpack[T any] struct{}

func (Msgpack[T]) Marshal(v *T) ([]byte, error) { return msgpack.Marshal(v) }

func (Msgpack[T]) Unmarshal(data []byte) (*T, error) {
	v := new(T)
	if err := msgpack.Unmarshal(data, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Typed adapts a Blobs backend and a Codec into a cache.Store. The recorded
// size of an object is the length of its encoding.
type Typed[K cache.ID, V any] struct {
	blobs Blobs
	codec Codec[V]
}

var (
	_ cache.Store[uint64, *struct{}] = (*Typed[uint64, *struct{}])(nil)
	_ cache.IDLister[uint64]         = (*Typed[uint64, *struct{}])(nil)
)

// NewTyped returns the typed view of b.
func NewTyped[K cache.ID, V any](b Blobs, codec Codec[V]) *Typed[K, V] {
	return &Typed[K, V]{blobs: b, codec: codec}
}

// Blobs returns the underlying backend.
func (t *Typed[K, V]) Blobs() Blobs { return t.blobs }

func (t *Typed[K, V]) Load(ctx context.Context, id K) (V, int64, bool, error) {
	var zero V
	data, err := t.blobs.Get(ctx, uint64(id))
	if errors.Is(err, ErrNotFound) {
		return zero, 0, false, nil
	}
	if err != nil {
		return zero, 0, false, err
	}
	v, err := t.codec.Unmarshal(data)
	if err != nil {
		return zero, 0, false, fmt.Errorf("store: decode %v: %w", id, err)
	}
	return v, int64(len(data)), true, nil
}

func (t *Typed[K, V]) Save(ctx context.Context, id K, v V) (int64, error) {
	data, err := t.codec.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("store: encode %v: %w", id, err)
	}
	if err := t.blobs.Put(ctx, uint64(id), data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (t *Typed[K, V]) Erase(ctx context.Context, id K) (bool, error) {
	return t.blobs.Delete(ctx, uint64(id))
}

func (t *Typed[K, V]) UsedIDs(ctx context.Context) ([]K, error) {
	raw, err := t.blobs.IDs(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]K, len(raw))
	for i, id := range raw {
		ids[i] = K(id)
	}
	return ids, nil
}

// FreeIDs returns the gaps between the stored ids, starting at 1, plus the id
// one past the largest.
func (t *Typed[K, V]) FreeIDs(ctx context.Context) ([]K, error) {
	raw, err := t.blobs.IDs(ctx)
	if err != nil {
		return nil, err
	}
	return freeIDs[K](raw), nil
}

func freeIDs[K cache.ID](used []uint64) []K {
	var free []K
	next := uint64(1)
	for _, id := range used {
		for ; next < id; next++ {
			free = append(free, K(next))
		}
		if id >= next {
			next = id + 1
		}
	}
	return append(free, K(next))
}

// Size returns the stored size of id, or 0 if it is unknown.
func (t *Typed[K, V]) Size(ctx context.Context, id K) (int64, error) {
	if s, ok := t.blobs.(Sizer); ok {
		n, err := s.Size(ctx, uint64(id))
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return n, err
	}
	data, err := t.blobs.Get(ctx, uint64(id))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	return int64(len(data)), err
}
