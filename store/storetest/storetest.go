// Package storetest is a conformance suite for store.Blobs backends.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/mapgen/store"
)

// Run checks the store.Blobs contract against backends made by open. Every
// subtest gets a fresh, empty backend.
func Run(t *testing.T, open func(t *testing.T) store.Blobs) {
	t.Run("GetMissing", func(t *testing.T) {
		b := open(t)
		_, err := b.Get(context.Background(), 42)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("PutGetOverwrite", func(t *testing.T) {
		ctx := context.Background()
		b := open(t)
		require.NoError(t, b.Put(ctx, 1, []byte("one")))
		got, err := b.Get(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, []byte("one"), got)

		require.NoError(t, b.Put(ctx, 1, []byte("uno")))
		got, err = b.Get(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, []byte("uno"), got)
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := context.Background()
		b := open(t)
		require.NoError(t, b.Put(ctx, 5, []byte("x")))
		ok, err := b.Delete(ctx, 5)
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = b.Delete(ctx, 5)
		require.NoError(t, err)
		require.False(t, ok)
		_, err = b.Get(ctx, 5)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("IDsSorted", func(t *testing.T) {
		ctx := context.Background()
		b := open(t)
		ids, err := b.IDs(ctx)
		require.NoError(t, err)
		require.Empty(t, ids)

		for _, id := range []uint64{300, 2, 1 << 40, 7, 256} {
			require.NoError(t, b.Put(ctx, id, []byte{byte(id)}))
		}
		ids, err = b.IDs(ctx)
		require.NoError(t, err)
		require.Equal(t, []uint64{2, 7, 256, 300, 1 << 40}, ids)
	})

	t.Run("Sizer", func(t *testing.T) {
		ctx := context.Background()
		b := open(t)
		s, ok := b.(store.Sizer)
		if !ok {
			t.Skip("backend does not implement store.Sizer")
		}
		require.NoError(t, b.Put(ctx, 3, make([]byte, 123)))
		n, err := s.Size(ctx, 3)
		require.NoError(t, err)
		require.EqualValues(t, 123, n)
		_, err = s.Size(ctx, 4)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Concurrent", func(t *testing.T) {
		ctx := context.Background()
		b := open(t)
		var wg sync.WaitGroup
		for w := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range 50 {
					id := uint64(w*100 + i + 1)
					if err := b.Put(ctx, id, []byte(fmt.Sprint(id))); err != nil {
						t.Error(err)
						return
					}
					if _, err := b.Get(ctx, id); err != nil {
						t.Error(err)
						return
					}
				}
			}()
		}
		wg.Wait()
		ids, err := b.IDs(ctx)
		require.NoError(t, err)
		require.Len(t, ids, 400)
	})
}
