package sqlstore

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/mapgen/store"
	"github.com/IvanBrykalov/mapgen/store/storetest"
)

func open(t *testing.T) store.Blobs {
	s, err := Open(filepath.Join(t.TempDir(), "tiles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, open)
}

func TestIDOutOfRange(t *testing.T) {
	s := open(t)
	err := s.Put(context.Background(), math.MaxInt64+1, []byte("x"))
	require.Error(t, err)
}

func TestOpenViaRegistry(t *testing.T) {
	b, err := store.Open("sqlite", filepath.Join(t.TempDir(), "r.db"))
	require.NoError(t, err)
	require.NoError(t, b.Close())
}
