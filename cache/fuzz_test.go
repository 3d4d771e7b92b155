package cache

import (
	"context"
	"strings"
	"testing"
)

// Fuzz Insert/Get/Remove semantics under arbitrary ids and values.
// Guards against panics and ensures core invariants hold.
func FuzzCache_InsertGetRemove(f *testing.F) {
	f.Add(uint16(1), "")
	f.Add(uint16(2), "a")
	f.Add(uint16(0), "αβγ")
	f.Add(uint16(65535), "emoji🙂")
	f.Add(uint16(7), strings.Repeat("x", 1024))

	f.Fuzz(func(t *testing.T, id uint16, v string) {
		const limit = 1 << 12
		if len(v) > limit {
			v = v[:limit]
		}
		ctx := context.Background()
		k := int(id)

		st := newMemStore(0, nil)
		c := New[int, string](st, Options[int, string]{HardMaxSize: 1 << 20})
		t.Cleanup(func() { _ = c.Close() })

		if ok, err := c.Insert(ctx, k, v); err != nil || !ok {
			t.Fatalf("Insert: ok=%v err=%v", ok, err)
		}
		if got, ok := get(t, c, k); !ok || got != v {
			t.Fatalf("after Insert/Get: want %q, got %q ok=%v", v, got, ok)
		}
		if ok, _ := c.Insert(ctx, k, "other"); ok {
			t.Fatal("duplicate Insert returned true")
		}

		// through the store and back
		if _, err := c.Flush(ctx); err != nil {
			t.Fatal(err)
		}
		if got, ok := get(t, c, k); !ok || got != v {
			t.Fatalf("after Flush/Get: want %q, got %q ok=%v", v, got, ok)
		}
		checkSize(t, c)

		if ok, err := c.Remove(ctx, k); err != nil || !ok {
			t.Fatalf("Remove: ok=%v err=%v", ok, err)
		}
		if _, ok := get(t, c, k); ok {
			t.Fatal("id must be absent after Remove")
		}
		if ok, _ := c.Insert(ctx, k, v); !ok {
			t.Fatal("Insert after Remove must succeed")
		}
		checkSize(t, c)
	})
}
