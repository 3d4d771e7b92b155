package stats

import "testing"

func TestSnapshot_HitRate(t *testing.T) {
	t.Parallel()

	var c Counters
	if r := c.Snapshot().HitRate(); r != 0 {
		t.Fatalf("empty hit rate want 0, got %v", r)
	}
	c.Hits.Add(3)
	c.Misses.Add(1)
	c.Evictions.Add(2)

	s := c.Snapshot()
	if s.Hits != 3 || s.Misses != 1 || s.Evictions != 2 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if r := s.HitRate(); r != 0.75 {
		t.Fatalf("hit rate want 0.75, got %v", r)
	}
}
