// Package lru implements the least-recently-used eviction order.
package lru

import (
	"github.com/IvanBrykalov/mapgen/policy"
	"github.com/IvanBrykalov/mapgen/policy/fifo"
)

// lru is a "move-to-back on access" queue: the front is the least recently
// borrowed id.
type lru[K comparable] struct {
	*fifo.Queue[K]
}

type lruPolicy[K comparable] struct{}

// New returns a Factory that constructs LRU instances.
func New[K comparable]() policy.Factory[K] { return lruPolicy[K]{} }

// New implements policy.Factory.
func (lruPolicy[K]) New() policy.Policy[K] {
	return &lru[K]{Queue: fifo.NewQueue[K]()}
}

// Touch promotes k to most recently used.
func (p *lru[K]) Touch(k K) { p.MoveToBack(k) }
