// Package fifo implements the first-in first-out eviction order.
package fifo

import (
	"container/list"
	"iter"

	"github.com/IvanBrykalov/mapgen/policy"
)

// Queue keeps ids in admission order: front is the oldest admission.
// Accesses do not reorder the queue.
type Queue[K comparable] struct {
	l   *list.List
	idx map[K]*list.Element // element.Value is K
}

type fifoPolicy[K comparable] struct{}

// New returns a Factory producing FIFO queues. This is the cache default.
func New[K comparable]() policy.Factory[K] { return fifoPolicy[K]{} }

func (fifoPolicy[K]) New() policy.Policy[K] { return NewQueue[K]() }

// NewQueue returns an empty queue.
func NewQueue[K comparable]() *Queue[K] {
	return &Queue[K]{l: list.New(), idx: make(map[K]*list.Element)}
}

// Admit appends k at the back. Re-admitting a known id is a no-op.
func (q *Queue[K]) Admit(k K) {
	if _, ok := q.idx[k]; ok {
		return
	}
	q.idx[k] = q.l.PushBack(k)
}

// Touch is a no-op: FIFO order ignores access recency.
func (q *Queue[K]) Touch(K) {}

// Forget drops k from the queue.
func (q *Queue[K]) Forget(k K) {
	if el, ok := q.idx[k]; ok {
		q.l.Remove(el)
		delete(q.idx, k)
	}
}

// MoveToBack re-queues k as the newest id.
func (q *Queue[K]) MoveToBack(k K) {
	if el, ok := q.idx[k]; ok {
		q.l.MoveToBack(el)
	}
}

// Victims yields ids from the oldest admission to the newest.
func (q *Queue[K]) Victims() iter.Seq[K] {
	return func(yield func(K) bool) {
		for el := q.l.Front(); el != nil; {
			next := el.Next() // el may be removed by Forget inside yield
			if !yield(el.Value.(K)) {
				return
			}
			el = next
		}
	}
}

// Len returns the number of queued ids.
func (q *Queue[K]) Len() int { return q.l.Len() }
