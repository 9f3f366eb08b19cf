package pqueue

import (
	"container/heap"
)

// Queue is a single-ended priority-queue that allows reordering and removal
// of arbitrary elements.
//
// Elements for which less reports true appear closer to the front of the
// queue. The same element may be indexed by several queues with different
// orderings.
type Queue[E comparable] struct {
	heap  qheap[E]
	items map[E]*item[E]
}

// New returns a queue ordered by the given comparison function.
func New[E comparable](less func(a, b E) bool) *Queue[E] {
	return &Queue[E]{
		heap:  qheap[E]{less: less},
		items: map[E]*item[E]{},
	}
}

// Len returns the number of elements on the queue.
func (q *Queue[E]) Len() int {
	return q.heap.Len()
}

// Push adds an element to the queue.
//
// It returns true if e is at the front of the queue.
func (q *Queue[E]) Push(e E) bool {
	it := &item[E]{
		elem:  e,
		index: q.heap.Len(),
	}

	q.items[e] = it
	heap.Push(&q.heap, it)

	return it.index == 0
}

// Peek returns the element at the front of the queue without removing it.
//
// It returns false if the queue is empty.
func (q *Queue[E]) Peek() (E, bool) {
	if q.heap.Len() == 0 {
		var zero E
		return zero, false
	}

	return q.heap.items[0].elem, true
}

// Pop removes the element at the front of the queue and returns it.
//
// It returns false if the queue is empty.
func (q *Queue[E]) Pop() (E, bool) {
	if q.heap.Len() == 0 {
		var zero E
		return zero, false
	}

	it := heap.Pop(&q.heap).(*item[E])
	delete(q.items, it.elem)

	return it.elem, true
}

// Remove removes e from the queue.
//
// It returns false if e is not on the queue.
func (q *Queue[E]) Remove(e E) bool {
	if it, ok := q.items[e]; ok {
		heap.Remove(&q.heap, it.index)
		delete(q.items, e)

		return true
	}

	return false
}

// Update reorders the queue after the ordering of e has changed.
//
// It returns false if e is not on the queue.
func (q *Queue[E]) Update(e E) bool {
	if it, ok := q.items[e]; ok {
		heap.Fix(&q.heap, it.index)
		return true
	}

	return false
}

// item is an element on the queue, together with its position in the heap.
type item[E comparable] struct {
	elem  E
	index int
}

// qheap is the implementation of heap.Interface.
type qheap[E comparable] struct {
	less  func(a, b E) bool
	items []*item[E]
}

func (h *qheap[E]) Len() int {
	return len(h.items)
}

func (h *qheap[E]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *qheap[E]) Less(i, j int) bool {
	return h.less(
		h.items[i].elem,
		h.items[j].elem,
	)
}

func (h *qheap[E]) Push(it any) {
	h.items = append(h.items, it.(*item[E]))
}

func (h *qheap[E]) Pop() any {
	index := len(h.items) - 1
	it := h.items[index]

	h.items[index] = nil // avoid memory leak
	h.items = h.items[:index]

	return it
}
