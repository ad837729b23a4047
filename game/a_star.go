package game

import (
	"container/heap"
	"fmt"
	"strings"
)

// Less reports whether node a should be expanded before node b.
type Less func(a, b int32) bool

// OpenSet is the frontier of a search, holding node indices ordered by Less.
type OpenSet interface {
	Insert(n int32) error
	PopBest() (int32, error)
	Len() int
	Reset()
}

// QueueKind selects the OpenSet implementation a Worker uses.
type QueueKind int

const (
	// QueueSorted keeps the whole frontier sorted with insertion steps.
	QueueSorted QueueKind = iota
	// QueueHeap keeps the frontier as a binary heap.
	QueueHeap
)

// String returns the config name of the queue kind.
func (k QueueKind) String() string {
	switch k {
	case QueueSorted:
		return "sorted"
	case QueueHeap:
		return "heap"
	default:
		return fmt.Sprintf("QueueKind(%d)", int(k))
	}
}

// ParseQueueKind maps a config name to a QueueKind.
func ParseQueueKind(name string) (QueueKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sorted":
		return QueueSorted, nil
	case "heap":
		return QueueHeap, nil
	default:
		return 0, fmt.Errorf("unknown queue kind %q", name)
	}
}

// NewOpenSet creates an OpenSet of the given kind.
func NewOpenSet(kind QueueKind, capacity int, less Less) (OpenSet, error) {
	switch kind {
	case QueueSorted:
		return NewSortedQueue(capacity, less)
	case QueueHeap:
		return NewHeapQueue(capacity, less)
	default:
		return nil, fmt.Errorf("unknown queue kind %v", kind)
	}
}

func checkCapacity(capacity int) error {
	if capacity <= 0 || capacity > MaxGridCells {
		return fmt.Errorf("queue capacity %d outside 1..%d: %w", capacity, MaxGridCells, ErrCapacityExceeded)
	}
	return nil
}

// SortedQueue is an array kept fully sorted at all times, worst element
// first and best element last. Insert is O(k) in the number of elements the
// new one must pass; PopBest is O(1).
type SortedQueue struct {
	items []int32
	less  Less
}

// NewSortedQueue preallocates a queue for up to capacity elements.
func NewSortedQueue(capacity int, less Less) (*SortedQueue, error) {
	if err := checkCapacity(capacity); err != nil {
		return nil, err
	}
	return &SortedQueue{
		items: make([]int32, 0, capacity),
		less:  less,
	}, nil
}

// Insert appends n then walks it toward the front past every element it
// beats, so the best element stays at the end.
func (q *SortedQueue) Insert(n int32) error {
	if len(q.items) == cap(q.items) {
		return ErrQueueFull
	}
	q.items = append(q.items, n)
	for i := len(q.items) - 1; i > 0 && q.less(q.items[i-1], q.items[i]); i-- {
		q.items[i-1], q.items[i] = q.items[i], q.items[i-1]
	}
	return nil
}

// PopBest removes and returns the best element.
func (q *SortedQueue) PopBest() (int32, error) {
	n := len(q.items)
	if n == 0 {
		return -1, ErrQueueEmpty
	}
	best := q.items[n-1]
	q.items = q.items[:n-1]
	return best, nil
}

// Len returns the number of queued elements.
func (q *SortedQueue) Len() int { return len(q.items) }

// Reset empties the queue without releasing its storage.
func (q *SortedQueue) Reset() { q.items = q.items[:0] }

// Sorted reports whether every element beats the one before it.
func (q *SortedQueue) Sorted() bool {
	for i := 1; i < len(q.items); i++ {
		if !q.less(q.items[i], q.items[i-1]) {
			return false
		}
	}
	return true
}

// Items returns a copy of the backing array, worst first.
func (q *SortedQueue) Items() []int32 {
	out := make([]int32, len(q.items))
	copy(out, q.items)
	return out
}

// HeapQueue is a binary min-heap over node indices.
type HeapQueue struct {
	h nodeHeap
}

// NewHeapQueue preallocates a heap for up to capacity elements.
func NewHeapQueue(capacity int, less Less) (*HeapQueue, error) {
	if err := checkCapacity(capacity); err != nil {
		return nil, err
	}
	return &HeapQueue{h: nodeHeap{items: make([]int32, 0, capacity), less: less}}, nil
}

// Insert pushes n onto the heap.
func (q *HeapQueue) Insert(n int32) error {
	if len(q.h.items) == cap(q.h.items) {
		return ErrQueueFull
	}
	heap.Push(&q.h, n)
	return nil
}

// PopBest removes and returns the best element.
func (q *HeapQueue) PopBest() (int32, error) {
	if len(q.h.items) == 0 {
		return -1, ErrQueueEmpty
	}
	return heap.Pop(&q.h).(int32), nil
}

// Len returns the number of queued elements.
func (q *HeapQueue) Len() int { return len(q.h.items) }

// Reset empties the heap without releasing its storage.
func (q *HeapQueue) Reset() { q.h.items = q.h.items[:0] }

// nodeHeap implements heap.Interface for HeapQueue.
type nodeHeap struct {
	items []int32
	less  Less
}

// Len returns the length of the heap.
func (h nodeHeap) Len() int { return len(h.items) }

// Less orders the heap so the best node is at the root.
func (h nodeHeap) Less(i, j int) bool { return h.less(h.items[i], h.items[j]) }

// Swap swaps two entries.
func (h nodeHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

// Push adds an entry; called by container/heap.
func (h *nodeHeap) Push(x interface{}) {
	h.items = append(h.items, x.(int32))
}

// Pop removes the last entry; called by container/heap.
func (h *nodeHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[0 : n-1]
	return item
}
