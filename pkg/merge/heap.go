package merge

import (
	"fmt"

	"github.com/lucaspr98/egap/pkg/pairio"
)

// slot binds one open run cursor to a heap position, holding the
// cursor's current decoded key. Exhausted cursors keep their slot with
// the sentinel key and simply lose every comparison from then on.
type slot struct {
	key pairio.Key
	cur *Cursor
}

// Heap is a bounded binary min-heap over run cursors, ordered by the
// packed pair key. Memory is bounded by capacity regardless of how
// much data the attached runs hold: each slot carries exactly one
// decoded pair.
type Heap struct {
	codec    *pairio.Codec
	slots    []slot
	capacity int
}

// NewHeap creates an empty heap for up to capacity runs. Capacities
// below 1 are rejected; the user-facing k >= 2 rule is checked by
// config validation, since the driver sizes its terminal heap to the
// exact remaining run count.
func NewHeap(codec *pairio.Codec, capacity int) (*Heap, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: %d", ErrBadCapacity, capacity)
	}
	return &Heap{
		codec:    codec,
		slots:    make([]slot, 0, capacity),
		capacity: capacity,
	}, nil
}

// Len returns the number of occupied slots, exhausted ones included.
func (h *Heap) Len() int { return len(h.slots) }

// Cap returns the fixed slot capacity.
func (h *Heap) Cap() int { return h.capacity }

// Insert attaches a new run cursor, pulling its first pair. A run that
// yields no pairs at all occupies a slot with the sentinel key.
func (h *Heap) Insert(cur *Cursor) error {
	if len(h.slots) == h.capacity {
		return ErrHeapFull
	}

	key, err := h.pull(cur)
	if err != nil {
		return err
	}

	h.slots = append(h.slots, slot{key: key, cur: cur})
	h.siftUp(len(h.slots) - 1)
	return nil
}

// PopMin removes and returns the smallest pair. ok is false once the
// root holds the sentinel, which means every attached run is drained;
// no separate emptiness check is needed in the drain loop. The winning
// slot is re-seeded with its cursor's next pair (or the sentinel) and
// sifted down in place rather than structurally removed.
func (h *Heap) PopMin() (pairio.Key, bool, error) {
	if len(h.slots) == 0 || h.codec.IsSentinel(h.slots[0].key) {
		return h.codec.Sentinel(), false, nil
	}

	min := h.slots[0].key

	next, err := h.pull(h.slots[0].cur)
	if err != nil {
		return pairio.Key{}, false, err
	}
	h.slots[0].key = next
	h.siftDown(0)

	return min, true, nil
}

// pull advances cur, mapping exhaustion to the sentinel key.
func (h *Heap) pull(cur *Cursor) (pairio.Key, error) {
	k, ok, err := cur.Next()
	if err != nil {
		return pairio.Key{}, err
	}
	if !ok {
		return h.codec.Sentinel(), nil
	}
	return k, nil
}

func (h *Heap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.slots[i].key.Less(h.slots[parent].key) {
			break
		}
		h.slots[i], h.slots[parent] = h.slots[parent], h.slots[i]
		i = parent
	}
}

func (h *Heap) siftDown(i int) {
	n := len(h.slots)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		smallest := left
		if right := left + 1; right < n && h.slots[right].key.Less(h.slots[left].key) {
			smallest = right
		}
		if !h.slots[smallest].key.Less(h.slots[i].key) {
			break
		}
		h.slots[i], h.slots[smallest] = h.slots[smallest], h.slots[i]
		i = smallest
	}
}
