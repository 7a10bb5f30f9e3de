// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package acall

// Producer is the single writer of one shared ring.
//
// Based on Lamport's ring buffer with cached index optimization, as in a
// single-producer single-consumer queue, except that the indices and the
// slots live in memory shared with another execution context. The
// producer caches the consumer's head and only reloads it (acquire) when
// the cached value says there is no room.
//
// Indices are free-running uint32 counters; all distance computations
// are unsigned differences and stay correct across wraparound.
type Producer[E entry] struct {
	ring       ringView[E]
	cachedHead uint32 // Producer's cached view of head
	limit      uint32 // outstanding window, <= capacity
}

func newProducer[E entry](v ringView[E], window uint32) *Producer[E] {
	limit := v.mask + 1
	if window != 0 && window < limit {
		limit = window
	}
	return &Producer[E]{
		ring:       v,
		cachedHead: v.head.LoadAcquire(),
		limit:      limit,
	}
}

// Enqueue writes elem into the next free slot and publishes it.
// Returns ErrWouldBlock if tail-head has reached the window.
func (q *Producer[E]) Enqueue(elem *E) error {
	tail := q.ring.tail.LoadRelaxed()
	if tail-q.cachedHead >= q.limit {
		q.cachedHead = q.ring.head.LoadAcquire()
		if tail-q.cachedHead >= q.limit {
			return ErrWouldBlock
		}
	}

	*q.ring.slot(tail) = *elem
	q.ring.tail.StoreRelease(tail + 1)
	return nil
}

// Room returns how many entries can be published before Enqueue blocks.
// It refreshes the cached head.
func (q *Producer[E]) Room() uint32 {
	q.cachedHead = q.ring.head.LoadAcquire()
	used := q.ring.tail.LoadRelaxed() - q.cachedHead
	if used >= q.limit {
		return 0
	}
	return q.limit - used
}

// Pending returns local tail minus the observed consumer head: the number
// of entries published and not yet consumed.
func (q *Producer[E]) Pending() uint32 {
	return q.ring.tail.LoadRelaxed() - q.ring.head.LoadAcquire()
}

// Window returns the outstanding limit.
func (q *Producer[E]) Window() int {
	return int(q.limit)
}

// Cap returns the ring capacity.
func (q *Producer[E]) Cap() int {
	return int(q.ring.mask + 1)
}

// Consumer is the single reader of one shared ring.
type Consumer[E entry] struct {
	ring       ringView[E]
	cachedTail uint32 // Consumer's cached view of tail
}

func newConsumer[E entry](v ringView[E]) *Consumer[E] {
	return &Consumer[E]{
		ring:       v,
		cachedTail: v.head.LoadRelaxed(), // first Dequeue loads and checks tail
	}
}

// Dequeue copies out the entry at head and releases its slot.
// Returns (zero-value, ErrWouldBlock) if nothing is published, and
// ErrIndexOverrun if the producer's tail is more than capacity ahead.
//
// The slot is read only after the tail that covers it was observed with
// acquire ordering.
func (q *Consumer[E]) Dequeue() (E, error) {
	head := q.ring.head.LoadRelaxed()
	if head == q.cachedTail {
		tail := q.ring.tail.LoadAcquire()
		if tail-head > q.ring.mask+1 {
			var zero E
			return zero, ErrIndexOverrun
		}
		q.cachedTail = tail
		if head == tail {
			var zero E
			return zero, ErrWouldBlock
		}
	}

	elem := *q.ring.slot(head)
	q.ring.head.StoreRelease(head + 1)
	return elem, nil
}

// Ready returns the number of published entries not yet consumed.
// A tail outside the ring bounds reads as zero.
func (q *Consumer[E]) Ready() uint32 {
	head := q.ring.head.LoadRelaxed()
	tail := q.ring.tail.LoadAcquire()
	if tail-head > q.ring.mask+1 {
		return 0
	}
	q.cachedTail = tail
	return tail - head
}

// Cap returns the ring capacity.
func (q *Consumer[E]) Cap() int {
	return int(q.ring.mask + 1)
}
