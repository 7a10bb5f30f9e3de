// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
)

// The poller hands requests to workers through a jobQueue and collects
// their completions through a resultQueue. Both are bounded sequence
// queues with one slot stamp per entry; the poller is the only producer of
// the first and the only consumer of the second.

type pad [64]byte

type padShort [64 - 8]byte

type seqSlot[T any] struct {
	seq  atomix.Uint64
	data T
	_    padShort
}

// jobQueue is a single-producer multi-consumer queue. Workers CAS the head
// to claim a slot.
type jobQueue[T any] struct {
	_        pad
	head     atomix.Uint64 // Workers CAS here
	_        pad
	tail     atomix.Uint64 // Poller writes here
	_        pad
	buffer   []seqSlot[T]
	mask     uint64
	capacity uint64
}

func newJobQueue[T any](capacity int) *jobQueue[T] {
	n := uint64(roundToPow2(capacity))
	q := &jobQueue[T]{
		buffer:   make([]seqSlot[T], n),
		mask:     n - 1,
		capacity: n,
	}
	for i := uint64(0); i < n; i++ {
		q.buffer[i].seq.StoreRelaxed(i)
	}
	return q
}

// Enqueue publishes a job (poller only).
func (q *jobQueue[T]) Enqueue(elem *T) error {
	tail := q.tail.LoadRelaxed()
	slot := &q.buffer[tail&q.mask]
	if slot.seq.LoadAcquire() != tail {
		return iox.ErrWouldBlock
	}

	slot.data = *elem
	slot.seq.StoreRelease(tail + 1)
	q.tail.StoreRelease(tail + 1)
	return nil
}

// Dequeue claims the oldest job (any worker).
func (q *jobQueue[T]) Dequeue() (T, error) {
	sw := spin.Wait{}
	for {
		head := q.head.LoadAcquire()
		tail := q.tail.LoadAcquire()
		if head >= tail {
			var zero T
			return zero, iox.ErrWouldBlock
		}

		slot := &q.buffer[head&q.mask]
		seq := slot.seq.LoadAcquire()
		if seq == head+1 {
			if q.head.CompareAndSwapAcqRel(head, head+1) {
				elem := slot.data
				slot.seq.StoreRelease(head + q.capacity)
				return elem, nil
			}
		} else if seq < head+1 {
			var zero T
			return zero, iox.ErrWouldBlock
		}
		sw.Once()
	}
}

// resultQueue is a multi-producer single-consumer queue. Workers CAS the
// tail to claim a slot.
type resultQueue[T any] struct {
	_        pad
	head     atomix.Uint64 // Poller reads from here
	_        pad
	tail     atomix.Uint64 // Workers CAS here
	_        pad
	buffer   []seqSlot[T]
	mask     uint64
	capacity uint64
}

func newResultQueue[T any](capacity int) *resultQueue[T] {
	n := uint64(roundToPow2(capacity))
	q := &resultQueue[T]{
		buffer:   make([]seqSlot[T], n),
		mask:     n - 1,
		capacity: n,
	}
	for i := uint64(0); i < n; i++ {
		q.buffer[i].seq.StoreRelaxed(i)
	}
	return q
}

// Enqueue publishes a completion (any worker).
func (q *resultQueue[T]) Enqueue(elem *T) error {
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		head := q.head.LoadAcquire()
		if tail >= head+q.capacity {
			return iox.ErrWouldBlock
		}

		slot := &q.buffer[tail&q.mask]
		seq := slot.seq.LoadAcquire()
		if seq == tail {
			if q.tail.CompareAndSwapAcqRel(tail, tail+1) {
				slot.data = *elem
				slot.seq.StoreRelease(tail + 1)
				return nil
			}
		} else if seq < tail {
			return iox.ErrWouldBlock
		}
		sw.Once()
	}
}

// Dequeue takes the oldest completion (poller only).
func (q *resultQueue[T]) Dequeue() (T, error) {
	head := q.head.LoadRelaxed()
	slot := &q.buffer[head&q.mask]
	if slot.seq.LoadAcquire() != head+1 {
		var zero T
		return zero, iox.ErrWouldBlock
	}

	elem := slot.data
	slot.seq.StoreRelease(head + q.capacity)
	q.head.StoreRelease(head + 1)
	return elem, nil
}

// roundToPow2 rounds n up to the next power of 2, minimum 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
