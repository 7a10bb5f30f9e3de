// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package acall

import "fmt"

// Ring is the client's view of one session: the producer side of the
// submission ring and the consumer side of the completion ring.
//
// A Ring owns no memory. The engine that returned the mapping keeps the
// region alive for the session.
type Ring struct {
	sq     *Producer[RequestEntry]
	cq     *Consumer[CompletionEntry]
	params Params
}

// Attach validates m and builds the client views over it.
// window bounds outstanding submissions; 0 means the submission capacity.
func Attach(m *Mapping, window uint32) (*Ring, error) {
	sq, err := m.SubmissionProducer(window)
	if err != nil {
		return nil, fmt.Errorf("acall: attach: %w", err)
	}
	cq, err := m.CompletionConsumer()
	if err != nil {
		return nil, fmt.Errorf("acall: attach: %w", err)
	}
	return &Ring{sq: sq, cq: cq, params: m.Params}, nil
}

// Submit publishes e to the engine.
// Returns ErrWouldBlock when the outstanding window is full.
func (r *Ring) Submit(e *RequestEntry) error {
	return r.sq.Enqueue(e)
}

// Reap consumes the next completion.
// Returns (zero-value, ErrWouldBlock) if none is published.
func (r *Ring) Reap() (CompletionEntry, error) {
	return r.cq.Dequeue()
}

// ReapBatch consumes up to len(dst) completions and returns how many were
// written.
func (r *Ring) ReapBatch(dst []CompletionEntry) int {
	n := 0
	for n < len(dst) {
		c, err := r.cq.Dequeue()
		if err != nil {
			break
		}
		dst[n] = c
		n++
	}
	return n
}

// Pending returns submitted entries the engine has not consumed yet.
func (r *Ring) Pending() uint32 {
	return r.sq.Pending()
}

// Window returns the outstanding submission limit.
func (r *Ring) Window() int {
	return r.sq.Window()
}

// Params returns the negotiated offset table.
func (r *Ring) Params() Params {
	return r.params
}

// RingState is a snapshot of the four shared indices, for diagnostics.
// The fields are read one at a time and may be mutually inconsistent
// while the engine is running.
type RingState struct {
	SQHead, SQTail uint32
	CQHead, CQTail uint32
	SQEntries      uint32
	CQEntries      uint32
	Window         uint32
}

// State returns a snapshot of the shared indices.
func (r *Ring) State() RingState {
	return RingState{
		SQHead:    r.sq.ring.head.LoadAcquire(),
		SQTail:    r.sq.ring.tail.LoadAcquire(),
		CQHead:    r.cq.ring.head.LoadAcquire(),
		CQTail:    r.cq.ring.tail.LoadAcquire(),
		SQEntries: r.params.SQEntries,
		CQEntries: r.params.CQEntries,
		Window:    r.sq.limit,
	}
}
