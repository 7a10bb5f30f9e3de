// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package acall

import (
	"context"
	"fmt"
	"math"

	"code.hybscloud.com/iox"
)

// State is the phase of a [Driver].
type State uint8

const (
	StateIdle State = iota
	StateSubmitting
	StateDraining
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Stats counts a driver's traffic.
type Stats struct {
	Submitted   uint64
	Completed   uint64
	MaxPending  uint32 // largest local tail - observed head after a submit
	MaxInflight int    // largest submitted-but-not-reaped count
	IdlePasses  uint64 // passes with neither submission nor completion
}

// Driver runs batches of operations over a [Ring].
//
// It interleaves two phases: while work remains and the outstanding window
// has room it submits; it then drains every completion that is published.
// When a pass makes no progress it backs off with [iox.Backoff]. It never
// blocks in the kernel; correctness does not depend on being woken.
//
// Tags are issued from a counter owned by the driver, so two drivers never
// share tag state. The in-flight table maps each tag to the operation
// that produced it and keeps that operation's buffer reachable until the
// completion is reaped.
//
// A Driver is not safe for concurrent use.
type Driver struct {
	ring     *Ring
	window   int
	nextTag  uint64
	inflight map[uint64]int
	ops      []Op
	state    State
	err      error
	stats    Stats
}

// NewDriver creates a driver over r. Tags start at 1.
func NewDriver(r *Ring) *Driver {
	return &Driver{
		ring:     r,
		window:   r.Window(),
		nextTag:  1,
		inflight: make(map[uint64]int, r.Window()),
	}
}

// Run submits every op and consumes one completion per op.
//
// A completion fails the run when its result is negative (the engine
// [Code] is wrapped), differs from len(op.Buf) for reads and writes
// ([ErrShortTransfer]), carries an unknown tag ([ErrUnknownTag]), or when
// verify returns an error ([ErrVerify]). Cancellation of ctx is observed
// between idle passes and fails the run with the context error, which is
// distinct from any engine-reported error.
//
// An op whose buffer is longer than math.MaxInt32 bytes is rejected with
// [ErrBufferTooLarge] before anything is submitted; the driver stays
// usable. A completion ring whose tail overruns its bounds fails the run
// with [ErrIndexOverrun].
//
// Failure is terminal: later calls return the same error. After a failure
// the engine may still own the buffers of in-flight ops; see [Driver.Inflight].
// A successful Run leaves the driver ready for another batch.
func (d *Driver) Run(ctx context.Context, ops []Op, verify VerifyFunc) error {
	if d.state == StateFailed {
		return d.err
	}
	for i := range ops {
		if n := len(ops[i].Buf); n > math.MaxInt32 {
			return fmt.Errorf("acall: driver: op %d: %d bytes: %w", i, n, ErrBufferTooLarge)
		}
	}
	d.state = StateIdle
	d.ops = ops

	next, done := 0, 0
	backoff := iox.Backoff{}
	for done < len(ops) {
		progress := false

		d.state = StateSubmitting
		for next < len(ops) && len(d.inflight) < d.window {
			tag := d.nextTag
			var e RequestEntry
			ops[next].prep(&e, tag)
			if err := d.ring.Submit(&e); err != nil {
				break
			}
			d.nextTag++
			d.inflight[tag] = next
			next++
			progress = true
			d.stats.Submitted++
			d.stats.MaxPending = max(d.stats.MaxPending, d.ring.Pending())
			d.stats.MaxInflight = max(d.stats.MaxInflight, len(d.inflight))
		}

		d.state = StateDraining
		for {
			c, err := d.ring.Reap()
			if IsWouldBlock(err) {
				break
			}
			if err != nil {
				return d.fail(fmt.Errorf("acall: driver: %w", err))
			}
			progress = true
			if err := d.complete(&c, verify); err != nil {
				return d.fail(err)
			}
			done++
		}

		if progress {
			backoff.Reset()
			continue
		}
		d.stats.IdlePasses++
		if err := ctx.Err(); err != nil {
			return d.fail(fmt.Errorf("acall: driver: %d of %d completed: %w", done, len(ops), err))
		}
		backoff.Wait()
	}

	d.state = StateDone
	d.ops = nil
	return nil
}

func (d *Driver) complete(c *CompletionEntry, verify VerifyFunc) error {
	i, ok := d.inflight[c.UserData]
	if !ok {
		return &CompletionError{UserData: c.UserData, Res: c.Res, Err: ErrUnknownTag}
	}
	delete(d.inflight, c.UserData)
	d.stats.Completed++

	op := &d.ops[i]
	want := op.want()
	if c.Res < 0 {
		return &CompletionError{UserData: c.UserData, Res: c.Res, Want: want, Err: Code(c.Res)}
	}
	if uint32(c.Res) != want {
		return &CompletionError{UserData: c.UserData, Res: c.Res, Want: want, Err: ErrShortTransfer}
	}
	if verify != nil {
		if err := verify(i, op, c.Res); err != nil {
			return &CompletionError{UserData: c.UserData, Res: c.Res, Want: want, Err: fmt.Errorf("%w: %w", ErrVerify, err)}
		}
	}
	return nil
}

func (d *Driver) fail(err error) error {
	d.state = StateFailed
	d.err = err
	return err
}

// State returns the current phase.
func (d *Driver) State() State {
	return d.state
}

// Err returns the error that failed the driver, or nil.
func (d *Driver) Err() error {
	return d.err
}

// Inflight returns the number of submitted requests whose completion has
// not been reaped. Their buffers must not be reused or freed.
func (d *Driver) Inflight() int {
	return len(d.inflight)
}

// Stats returns traffic counters accumulated over all runs.
func (d *Driver) Stats() Stats {
	return d.stats
}
