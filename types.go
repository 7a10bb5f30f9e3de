// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package acall

// Engine is the privileged side of the protocol.
//
// Setup negotiates ring capacities, establishes the shared region and
// returns its offset table. The engine may accept the requested sizes,
// shrink them, or reject them with a [Code]. Setup is called once per
// session and must return before any ring index is touched.
//
// After Setup the engine consumes the submission ring and produces the
// completion ring under the same index discipline as the client: it
// advances only the submission head and the completion tail.
type Engine interface {
	Setup(sqEntries, cqEntries uint32) (*Mapping, error)
}

// Submitter is the client's producer side.
//
// Submit is non-blocking. It returns nil once the entry is published and
// ErrWouldBlock when the outstanding window is full.
//
// Thread safety: one goroutine only. The submission ring has a single
// producer.
type Submitter interface {
	Submit(e *RequestEntry) error
}

// Reaper is the client's consumer side.
//
// Reap is non-blocking. It returns the next published completion, or
// (zero-value, ErrWouldBlock) if none is available. Completions come in
// the order the engine published them, which need not match submission
// order.
//
// Thread safety: one goroutine only.
type Reaper interface {
	Reap() (CompletionEntry, error)
}

// SubmitReaper combines both client sides of a session.
type SubmitReaper interface {
	Submitter
	Reaper
}

// VerifyFunc inspects a completed operation before its buffer is
// released to the caller. A non-nil error fails the run with [ErrVerify].
type VerifyFunc func(i int, op *Op, res int32) error

// Op is one unit of work for a [Driver].
type Op struct {
	Opcode Opcode
	FD     int32
	Offset uint64
	Buf    []byte
	Flags  uint8
}

// want returns the result a successful completion must carry.
func (op *Op) want() uint32 {
	switch op.Opcode {
	case OpRead, OpWrite:
		return uint32(len(op.Buf))
	}
	return 0
}

func (op *Op) prep(e *RequestEntry, tag uint64) {
	switch op.Opcode {
	case OpRead:
		PrepRead(e, op.FD, op.Buf, op.Offset, tag)
	case OpWrite:
		PrepWrite(e, op.FD, op.Buf, op.Offset, tag)
	case OpClose:
		PrepClose(e, op.FD, tag)
	default:
		PrepNop(e, tag)
		e.Opcode = op.Opcode
	}
	e.Flags = op.Flags
}
