// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package acall

import (
	"errors"
	"fmt"
	"math"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For Enqueue/Submit: no room under the outstanding window (backpressure)
// For Dequeue/Reap: no completion has been published yet
//
// ErrWouldBlock is a control flow signal, not a failure. The caller should
// drain completions, yield, and retry.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}

var (
	// ErrInvalidArgument is the root of every validation failure.
	ErrInvalidArgument = errors.New("acall: invalid argument")

	// ErrInvalidCapacity reports a ring capacity that is zero, not a power
	// of two, or whose shared mask disagrees with capacity-1.
	ErrInvalidCapacity = fmt.Errorf("%w: ring capacity must be a nonzero power of two", ErrInvalidArgument)

	// ErrInvalidLayout reports an offset table that does not fit the region.
	ErrInvalidLayout = fmt.Errorf("%w: ring layout out of bounds", ErrInvalidArgument)

	// ErrMisaligned reports a region whose base address is not 8-byte
	// aligned.
	ErrMisaligned = fmt.Errorf("%w: region base must be 8-byte aligned", ErrInvalidArgument)

	// ErrBufferTooLarge reports an op whose buffer does not fit a
	// completion result.
	ErrBufferTooLarge = fmt.Errorf("%w: buffer exceeds %d bytes", ErrInvalidArgument, math.MaxInt32)

	// ErrIndexOverrun reports a peer index that puts more than capacity
	// entries between head and tail. The ring is unusable after it.
	ErrIndexOverrun = errors.New("acall: shared index out of ring bounds")

	// ErrShortTransfer reports a completion whose result differs from the
	// requested length.
	ErrShortTransfer = errors.New("acall: transfer size mismatch")

	// ErrVerify wraps content check failures reported by a VerifyFunc.
	ErrVerify = errors.New("acall: content verification failed")

	// ErrUnknownTag reports a completion whose tag matches no in-flight request.
	ErrUnknownTag = errors.New("acall: completion for unknown tag")
)

// Code is a negative result produced by the engine.
//
// Completion results and setup failures share this table. A nonnegative
// result is a byte count and never a Code.
type Code int32

// Engine result codes.
const (
	CodeInternal      Code = -1
	CodeNotSupported  Code = -2
	CodeNoMemory      Code = -3
	CodeInvalidArgs   Code = -4
	CodeOutOfRange    Code = -5
	CodeBadState      Code = -6
	CodeNotFound      Code = -7
	CodeAlreadyExists Code = -8
	CodeAccessDenied  Code = -9
)

var codeNames = [...]string{
	"internal error",
	"not supported",
	"no memory",
	"invalid arguments",
	"out of range",
	"bad state",
	"not found",
	"already exists",
	"access denied",
}

// String returns the code name.
func (c Code) String() string {
	if i := -int(c) - 1; i >= 0 && i < len(codeNames) {
		return codeNames[i]
	}
	return fmt.Sprintf("code(%d)", int32(c))
}

// Error implements error.
func (c Code) Error() string {
	return "acall: engine: " + c.String()
}

// Is lets CodeInvalidArgs match ErrInvalidArgument.
func (c Code) Is(target error) bool {
	return c == CodeInvalidArgs && target == ErrInvalidArgument
}

// CompletionError describes a completion that failed validation.
type CompletionError struct {
	UserData uint64
	Res      int32
	Want     uint32
	Err      error
}

func (e *CompletionError) Error() string {
	if e.Res < 0 {
		return fmt.Sprintf("acall: tag %d: %v", e.UserData, e.Err)
	}
	return fmt.Sprintf("acall: tag %d: result %d, want %d: %v", e.UserData, e.Res, e.Want, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}
