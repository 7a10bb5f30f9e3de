// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package acall

import (
	"encoding/binary"
	"unsafe"
)

// Opcode selects the operation of a RequestEntry.
type Opcode uint8

const (
	OpNop   Opcode = 0
	OpRead  Opcode = 1
	OpWrite Opcode = 2
	OpClose Opcode = 3 // release an engine file descriptor
)

func (op Opcode) String() string {
	switch op {
	case OpNop:
		return "nop"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpClose:
		return "close"
	}
	return "unknown"
}

// RequestEntry is one submission ring slot.
//
// Layout (40 bytes, native byte order):
//
//	0x00 opcode  u8
//	0x01 flags   u8
//	0x02 pad     u16
//	0x04 fd      i32
//	0x08 offset  u64
//	0x10 addr    u64
//	0x18 len     u32
//	0x1C rwflags u32
//	0x20 tag     u64 (UserData)
//
// Addr refers to client memory that must stay valid and unmoved until the
// matching completion is reaped.
type RequestEntry struct {
	Opcode   Opcode
	Flags    uint8
	_        uint16
	FD       int32
	Offset   uint64
	Addr     uint64
	Len      uint32
	RWFlags  uint32
	UserData uint64
}

// CompletionEntry is one completion ring slot.
//
// Layout (16 bytes, native byte order): tag u64, result i32, pad u32.
// Res >= 0 is the number of bytes transferred; Res < 0 is a [Code].
type CompletionEntry struct {
	UserData uint64
	Res      int32
	_        uint32
}

const (
	// RequestEntrySize is the wire size of a RequestEntry.
	RequestEntrySize = 40
	// CompletionEntrySize is the wire size of a CompletionEntry.
	CompletionEntrySize = 16
)

var (
	_ [RequestEntrySize - unsafe.Sizeof(RequestEntry{})]struct{}
	_ [unsafe.Sizeof(RequestEntry{}) - RequestEntrySize]struct{}
	_ [CompletionEntrySize - unsafe.Sizeof(CompletionEntry{})]struct{}
	_ [unsafe.Sizeof(CompletionEntry{}) - CompletionEntrySize]struct{}
)

// entry is the set of slot types a shared ring can carry.
type entry interface {
	RequestEntry | CompletionEntry
}

// Err returns the engine code carried by a negative result, or nil.
func (c *CompletionEntry) Err() error {
	if c.Res < 0 {
		return Code(c.Res)
	}
	return nil
}

// Encode writes e into b using the wire layout. b must hold at least
// RequestEntrySize bytes.
func (e *RequestEntry) Encode(b []byte) {
	_ = b[RequestEntrySize-1]
	ne := binary.NativeEndian
	b[0] = byte(e.Opcode)
	b[1] = e.Flags
	ne.PutUint16(b[2:], 0)
	ne.PutUint32(b[4:], uint32(e.FD))
	ne.PutUint64(b[8:], e.Offset)
	ne.PutUint64(b[16:], e.Addr)
	ne.PutUint32(b[24:], e.Len)
	ne.PutUint32(b[28:], e.RWFlags)
	ne.PutUint64(b[32:], e.UserData)
}

// DecodeRequest reads a RequestEntry from b.
func DecodeRequest(b []byte) RequestEntry {
	_ = b[RequestEntrySize-1]
	ne := binary.NativeEndian
	return RequestEntry{
		Opcode:   Opcode(b[0]),
		Flags:    b[1],
		FD:       int32(ne.Uint32(b[4:])),
		Offset:   ne.Uint64(b[8:]),
		Addr:     ne.Uint64(b[16:]),
		Len:      ne.Uint32(b[24:]),
		RWFlags:  ne.Uint32(b[28:]),
		UserData: ne.Uint64(b[32:]),
	}
}

// Encode writes c into b using the wire layout. b must hold at least
// CompletionEntrySize bytes.
func (c *CompletionEntry) Encode(b []byte) {
	_ = b[CompletionEntrySize-1]
	ne := binary.NativeEndian
	ne.PutUint64(b[0:], c.UserData)
	ne.PutUint32(b[8:], uint32(c.Res))
	ne.PutUint32(b[12:], 0)
}

// DecodeCompletion reads a CompletionEntry from b. b is not modified.
func DecodeCompletion(b []byte) CompletionEntry {
	_ = b[CompletionEntrySize-1]
	ne := binary.NativeEndian
	return CompletionEntry{
		UserData: ne.Uint64(b[0:]),
		Res:      int32(ne.Uint32(b[8:])),
	}
}

// PrepNop prepares a no-op request.
func PrepNop(e *RequestEntry, tag uint64) {
	*e = RequestEntry{Opcode: OpNop, UserData: tag}
}

// PrepRead prepares a read of len(buf) bytes at off into buf.
// len(buf) must not exceed math.MaxInt32; [Driver.Run] checks this.
func PrepRead(e *RequestEntry, fd int32, buf []byte, off uint64, tag uint64) {
	prepRW(OpRead, e, fd, buf, off, tag)
}

// PrepWrite prepares a write of buf at off. The length limit of
// [PrepRead] applies.
func PrepWrite(e *RequestEntry, fd int32, buf []byte, off uint64, tag uint64) {
	prepRW(OpWrite, e, fd, buf, off, tag)
}

// PrepClose prepares the release of fd.
func PrepClose(e *RequestEntry, fd int32, tag uint64) {
	*e = RequestEntry{Opcode: OpClose, FD: fd, UserData: tag}
}

func prepRW(op Opcode, e *RequestEntry, fd int32, buf []byte, off uint64, tag uint64) {
	*e = RequestEntry{
		Opcode:   op,
		FD:       fd,
		Offset:   off,
		Addr:     uint64(uintptr(unsafe.Pointer(unsafe.SliceData(buf)))),
		Len:      uint32(len(buf)),
		UserData: tag,
	}
}

// Buffer returns the client memory a request refers to.
//
// Only the engine calls Buffer, and only while the request is in flight.
func (e *RequestEntry) Buffer() []byte {
	if e.Addr == 0 || e.Len == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(e.Addr))), int(e.Len))
}
