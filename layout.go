// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package acall

import "fmt"

// RingOffsets locates the fields of one ring relative to the region base.
type RingOffsets struct {
	Head     uint32
	Tail     uint32
	Capacity uint32
	Mask     uint32
	Entries  uint32
}

// Params is the offset table negotiated by Setup. It is immutable after
// setup.
type Params struct {
	Size      uint64 // total region size in bytes
	SQEntries uint32
	CQEntries uint32
	SQOff     RingOffsets
	CQOff     RingOffsets
}

// Mapping is the result of a successful engine setup: the shared region
// and the table describing it.
type Mapping struct {
	Mem    []byte
	Params Params
}

const (
	cacheLine = 64
	pageSize  = 4096
)

// ComputeLayout returns the canonical offset table for the given
// capacities.
//
// Each ring occupies:
//
//	+0   head     (own cache line)
//	+64  tail     (own cache line)
//	+128 capacity
//	+132 mask
//	+192 entries  (cache line aligned)
//
// The completion ring follows the submission entries, cache line aligned.
// Size is rounded up to the page size.
func ComputeLayout(sqEntries, cqEntries uint32) (Params, error) {
	if !isPow2(sqEntries) || !isPow2(cqEntries) {
		return Params{}, fmt.Errorf("%w: sq=%d cq=%d", ErrInvalidCapacity, sqEntries, cqEntries)
	}

	var p Params
	p.SQEntries = sqEntries
	p.CQEntries = cqEntries

	off := uint64(0)
	p.SQOff, off = ringAt(off, sqEntries, RequestEntrySize)
	p.CQOff, off = ringAt(off, cqEntries, CompletionEntrySize)
	if off > 1<<32-1 {
		return Params{}, fmt.Errorf("%w: %d bytes", ErrInvalidLayout, off)
	}
	p.Size = alignUp(off, pageSize)
	return p, nil
}

func ringAt(base uint64, n uint32, size uint64) (RingOffsets, uint64) {
	base = alignUp(base, cacheLine)
	ro := RingOffsets{
		Head:     uint32(base),
		Tail:     uint32(base + cacheLine),
		Capacity: uint32(base + 2*cacheLine),
		Mask:     uint32(base + 2*cacheLine + 4),
		Entries:  uint32(base + 3*cacheLine),
	}
	return ro, base + 3*cacheLine + uint64(n)*size
}

// Validate checks the table against a region of size bytes.
//
// It does not read capacity or mask from shared memory; attach does that
// after the table is known to be in bounds.
func (p *Params) Validate(size int) error {
	if uint64(size) < p.Size {
		return fmt.Errorf("%w: region %d bytes, table wants %d", ErrInvalidLayout, size, p.Size)
	}
	if !isPow2(p.SQEntries) || !isPow2(p.CQEntries) {
		return fmt.Errorf("%w: sq=%d cq=%d", ErrInvalidCapacity, p.SQEntries, p.CQEntries)
	}
	sqLo, sqHi, err := p.SQOff.span(p.Size, p.SQEntries, RequestEntrySize)
	if err != nil {
		return fmt.Errorf("submission ring: %w", err)
	}
	cqLo, cqHi, err := p.CQOff.span(p.Size, p.CQEntries, CompletionEntrySize)
	if err != nil {
		return fmt.Errorf("completion ring: %w", err)
	}
	if sqLo < cqHi && cqLo < sqHi {
		return fmt.Errorf("%w: submission and completion rings overlap", ErrInvalidLayout)
	}
	return nil
}

// span checks field alignment and bounds, and returns the byte range the
// ring occupies.
func (ro *RingOffsets) span(size uint64, n uint32, entrySize uint64) (lo, hi uint64, err error) {
	fields := [...]uint32{ro.Head, ro.Tail, ro.Capacity, ro.Mask}
	lo, hi = uint64(ro.Entries), uint64(ro.Entries)+uint64(n)*entrySize
	for _, f := range fields {
		if f%4 != 0 || uint64(f)+4 > size {
			return 0, 0, fmt.Errorf("%w: field at %d", ErrInvalidLayout, f)
		}
		lo = min(lo, uint64(f))
		hi = max(hi, uint64(f)+4)
	}
	if ro.Entries%8 != 0 || uint64(ro.Entries)+uint64(n)*entrySize > size {
		return 0, 0, fmt.Errorf("%w: entries at %d", ErrInvalidLayout, ro.Entries)
	}
	for i := range fields {
		for j := i + 1; j < len(fields); j++ {
			if fields[i] == fields[j] {
				return 0, 0, fmt.Errorf("%w: fields share offset %d", ErrInvalidLayout, fields[i])
			}
		}
	}
	for _, f := range fields {
		if uint64(f) < uint64(ro.Entries)+uint64(n)*entrySize && uint64(f)+4 > uint64(ro.Entries) {
			return 0, 0, fmt.Errorf("%w: field at %d inside entries", ErrInvalidLayout, f)
		}
	}
	return lo, hi, nil
}

func isPow2(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}

func alignUp(n, a uint64) uint64 {
	return (n + a - 1) &^ (a - 1)
}
