// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package acall

import (
	"fmt"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// region is a view over memory shared with the engine. It owns nothing;
// the session that produced the mapping owns the bytes.
type region struct {
	mem []byte
}

// index returns the 32-bit counter at off. off must be 4-byte aligned and
// in bounds, which Params.Validate establishes.
func (r region) index(off uint32) Index {
	_ = r.mem[uint64(off)+3]
	return Index{p: (*atomix.Uint32)(unsafe.Pointer(&r.mem[off]))}
}

// u32 reads an immutable 32-bit field.
func (r region) u32(off uint32) uint32 {
	return r.index(off).LoadAcquire()
}

// entries returns the slot array of n entries starting at off.
func entries[E entry](r region, off uint32, n uint32) []E {
	var zero E
	end := uint64(off) + uint64(n)*uint64(unsafe.Sizeof(zero))
	b := r.mem[off:end]
	return unsafe.Slice((*E)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// ringView is one direction of the shared rings.
type ringView[E entry] struct {
	head  Index
	tail  Index
	mask  uint32
	slots []E
}

// viewRing validates the capacity and mask stored in shared memory and
// returns a view over the ring.
//
// The mask carried in the region is what selects slots; it must agree
// with capacity-1 and with the negotiated entry count.
func viewRing[E entry](r region, ro RingOffsets, n uint32) (ringView[E], error) {
	capacity := r.u32(ro.Capacity)
	mask := r.u32(ro.Mask)
	if capacity != n || !isPow2(capacity) {
		return ringView[E]{}, fmt.Errorf("%w: shared capacity %d, negotiated %d", ErrInvalidCapacity, capacity, n)
	}
	if mask != capacity-1 {
		return ringView[E]{}, fmt.Errorf("%w: shared mask %#x for capacity %d", ErrInvalidCapacity, mask, capacity)
	}
	return ringView[E]{
		head:  r.index(ro.Head),
		tail:  r.index(ro.Tail),
		mask:  mask,
		slots: entries[E](r, ro.Entries, capacity),
	}, nil
}

// slot returns the entry for a logical index.
func (v *ringView[E]) slot(i uint32) *E {
	return &v.slots[i&v.mask]
}

// Init writes capacities and masks into a fresh region and zeroes the
// indices. Only the engine calls Init, before the mapping is handed out.
func (m *Mapping) Init() error {
	if err := checkBase(m.Mem); err != nil {
		return err
	}
	if err := m.Params.Validate(len(m.Mem)); err != nil {
		return err
	}
	r := region{mem: m.Mem}
	for _, rr := range [...]struct {
		off RingOffsets
		n   uint32
	}{{m.Params.SQOff, m.Params.SQEntries}, {m.Params.CQOff, m.Params.CQEntries}} {
		r.index(rr.off.Head).StoreRelaxed(0)
		r.index(rr.off.Tail).StoreRelaxed(0)
		r.index(rr.off.Capacity).StoreRelaxed(rr.n)
		r.index(rr.off.Mask).StoreRelease(rr.n - 1)
	}
	return nil
}

// SubmissionProducer returns the client side of the submission ring.
// window bounds the outstanding requests; 0 means the ring capacity.
func (m *Mapping) SubmissionProducer(window uint32) (*Producer[RequestEntry], error) {
	v, err := mapRing[RequestEntry](m, m.Params.SQOff, m.Params.SQEntries)
	if err != nil {
		return nil, fmt.Errorf("submission ring: %w", err)
	}
	return newProducer(v, window), nil
}

// SubmissionConsumer returns the engine side of the submission ring.
func (m *Mapping) SubmissionConsumer() (*Consumer[RequestEntry], error) {
	v, err := mapRing[RequestEntry](m, m.Params.SQOff, m.Params.SQEntries)
	if err != nil {
		return nil, fmt.Errorf("submission ring: %w", err)
	}
	return newConsumer(v), nil
}

// CompletionProducer returns the engine side of the completion ring.
func (m *Mapping) CompletionProducer() (*Producer[CompletionEntry], error) {
	v, err := mapRing[CompletionEntry](m, m.Params.CQOff, m.Params.CQEntries)
	if err != nil {
		return nil, fmt.Errorf("completion ring: %w", err)
	}
	return newProducer(v, 0), nil
}

// CompletionConsumer returns the client side of the completion ring.
func (m *Mapping) CompletionConsumer() (*Consumer[CompletionEntry], error) {
	v, err := mapRing[CompletionEntry](m, m.Params.CQOff, m.Params.CQEntries)
	if err != nil {
		return nil, fmt.Errorf("completion ring: %w", err)
	}
	return newConsumer(v), nil
}

func mapRing[E entry](m *Mapping, ro RingOffsets, n uint32) (ringView[E], error) {
	if m == nil || len(m.Mem) == 0 {
		return ringView[E]{}, fmt.Errorf("%w: empty mapping", ErrInvalidLayout)
	}
	if err := checkBase(m.Mem); err != nil {
		return ringView[E]{}, err
	}
	if err := m.Params.Validate(len(m.Mem)); err != nil {
		return ringView[E]{}, err
	}
	return viewRing[E](region{mem: m.Mem}, ro, n)
}

// checkBase rejects a region whose base would misalign the index words
// and the 64-bit entry fields that Params.Validate checks by offset.
func checkBase(mem []byte) error {
	if p := uintptr(unsafe.Pointer(unsafe.SliceData(mem))); p%8 != 0 {
		return fmt.Errorf("%w: base %#x", ErrMisaligned, p)
	}
	return nil
}
