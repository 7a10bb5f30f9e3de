// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rw builds a read-after-write workload: a file is filled block by
// block with pseudo-random content and then read back and checked.
package rw

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"code.hybscloud.com/acall"
	"code.hybscloud.com/acall/internal/region"
	"golang.org/x/crypto/sha3"
)

// Defaults match a 16 MiB file written in 4 KiB blocks.
const (
	DefaultBlockSize = 4096
	DefaultTotalSize = 16 << 20
	DefaultSeed      = 233
)

// ErrChecksum reports a block whose content does not hash to the value
// recorded when it was written.
var ErrChecksum = errors.New("rw: block checksum mismatch")

// Config sizes a workload.
type Config struct {
	BlockSize int
	TotalSize int
	Seed      uint64
}

// Workload owns the write and read arenas and the per-block checksums.
// Both arenas are mapped outside the Go heap because the engine accesses
// them by address while requests are in flight.
type Workload struct {
	cfg    Config
	blocks int
	src    []byte
	dst    []byte
	sums   [][32]byte
}

// New allocates the arenas and fills the write arena from a SHAKE256
// stream keyed by the seed.
func New(cfg Config) (*Workload, error) {
	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.TotalSize == 0 {
		cfg.TotalSize = DefaultTotalSize
	}
	if cfg.BlockSize < 0 || cfg.TotalSize < cfg.BlockSize || cfg.TotalSize%cfg.BlockSize != 0 {
		return nil, fmt.Errorf("rw: total size %d is not a positive multiple of block size %d", cfg.TotalSize, cfg.BlockSize)
	}

	src, err := region.Alloc(cfg.TotalSize)
	if err != nil {
		return nil, err
	}
	dst, err := region.Alloc(cfg.TotalSize)
	if err != nil {
		region.Free(src)
		return nil, err
	}
	w := &Workload{
		cfg:    cfg,
		blocks: cfg.TotalSize / cfg.BlockSize,
		src:    src,
		dst:    dst,
	}
	w.fill()
	return w, nil
}

func (w *Workload) fill() {
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], w.cfg.Seed)
	h := sha3.NewShake256()
	h.Write(key[:])
	h.Read(w.src[:w.cfg.TotalSize])

	w.sums = make([][32]byte, w.blocks)
	for i := range w.blocks {
		w.sums[i] = sha3.Sum256(w.block(w.src, i))
	}
}

func (w *Workload) block(arena []byte, i int) []byte {
	off := i * w.cfg.BlockSize
	return arena[off : off+w.cfg.BlockSize : off+w.cfg.BlockSize]
}

// Blocks returns the number of blocks.
func (w *Workload) Blocks() int {
	return w.blocks
}

// Bytes returns the total workload size.
func (w *Workload) Bytes() int {
	return w.cfg.TotalSize
}

// WriteOps returns one write per block, at the block's offset in fd.
func (w *Workload) WriteOps(fd int32) []acall.Op {
	return w.ops(acall.OpWrite, fd, w.src)
}

// ReadOps clears the read arena and returns one read per block.
func (w *Workload) ReadOps(fd int32) []acall.Op {
	clear(w.dst[:w.cfg.TotalSize])
	return w.ops(acall.OpRead, fd, w.dst)
}

func (w *Workload) ops(op acall.Opcode, fd int32, arena []byte) []acall.Op {
	ops := make([]acall.Op, w.blocks)
	for i := range ops {
		ops[i] = acall.Op{
			Opcode: op,
			FD:     fd,
			Offset: uint64(i * w.cfg.BlockSize),
			Buf:    w.block(arena, i),
		}
	}
	return ops
}

// Verify checks a completed read against the checksum of the block
// written at the same offset. It is an acall.VerifyFunc.
func (w *Workload) Verify(i int, op *acall.Op, res int32) error {
	if i < 0 || i >= w.blocks {
		return fmt.Errorf("rw: block %d out of range", i)
	}
	if sum := sha3.Sum256(op.Buf[:res]); sum != w.sums[i] {
		j := mismatch(op.Buf, w.block(w.src, i))
		return fmt.Errorf("%w: block %d at offset %d, first difference at byte %d", ErrChecksum, i, op.Offset, j)
	}
	return nil
}

// Digest returns the SHA3-256 of the concatenated block checksums.
func (w *Workload) Digest() [32]byte {
	h := sha3.New256()
	for i := range w.sums {
		h.Write(w.sums[i][:])
	}
	var d [32]byte
	h.Sum(d[:0])
	return d
}

// Close unmaps the arenas. The caller must not hold ops past Close.
func (w *Workload) Close() error {
	return errors.Join(region.Free(w.src), region.Free(w.dst))
}

func mismatch(a, b []byte) int {
	n := min(len(a), len(b))
	for i := range n {
		if a[i] != b[i] {
			return i
		}
	}
	if bytes.Equal(a, b) {
		return -1
	}
	return n
}
