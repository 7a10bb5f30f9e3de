// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// File is what a descriptor in the engine's table refers to.
// *os.File and *MemFile satisfy it. If a File is also an io.Closer it is
// closed when its descriptor is released.
type File interface {
	io.ReaderAt
	io.WriterAt
}

// firstFD is the first descriptor handed out; 0-2 stay unassigned.
const firstFD = 3

// fileTable maps descriptors to files. It is shared by every session of
// an engine, like a process's descriptor table.
type fileTable struct {
	mu    sync.RWMutex
	next  int32
	files map[int32]File
}

func (t *fileTable) add(f File) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.files == nil {
		t.files = make(map[int32]File)
		t.next = firstFD
	}
	fd := t.next
	for t.files[fd] != nil {
		fd++
	}
	t.files[fd] = f
	t.next = fd + 1
	return fd
}

func (t *fileTable) get(fd int32) (File, bool) {
	t.mu.RLock()
	f, ok := t.files[fd]
	t.mu.RUnlock()
	return f, ok
}

func (t *fileTable) remove(fd int32) (File, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.files[fd]
	if ok {
		delete(t.files, fd)
	}
	return f, ok
}

func (t *fileTable) drain() []File {
	t.mu.Lock()
	defer t.mu.Unlock()
	fs := make([]File, 0, len(t.files))
	for fd, f := range t.files {
		fs = append(fs, f)
		delete(t.files, fd)
	}
	return fs
}

// ErrOutOfRange is returned by MemFile for accesses past its end.
var ErrOutOfRange = errors.New("engine: access out of range")

// DefaultMemFileSize is the size of a MemFile created with size 0.
const DefaultMemFileSize = 16 << 20

// MemFile is a fixed-size file held in memory, a RAM disk slot.
//
// Reads and writes must lie entirely within the file; there is no short
// transfer at the end.
type MemFile struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemFile creates a zeroed file of size bytes, or DefaultMemFileSize
// if size is 0.
func NewMemFile(size int) *MemFile {
	if size <= 0 {
		size = DefaultMemFileSize
	}
	return &MemFile{data: make([]byte, size)}
}

func (f *MemFile) bounds(n int, off int64) error {
	if off < 0 || off > int64(len(f.data)) || int64(n) > int64(len(f.data))-off {
		return fmt.Errorf("%w: %d bytes at %d, size %d", ErrOutOfRange, n, off, len(f.data))
	}
	return nil
}

// ReadAt implements io.ReaderAt.
func (f *MemFile) ReadAt(p []byte, off int64) (int, error) {
	if err := f.bounds(len(p), off); err != nil {
		return 0, err
	}
	f.mu.RLock()
	n := copy(p, f.data[off:])
	f.mu.RUnlock()
	return n, nil
}

// WriteAt implements io.WriterAt.
func (f *MemFile) WriteAt(p []byte, off int64) (int, error) {
	if err := f.bounds(len(p), off); err != nil {
		return 0, err
	}
	f.mu.Lock()
	n := copy(f.data[off:], p)
	f.mu.Unlock()
	return n, nil
}

// Size returns the file size.
func (f *MemFile) Size() int {
	return len(f.data)
}
