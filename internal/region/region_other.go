// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !unix

package region

import (
	"fmt"
	"sync"
	"unsafe"
)

const pageSize = 4096

// pinned keeps heap-backed regions reachable until Free.
var pinned sync.Map

// Alloc returns size bytes of zeroed, page aligned heap memory.
// Platforms without mmap support get a heap region; it is never moved
// but stays reachable only through the pinned table.
func Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("region: invalid size %d", size)
	}
	size = (size + pageSize - 1) &^ (pageSize - 1)
	raw := make([]byte, size+pageSize)
	off := int(-uintptr(unsafe.Pointer(unsafe.SliceData(raw))) & (pageSize - 1))
	mem := raw[off : off+size : off+size]
	pinned.Store(unsafe.SliceData(mem), raw)
	return mem, nil
}

// Free releases memory returned by Alloc.
func Free(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	pinned.Delete(unsafe.SliceData(mem))
	return nil
}
