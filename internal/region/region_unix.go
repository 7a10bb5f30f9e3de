// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build unix

package region

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Alloc maps size bytes of zeroed shared memory, rounded up to the page
// size.
func Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("region: invalid size %d", size)
	}
	size = roundPage(size)
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("region: mmap %d bytes: %w", size, err)
	}
	return mem, nil
}

// Free unmaps memory returned by Alloc.
func Free(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("region: munmap: %w", err)
	}
	return nil
}

func roundPage(n int) int {
	p := unix.Getpagesize()
	return (n + p - 1) &^ (p - 1)
}
