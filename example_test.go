// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package acall_test

import (
	"errors"
	"fmt"

	"code.hybscloud.com/acall"
)

// ExampleComputeLayout prints the canonical offset table for a four-slot
// submission ring and an eight-slot completion ring.
func ExampleComputeLayout() {
	p, err := acall.ComputeLayout(4, 8)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("size %d\n", p.Size)
	fmt.Printf("sq head=%d tail=%d capacity=%d mask=%d entries=%d\n",
		p.SQOff.Head, p.SQOff.Tail, p.SQOff.Capacity, p.SQOff.Mask, p.SQOff.Entries)
	fmt.Printf("cq head=%d tail=%d capacity=%d mask=%d entries=%d\n",
		p.CQOff.Head, p.CQOff.Tail, p.CQOff.Capacity, p.CQOff.Mask, p.CQOff.Entries)

	// Output:
	// size 4096
	// sq head=0 tail=64 capacity=128 mask=132 entries=192
	// cq head=384 tail=448 capacity=512 mask=516 entries=576
}

// ExampleCompletionEntry_Err shows how a negative result maps to a Code.
func ExampleCompletionEntry_Err() {
	for _, c := range []acall.CompletionEntry{
		{UserData: 1, Res: 4096},
		{UserData: 2, Res: int32(acall.CodeOutOfRange)},
	} {
		err := c.Err()
		switch {
		case err == nil:
			fmt.Printf("tag %d: %d bytes\n", c.UserData, c.Res)
		case errors.Is(err, acall.CodeOutOfRange):
			fmt.Printf("tag %d: %v\n", c.UserData, err)
		}
	}

	// Output:
	// tag 1: 4096 bytes
	// tag 2: acall: engine: out of range
}

// ExampleNew shows capacity validation in the builder. A capacity that is
// not a power of two is rejected before the engine is asked.
func ExampleNew() {
	_, err := acall.New(3).Setup(nil)
	fmt.Println(errors.Is(err, acall.ErrInvalidArgument))

	// Output:
	// true
}
