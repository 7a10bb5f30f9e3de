// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package acall implements the client side of an asynchronous call
// protocol built on two rings in memory shared with an engine.
//
// A client publishes fixed-size request entries on a submission ring. The
// engine consumes them, performs the I/O and publishes completion entries,
// each carrying the client's tag and a result, on a completion ring. Each
// ring has exactly one producer and one consumer, so no locks and no
// read-modify-write atomics are needed; publication uses release stores
// and observation uses acquire loads.
//
// # Quick Start
//
//	r, err := acall.New(4).CompletionEntries(8).Window(4).Setup(eng)
//	if err != nil {
//	    return err
//	}
//
//	var req acall.RequestEntry
//	acall.PrepRead(&req, fd, buf, 0, 1)
//	if err := r.Submit(&req); acall.IsWouldBlock(err) {
//	    // Window full: reap first
//	}
//
//	c, err := r.Reap()
//	if err == nil && c.Res < 0 {
//	    // c.Err() is an acall.Code
//	}
//
// Most callers use a [Driver], which interleaves submission and reaping,
// matches completions to operations by tag and checks results:
//
//	d := acall.NewDriver(r)
//	err := d.Run(ctx, ops, verify)
//
// # Shared Layout
//
// [ComputeLayout] produces the canonical offset table. Each ring has its
// head and tail on separate cache lines, a capacity and a capacity mask,
// and an array of entries:
//
//	+0    head      written by the consumer
//	+64   tail      written by the producer
//	+128  capacity  written once by the engine
//	+132  mask      capacity-1, written once by the engine
//	+192  entries
//
// Attach checks the table against the region and checks that the mask in
// shared memory equals capacity-1. Slots are selected with that mask.
//
// # Index Discipline
//
// Indices are free-running uint32 counters. The ring holds tail-head
// entries; unsigned subtraction keeps that correct across wraparound.
//
//	Producer: write slot tail&mask, then StoreRelease(tail+1)
//	Consumer: LoadAcquire(tail), read slot head&mask, then StoreRelease(head+1)
//
// The producer caches the consumer's head and only reloads it when the
// cached value shows no room; the consumer does the same with the tail.
// The submission producer additionally enforces an outstanding window: it
// refuses to publish while tail-head has reached the window.
//
// # Error Handling
//
// Submit and Reap return [ErrWouldBlock] when the ring is full or empty.
// This error is sourced from [code.hybscloud.com/iox].
//
//	acall.IsWouldBlock(err)  // ring full or empty
//	acall.IsSemantic(err)    // control flow signal
//	acall.IsNonFailure(err)  // nil or ErrWouldBlock
//
// Negative completion results are engine codes; see [Code]. Attach-time
// validation failures wrap [ErrInvalidArgument]. A [Driver] reports
// failed completions as [*CompletionError].
//
// # Buffer Ownership
//
// A read or write request carries the address of a client buffer. From
// Submit until its completion is reaped the buffer belongs to the engine:
// it must stay allocated and must not be reused. A Driver keeps the
// operation reachable while it is in flight, but the memory itself must
// not move; buffers passed by address should live outside the Go heap or
// be otherwise pinned.
//
// # Thread Safety
//
// A [Ring] is used by one client goroutine. Producer and Consumer values
// follow the single-producer single-consumer rule of the ring they view.
//
// # Race Detection
//
// The race detector cannot observe the happens-before edges established
// through acquire and release on the shared indices, so tests that run a
// client and an engine concurrently are excluded via //go:build !race.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors and idle
// backoff and [code.hybscloud.com/atomix] for atomic primitives with
// explicit memory ordering.
package acall
