// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"syscall"
	"testing"

	"code.hybscloud.com/acall"
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
)

// =============================================================================
// Sequence queues
// =============================================================================

func TestJobQueueBasic(t *testing.T) {
	q := newJobQueue[int](3)
	if q.capacity != 4 {
		t.Fatalf("capacity: got %d, want 4", q.capacity)
	}
	for i := range 4 {
		v := i + 100
		if err := q.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}
	v := 999
	if err := q.Enqueue(&v); !errors.Is(err, iox.ErrWouldBlock) {
		t.Fatalf("Enqueue on full: got %v, want ErrWouldBlock", err)
	}
	for i := range 4 {
		got, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue(%d): %v", i, err)
		}
		if got != i+100 {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, got, i+100)
		}
	}
	if _, err := q.Dequeue(); !errors.Is(err, iox.ErrWouldBlock) {
		t.Fatalf("Dequeue on empty: got %v, want ErrWouldBlock", err)
	}
}

func TestResultQueueBasic(t *testing.T) {
	q := newResultQueue[int](4)
	for i := range 4 {
		v := i
		if err := q.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}
	v := 999
	if err := q.Enqueue(&v); !errors.Is(err, iox.ErrWouldBlock) {
		t.Fatalf("Enqueue on full: got %v, want ErrWouldBlock", err)
	}
	for i := range 4 {
		got, err := q.Dequeue()
		if err != nil || got != i {
			t.Fatalf("Dequeue(%d): got (%d, %v)", i, got, err)
		}
	}
	if _, err := q.Dequeue(); !errors.Is(err, iox.ErrWouldBlock) {
		t.Fatalf("Dequeue on empty: got %v, want ErrWouldBlock", err)
	}
}

// TestQueuesWrap cycles far past capacity so every slot stamp advances
// several laps.
func TestQueuesWrap(t *testing.T) {
	jobs := newJobQueue[int](2)
	results := newResultQueue[int](2)
	for i := range 1000 {
		v := i
		if err := jobs.Enqueue(&v); err != nil {
			t.Fatalf("jobs.Enqueue(%d): %v", i, err)
		}
		got, err := jobs.Dequeue()
		if err != nil || got != i {
			t.Fatalf("jobs.Dequeue(%d): got (%d, %v)", i, got, err)
		}
		if err := results.Enqueue(&got); err != nil {
			t.Fatalf("results.Enqueue(%d): %v", i, err)
		}
		got, err = results.Dequeue()
		if err != nil || got != i {
			t.Fatalf("results.Dequeue(%d): got (%d, %v)", i, got, err)
		}
	}
}

// TestPipelineConcurrent runs a poller feeding workers through a jobQueue
// and collecting through a resultQueue, and checks every item arrives
// exactly once.
func TestPipelineConcurrent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrent test in short mode")
	}
	if acall.RaceEnabled {
		t.Skip("skipping: slot payloads are ordered by atomix sequence stamps")
	}
	const (
		items   = 20000
		workers = 4
	)
	jobs := newJobQueue[int](64)
	results := newResultQueue[int](64)

	var stop atomix.Bool
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			backoff := iox.Backoff{}
			for !stop.Load() {
				v, err := jobs.Dequeue()
				if err != nil {
					backoff.Wait()
					continue
				}
				backoff.Reset()
				for results.Enqueue(&v) != nil {
					backoff.Wait()
				}
			}
		}()
	}

	seen := make([]bool, items)
	next, got := 0, 0
	backoff := iox.Backoff{}
	for got < items {
		progress := false
		for next < items && next-got < 64 {
			v := next
			if jobs.Enqueue(&v) != nil {
				break
			}
			next++
			progress = true
		}
		for {
			v, err := results.Dequeue()
			if err != nil {
				break
			}
			if seen[v] {
				t.Fatalf("item %d delivered twice", v)
			}
			seen[v] = true
			got++
			progress = true
		}
		if progress {
			backoff.Reset()
		} else {
			backoff.Wait()
		}
	}
	stop.Store(true)
	wg.Wait()
}

func TestRoundToPow2(t *testing.T) {
	for _, tt := range []struct{ in, want int }{{0, 2}, {1, 2}, {2, 2}, {3, 4}, {8, 8}, {9, 16}, {1000, 1024}} {
		if got := roundToPow2(tt.in); got != tt.want {
			t.Errorf("roundToPow2(%d): got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFloorPow2(t *testing.T) {
	for _, tt := range []struct{ in, want uint32 }{{1, 1}, {3, 2}, {16, 16}, {24, 16}, {48, 32}, {4097, 4096}} {
		if got := floorPow2(tt.in); got != tt.want {
			t.Errorf("floorPow2(%d): got %d, want %d", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// Result codes
// =============================================================================

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want acall.Code
	}{
		{acall.CodeBadState, acall.CodeBadState},
		{fmt.Errorf("wrapped: %w", acall.CodeNotSupported), acall.CodeNotSupported},
		{fmt.Errorf("%w: tail", ErrOutOfRange), acall.CodeOutOfRange},
		{&fs.PathError{Op: "open", Path: "x", Err: fs.ErrNotExist}, acall.CodeNotFound},
		{syscall.EBADF, acall.CodeNotFound},
		{fs.ErrExist, acall.CodeAlreadyExists},
		{fs.ErrPermission, acall.CodeAccessDenied},
		{os.ErrClosed, acall.CodeBadState},
		{syscall.EINVAL, acall.CodeInvalidArgs},
		{syscall.ENOMEM, acall.CodeNoMemory},
		{errors.New("boom"), acall.CodeInternal},
	}
	for _, tt := range tests {
		if got := codeOf(tt.err); got != tt.want {
			t.Errorf("codeOf(%v): got %v, want %v", tt.err, got, tt.want)
		}
	}
}
