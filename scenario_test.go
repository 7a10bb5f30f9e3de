// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !race

// These tests run a client against the in-process engine. The engine
// reads and writes ring slots and client buffers from other goroutines,
// ordered only by acquire and release on the shared indices, which the
// race detector cannot see.

package acall_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/acall"
	"code.hybscloud.com/acall/internal/engine"
	"code.hybscloud.com/acall/internal/region"
	"code.hybscloud.com/acall/internal/rw"
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
	"github.com/sirupsen/logrus"
)

func startEngine(t *testing.T, workers int) *engine.Engine {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	e := engine.New(engine.Config{Workers: workers, Logger: log})
	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Errorf("engine Close: %v", err)
		}
	})
	return e
}

// TestReadAfterWrite writes a 16 MiB file in 4 KiB blocks through a
// four-slot ring, closes and reopens it, and reads every block back.
func TestReadAfterWrite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 16 MiB round trip in short mode")
	}
	e := startEngine(t, 1)
	w, err := rw.New(rw.Config{Seed: rw.DefaultSeed})
	if err != nil {
		t.Fatalf("rw.New: %v", err)
	}
	defer w.Close()

	file := engine.NewMemFile(w.Bytes())
	fd := e.Register(file)

	r, err := acall.New(4).CompletionEntries(8).Window(4).Setup(e)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	d := acall.NewDriver(r)
	if err := d.Run(ctx, w.WriteOps(fd), nil); err != nil {
		t.Fatalf("write phase: %v", err)
	}
	if err := d.Run(ctx, []acall.Op{{Opcode: acall.OpClose, FD: fd}}, nil); err != nil {
		t.Fatalf("close: %v", err)
	}
	fd = e.Register(file)
	if err := d.Run(ctx, w.ReadOps(fd), w.Verify); err != nil {
		t.Fatalf("read phase: %v", err)
	}

	st := d.Stats()
	if want := uint64(2*w.Blocks() + 1); st.Submitted != want || st.Completed != want {
		t.Fatalf("Stats: %+v, want %d submitted and completed", st, want)
	}
	if st.MaxPending > 4 || st.MaxInflight > 4 {
		t.Fatalf("window exceeded: %+v", st)
	}
}

// TestReadAfterWriteCorrupted flips a byte in the file between the phases.
func TestReadAfterWriteCorrupted(t *testing.T) {
	e := startEngine(t, 2)
	w, err := rw.New(rw.Config{BlockSize: 4096, TotalSize: 64 * 4096, Seed: 5})
	if err != nil {
		t.Fatalf("rw.New: %v", err)
	}
	defer w.Close()
	file := engine.NewMemFile(w.Bytes())
	fd := e.Register(file)

	r, err := acall.Setup(e, 4, 8)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	d := acall.NewDriver(r)
	if err := d.Run(ctx, w.WriteOps(fd), nil); err != nil {
		t.Fatalf("write phase: %v", err)
	}
	if _, err := file.WriteAt([]byte{0xA5}, 40*4096+123); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	err = d.Run(ctx, w.ReadOps(fd), w.Verify)
	if !errors.Is(err, acall.ErrVerify) || !errors.Is(err, rw.ErrChecksum) {
		t.Fatalf("read phase: got %v, want ErrVerify wrapping ErrChecksum", err)
	}
}

// slowFile delays every transfer so requests pile up behind the engine.
type slowFile struct {
	engine.File
	delay time.Duration

	mu     sync.Mutex
	active int
	peak   int
}

func (f *slowFile) enter() func() {
	f.mu.Lock()
	f.active++
	f.peak = max(f.peak, f.active)
	f.mu.Unlock()
	time.Sleep(f.delay)
	return func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}
}

func (f *slowFile) ReadAt(p []byte, off int64) (int, error) {
	defer f.enter()()
	return f.File.ReadAt(p, off)
}

func (f *slowFile) WriteAt(p []byte, off int64) (int, error) {
	defer f.enter()()
	return f.File.WriteAt(p, off)
}

// TestBackpressure checks that a slow engine never sees more than the
// window outstanding.
func TestBackpressure(t *testing.T) {
	e := startEngine(t, 8)
	f := &slowFile{File: engine.NewMemFile(1 << 20), delay: 200 * time.Microsecond}
	fd := e.Register(f)

	r, err := acall.New(8).CompletionEntries(16).Window(2).Setup(e)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	buf, err := region.Alloc(64 * 1024)
	if err != nil {
		t.Fatalf("region.Alloc: %v", err)
	}
	defer region.Free(buf)

	ops := make([]acall.Op, 64)
	for i := range ops {
		ops[i] = acall.Op{Opcode: acall.OpWrite, FD: fd, Offset: uint64(i * 1024), Buf: buf[i*1024 : (i+1)*1024]}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	d := acall.NewDriver(r)
	if err := d.Run(ctx, ops, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := d.Stats()
	if st.MaxInflight > 2 || st.MaxPending > 2 {
		t.Fatalf("window exceeded: %+v", st)
	}
	f.mu.Lock()
	peak := f.peak
	f.mu.Unlock()
	if peak > 2 {
		t.Fatalf("engine executed %d requests at once, window is 2", peak)
	}
}

// TestSessionsIndependent runs drivers on two sessions at once. Each
// driver issues its own tags, so both start from 1.
func TestSessionsIndependent(t *testing.T) {
	e := startEngine(t, 1)
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for s := range 2 {
		r, err := acall.Setup(e, 4, 8)
		if err != nil {
			t.Fatalf("Setup(%d): %v", s, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			errs[s] = acall.NewDriver(r).Run(ctx, make([]acall.Op, 1000), nil)
		}()
	}
	wg.Wait()
	for s, err := range errs {
		if err != nil {
			t.Fatalf("session %d: %v", s, err)
		}
	}
}

// TestClientEngineConcurrent drives raw rings from two goroutines with no
// engine package involved: one plays the engine and echoes tags. Both
// sides yield on empty rings so the test also progresses on one CPU.
func TestClientEngineConcurrent(t *testing.T) {
	const n = 100000
	m := newMapping(t, 8, 8)
	r, err := acall.Attach(m, 0)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	sq, cq := engineSide(t, m)

	var stop atomix.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		sw := spin.Wait{}
		for !stop.Load() {
			req, err := sq.Dequeue()
			if err != nil {
				sw.Once()
				continue
			}
			sw.Reset()
			c := acall.CompletionEntry{UserData: req.UserData, Res: int32(req.Len)}
			for cq.Enqueue(&c) != nil && !stop.Load() {
				sw.Once()
			}
		}
	}()
	defer func() {
		stop.Store(true)
		<-done
	}()

	next, got := uint64(0), uint64(0)
	deadline := time.Now().Add(30 * time.Second)
	sw := spin.Wait{}
	for got < n {
		if next < n {
			e := acall.RequestEntry{Len: uint32(next), UserData: next}
			if r.Submit(&e) == nil {
				next++
			}
		}
		c, err := r.Reap()
		if err != nil {
			if !errors.Is(err, acall.ErrWouldBlock) {
				t.Fatalf("Reap: %v", err)
			}
			if time.Now().After(deadline) {
				t.Fatalf("stalled at %d of %d, state %+v", got, n, r.State())
			}
			sw.Once()
			continue
		}
		sw.Reset()
		if c.UserData != got || c.Res != int32(uint32(got)) {
			t.Fatalf("completion %d: got %+v", got, c)
		}
		got++
	}
}
