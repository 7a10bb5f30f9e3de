// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"unsafe"

	"code.hybscloud.com/acall"
	"code.hybscloud.com/acall/internal/region"
	"code.hybscloud.com/atomix"
	"github.com/sirupsen/logrus"
)

// DefaultMaxEntries bounds a submission ring when Config.MaxEntries is 0.
const DefaultMaxEntries = 4096

// Config tunes an Engine.
type Config struct {
	// MaxEntries is the largest submission ring accepted. The completion
	// ring may be up to twice as large.
	MaxEntries uint32
	// Clamp shrinks oversize requests to the maximum instead of rejecting
	// them.
	Clamp bool
	// Workers is the number of I/O goroutines per session. Zero means 1.
	// With one worker completions are published in submission order.
	Workers int
	// Logger receives engine events. Nil means logrus.StandardLogger().
	Logger *logrus.Logger
}

// Engine serves sessions created by Setup. Each session gets its own
// shared region and a poller goroutine; all sessions share one
// descriptor table.
type Engine struct {
	cfg      Config
	log      *logrus.Entry
	files    fileTable
	mu       sync.Mutex
	sessions map[*byte]*session
	nextID   atomix.Uint64
	closed   bool
	wg       sync.WaitGroup
}

// ErrClosed is returned by Setup on a closed engine.
var ErrClosed = errors.New("engine: closed")

// New creates an engine.
func New(cfg Config) *Engine {
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		cfg:      cfg,
		log:      logger.WithField("component", "acall-engine"),
		sessions: make(map[*byte]*session),
	}
}

var _ acall.Engine = (*Engine)(nil)

// Setup negotiates capacities, maps a region, writes its ring headers and
// starts serving it.
//
// cqEntries 0 selects twice sqEntries. Zero or non-power-of-two sizes and a
// completion ring smaller than the submission ring are rejected with
// acall.CodeInvalidArgs; sizes above the maximum are clamped or rejected
// depending on Config.Clamp.
func (e *Engine) Setup(sqEntries, cqEntries uint32) (*acall.Mapping, error) {
	sq, cq, err := e.negotiate(sqEntries, cqEntries)
	if err != nil {
		e.log.WithFields(logrus.Fields{"sq": sqEntries, "cq": cqEntries}).WithError(err).Warn("setup rejected")
		return nil, err
	}

	params, err := acall.ComputeLayout(sq, cq)
	if err != nil {
		return nil, acall.CodeInvalidArgs
	}
	mem, err := region.Alloc(int(params.Size))
	if err != nil {
		e.log.WithError(err).Error("setup: region allocation failed")
		return nil, acall.CodeNoMemory
	}
	m := &acall.Mapping{Mem: mem, Params: params}
	if err := m.Init(); err != nil {
		region.Free(mem)
		return nil, fmt.Errorf("engine: init region: %w", err)
	}

	id := e.nextID.AddAcqRel(1)
	s, err := newSession(e, id, m)
	if err != nil {
		region.Free(mem)
		return nil, fmt.Errorf("engine: session %d: %w", id, err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		region.Free(mem)
		return nil, ErrClosed
	}
	e.sessions[unsafe.SliceData(mem)] = s
	e.wg.Add(1)
	e.mu.Unlock()

	go s.run()

	s.log.WithFields(logrus.Fields{
		"sq":      sq,
		"cq":      cq,
		"size":    params.Size,
		"workers": e.cfg.Workers,
	}).Info("session started")

	return &acall.Mapping{Mem: mem, Params: params}, nil
}

func (e *Engine) negotiate(sq, cq uint32) (uint32, uint32, error) {
	if cq == 0 {
		cq = sq * 2
	}
	if !isPow2(sq) || !isPow2(cq) {
		return 0, 0, acall.CodeInvalidArgs
	}
	if sq > e.cfg.MaxEntries {
		if !e.cfg.Clamp {
			return 0, 0, acall.CodeInvalidArgs
		}
		sq = floorPow2(e.cfg.MaxEntries)
	}
	if maxCQ := 2 * e.cfg.MaxEntries; cq > maxCQ {
		if !e.cfg.Clamp {
			return 0, 0, acall.CodeInvalidArgs
		}
		cq = floorPow2(maxCQ)
	}
	if cq < sq {
		return 0, 0, acall.CodeInvalidArgs
	}
	return sq, cq, nil
}

// Release stops the session serving m and unmaps its region. The client
// must not touch m afterwards.
func (e *Engine) Release(m *acall.Mapping) error {
	if m == nil || len(m.Mem) == 0 {
		return acall.CodeInvalidArgs
	}
	key := unsafe.SliceData(m.Mem)
	e.mu.Lock()
	s, ok := e.sessions[key]
	delete(e.sessions, key)
	e.mu.Unlock()
	if !ok {
		return acall.CodeNotFound
	}
	s.stop()
	return region.Free(s.mapping.Mem)
}

// Close stops every session, unmaps their regions and closes every
// registered file that is an io.Closer.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	sessions := e.sessions
	e.sessions = make(map[*byte]*session)
	e.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		s.stop()
		if err := region.Free(s.mapping.Mem); err != nil {
			errs = append(errs, err)
		}
	}
	e.wg.Wait()
	for _, f := range e.files.drain() {
		if c, ok := f.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Register adds f to the descriptor table and returns its descriptor.
func (e *Engine) Register(f File) int32 {
	return e.files.add(f)
}

// Open opens path and registers the file.
func (e *Engine) Open(path string, flag int, perm os.FileMode) (int32, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return -1, err
	}
	return e.files.add(f), nil
}

// Unregister removes fd from the table and closes its file if it is an
// io.Closer.
func (e *Engine) Unregister(fd int32) error {
	f, ok := e.files.remove(fd)
	if !ok {
		return acall.CodeNotFound
	}
	if c, ok := f.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// execute performs one request and returns the completion result.
func (e *Engine) execute(req *acall.RequestEntry) int32 {
	switch req.Opcode {
	case acall.OpNop:
		return 0
	case acall.OpRead, acall.OpWrite:
		return e.transfer(req)
	case acall.OpClose:
		if err := e.Unregister(req.FD); err != nil {
			return int32(codeOf(err))
		}
		return 0
	}
	return int32(acall.CodeNotSupported)
}

func (e *Engine) transfer(req *acall.RequestEntry) int32 {
	f, ok := e.files.get(req.FD)
	if !ok {
		return int32(acall.CodeNotFound)
	}
	if req.Len > math.MaxInt32 || (req.Addr == 0 && req.Len != 0) {
		return int32(acall.CodeInvalidArgs)
	}
	if req.Offset > math.MaxInt64 {
		return int32(acall.CodeOutOfRange)
	}
	buf := req.Buffer()

	var (
		n   int
		err error
	)
	if req.Opcode == acall.OpRead {
		n, err = f.ReadAt(buf, int64(req.Offset))
		if errors.Is(err, io.EOF) {
			err = nil
		}
	} else {
		n, err = f.WriteAt(buf, int64(req.Offset))
	}
	if err != nil {
		return int32(codeOf(err))
	}
	return int32(n)
}

func isPow2(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}

func floorPow2(n uint32) uint32 {
	for n&(n-1) != 0 {
		n &= n - 1
	}
	return n
}
