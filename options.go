// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package acall

import "fmt"

// Options configures session setup.
type Options struct {
	sqEntries uint32
	cqEntries uint32 // 0 lets the engine pick
	window    uint32 // 0 means the negotiated submission capacity
}

// Builder creates sessions with fluent configuration.
//
// Example:
//
//	// Four submission slots, eight completion slots, at most four in flight
//	r, err := acall.New(4).CompletionEntries(8).Window(4).Setup(eng)
//
//	// Engine defaults for the completion ring
//	r, err := acall.New(64).Setup(eng)
type Builder struct {
	opts Options
}

// New creates a session builder with the given submission capacity.
//
// The capacity is sent to the engine as is. A value that is not a power of
// two fails Setup with ErrInvalidArgument; it is not rounded.
func New(sqEntries uint32) *Builder {
	return &Builder{opts: Options{sqEntries: sqEntries}}
}

// CompletionEntries requests a completion ring capacity.
// Zero leaves the choice to the engine.
func (b *Builder) CompletionEntries(n uint32) *Builder {
	b.opts.cqEntries = n
	return b
}

// Window bounds the number of submitted, not yet consumed requests.
// Zero, or a value above the submission capacity, means the capacity.
func (b *Builder) Window(n uint32) *Builder {
	b.opts.window = n
	return b
}

// Setup negotiates with e and attaches to the returned region.
func (b *Builder) Setup(e Engine) (*Ring, error) {
	if !isPow2(b.opts.sqEntries) || (b.opts.cqEntries != 0 && !isPow2(b.opts.cqEntries)) {
		return nil, fmt.Errorf("acall: setup: %w: sq=%d cq=%d", ErrInvalidCapacity, b.opts.sqEntries, b.opts.cqEntries)
	}
	m, err := e.Setup(b.opts.sqEntries, b.opts.cqEntries)
	if err != nil {
		return nil, fmt.Errorf("acall: setup: %w", err)
	}
	return Attach(m, b.opts.window)
}

// Setup is shorthand for New(sqEntries).CompletionEntries(cqEntries).Setup(e).
func Setup(e Engine, sqEntries, cqEntries uint32) (*Ring, error) {
	return New(sqEntries).CompletionEntries(cqEntries).Setup(e)
}
