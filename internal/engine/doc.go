// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package engine is an in-process engine for acall rings.
//
// An [Engine] plays the role the kernel plays for a real asynchronous
// I/O ring: [Engine.Setup] negotiates ring sizes, maps a shared region
// outside the Go heap and writes its ring headers. A poller goroutine
// then consumes requests, runs them on worker goroutines against a
// descriptor table and publishes completions.
//
// Descriptors refer to any [File]; [MemFile] is a fixed-size RAM disk and
// [Engine.Open] registers an *os.File.
//
//	e := engine.New(engine.Config{})
//	defer e.Close()
//	fd := e.Register(engine.NewMemFile(0))
//	r, err := acall.Setup(e, 4, 8)
package engine
