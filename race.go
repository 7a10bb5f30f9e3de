// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package acall

// RaceEnabled is true when the race detector is active.
// Used by tests to skip runs where a client and an engine share ring
// memory, which the detector reports as races on the entry slots.
const RaceEnabled = true
