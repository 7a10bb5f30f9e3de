// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package acall

import "code.hybscloud.com/atomix"

// Index is a ring counter placed in memory shared with the engine.
//
// Every cross-context publication goes through StoreRelease, and every
// observation of the peer's counter through LoadAcquire. Entry payloads
// written before StoreRelease are visible to a reader after the matching
// LoadAcquire. The Relaxed forms are for the owner reading back its own
// counter, which no other context writes.
type Index struct {
	p *atomix.Uint32
}

// LoadAcquire returns the latest published value. Reads that follow are
// not reordered before it.
func (i Index) LoadAcquire() uint32 {
	return i.p.LoadAcquire()
}

// StoreRelease publishes v. Writes that precede it are not reordered
// after it.
func (i Index) StoreRelease(v uint32) {
	i.p.StoreRelease(v)
}

// LoadRelaxed reads the counter without ordering.
func (i Index) LoadRelaxed() uint32 {
	return i.p.LoadRelaxed()
}

// StoreRelaxed writes the counter without ordering. Only used while the
// region is private to the engine during setup.
func (i Index) StoreRelaxed(v uint32) {
	i.p.StoreRelaxed(v)
}
