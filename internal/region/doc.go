// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package region allocates memory shared between the client and the
// engine.
//
// On unix the memory is an anonymous MAP_SHARED mapping. It lives outside
// the Go heap, so addresses stored in ring entries stay valid and are
// never moved or collected while the mapping exists.
package region
