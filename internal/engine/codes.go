// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"errors"
	"io/fs"
	"syscall"

	"code.hybscloud.com/acall"
)

// codeOf maps an I/O error to the result code written into the completion.
func codeOf(err error) acall.Code {
	var code acall.Code
	switch {
	case errors.As(err, &code):
		return code
	case errors.Is(err, ErrOutOfRange), errors.Is(err, syscall.EFAULT), errors.Is(err, syscall.EFBIG):
		return acall.CodeOutOfRange
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.EBADF):
		return acall.CodeNotFound
	case errors.Is(err, fs.ErrExist):
		return acall.CodeAlreadyExists
	case errors.Is(err, fs.ErrPermission):
		return acall.CodeAccessDenied
	case errors.Is(err, fs.ErrClosed):
		return acall.CodeBadState
	case errors.Is(err, fs.ErrInvalid), errors.Is(err, syscall.EINVAL):
		return acall.CodeInvalidArgs
	case errors.Is(err, syscall.ENOMEM):
		return acall.CodeNoMemory
	}
	return acall.CodeInternal
}
