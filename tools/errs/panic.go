package errs

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrPanic recover() 的值转为内部错误；r 为 nil 时返回 nil
func ErrPanic(r any) error {
	if r == nil {
		return nil
	}
	return pkgerrors.WithStack(&CodeError{Code: ServerInternalError, Msg: "panic", Detail: fmt.Sprint(r)})
}
