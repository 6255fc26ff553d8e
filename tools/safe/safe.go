package safe

import (
	"fmt"
	"reflect"

	"CareChat/logger"
	"CareChat/tools/errs"

	"go.uber.org/zap"
)

// MustNotNil 构造时校验必需依赖，nil 指针/接口/函数都算
func MustNotNil(v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("%s must not be nil", name))
		}
	}
}

// Go 起一个 goroutine，panic 只记日志不让进程退出
func Go(name string, f func()) {
	go func() {
		defer Recover(name)
		f()
	}()
}

// Recover 必须直接 defer 调用
func Recover(name string) {
	if r := recover(); r != nil {
		logger.Error("panic recovered", zap.String("task", name), zap.Error(errs.ErrPanic(r)))
	}
}
