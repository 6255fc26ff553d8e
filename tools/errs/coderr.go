package errs

import (
	"errors"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// DefaultCodeRelation 错误码父子关系，父码的 Is 同时匹配子码
var DefaultCodeRelation = newCodeRelation()

func NewCodeError(code int, msg string) CodeError {
	return CodeError{Code: code, Msg: msg}
}

// CodeError 对外可见的业务错误；HTTP 层原样渲染 code/msg/detail
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

// WithDetail 返回副本，detail 追加
func (e *CodeError) WithDetail(detail string) CodeError {
	out := *e
	out.Detail = joinDetail(e.Detail, detail)
	return out
}

func (e *CodeError) Wrap() error {
	cp := *e
	return pkgerrors.WithStack(&cp)
}

// WrapMsg 附加上下文（msg + k=v）并记录调用栈
func (e *CodeError) WrapMsg(msg string, kv ...any) error {
	cp := *e
	if msg != "" || len(kv) > 0 {
		cp.Detail = joinDetail(cp.Detail, toString(msg, kv))
	}
	return pkgerrors.WithStack(&cp)
}

// Is err 链上带有同一错误码，或是登记过的子码
func (e *CodeError) Is(err error) bool {
	var ce *CodeError
	if !errors.As(err, &ce) {
		return err == nil && e == nil
	}
	if e == nil {
		return false
	}
	return DefaultCodeRelation.Is(e.Code, ce.Code)
}

func (e *CodeError) Error() string {
	parts := []string{strconv.Itoa(e.Code), e.Msg}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	return strings.Join(parts, " ")
}

// AsCodeError 取最外层 CodeError；未编码的错误一律视为内部错误
func AsCodeError(err error) *CodeError {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce
	}
	internal := ErrInternalServer.WithDetail(err.Error())
	return &internal
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(err)
}

// WrapMsg err 为 nil 时返回 nil
func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(&errorWrapper{error: err, s: toString(msg, kv)})
}

func joinDetail(a, b string) string {
	if a == "" {
		return b
	}
	return a + ", " + b
}

type CodeRelation interface {
	Add(codes ...int) error
	Is(parent, child int) bool
}

func newCodeRelation() CodeRelation {
	return &codeRelation{m: make(map[int]map[int]struct{})}
}

type codeRelation struct {
	m map[int]map[int]struct{}
}

// Add 依次登记：codes[0] 是其后所有码的父，codes[1] 是其后所有码的父，以此类推
func (r *codeRelation) Add(codes ...int) error {
	if len(codes) < 2 {
		return New("need at least two codes", "codes", codes).Wrap()
	}
	for i := 1; i < len(codes); i++ {
		parent := codes[i-1]
		s, ok := r.m[parent]
		if !ok {
			s = make(map[int]struct{})
			r.m[parent] = s
		}
		for _, code := range codes[i:] {
			s[code] = struct{}{}
		}
	}
	return nil
}

func (r *codeRelation) Is(parent, child int) bool {
	if parent == child {
		return true
	}
	_, ok := r.m[parent][child]
	return ok
}
