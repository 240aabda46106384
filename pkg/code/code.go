package code

import (
	"fmt"
	"net/http"
)

// Level notification severity
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Code a user-facing result: numeric code, localised message, optional details and data.
// Code 面向用户的结果码：数字码、多语言消息、可选详情和数据
type Code struct {
	// 状态码
	code int
	// 是否成功
	status bool
	// 提示级别
	level Level
	// 消息
	Lang lang
	// 数据
	data     interface{}
	haveData bool
	// 错误详细信息
	details     []string
	haveDetails bool
}

var codes = map[int]string{}

func newCode(code int, status bool, level Level, l lang) *Code {
	if _, ok := codes[code]; ok {
		panic(fmt.Sprintf("错误码 %d 已经存在，请更换一个", code))
	}
	codes[code] = l.GetMessage()
	return &Code{code: code, status: status, level: level, Lang: l}
}

// NewError registers an error code
func NewError(code int, l lang) *Code {
	return newCode(code, false, LevelError, l)
}

// NewWarn registers a warning code; a warning is a rejected action without state change.
func NewWarn(code int, l lang) *Code {
	return newCode(code, false, LevelWarn, l)
}

// NewSuss registers a success code
func NewSuss(code int, l lang) *Code {
	return newCode(code, true, LevelInfo, l)
}

// Clone 创建一个新的 Code 副本，不带 data 与 details
func (e *Code) Clone() *Code {
	return &Code{
		code:   e.code,
		status: e.status,
		level:  e.level,
		Lang:   e.Lang,
	}
}

func (e *Code) Error() string {
	if e.haveDetails && len(e.details) > 0 {
		return fmt.Sprintf("%s: %v", e.Msg(), e.details)
	}
	return e.Msg()
}

func (e *Code) Code() int {
	return e.code
}

func (e *Code) Status() bool {
	return e.status
}

func (e *Code) Level() Level {
	return e.level
}

func (e *Code) Msg() string {
	return e.Lang.GetMessage()
}

func (e *Code) Details() []string {
	return e.details
}

func (e *Code) Data() interface{} {
	return e.data
}

func (e *Code) HaveDetails() bool {
	return e.haveDetails
}

func (e *Code) HaveData() bool {
	return e.haveData
}

// WithData returns a copy carrying data; registered codes are shared and never mutated.
func (e *Code) WithData(data interface{}) *Code {
	c := e.Clone()
	c.details, c.haveDetails = e.details, e.haveDetails
	c.haveData = true
	c.data = data
	return c
}

// WithDetails returns a copy carrying details.
func (e *Code) WithDetails(details ...string) *Code {
	c := e.Clone()
	c.data, c.haveData = e.data, e.haveData
	c.haveDetails = true
	c.details = append([]string{}, details...)
	return c
}

// Is matches any Code with the same numeric code, so errors.Is works on derived copies.
func (e *Code) Is(target error) bool {
	t, ok := target.(*Code)
	return ok && t.code == e.code
}

// StatusCode HTTP 状态码
func (e *Code) StatusCode() int {
	switch e.code {
	case ErrorInvalidParams.code:
		return http.StatusBadRequest
	case ErrorInvalidAuthToken.code, ErrorNotAuthorized.code:
		return http.StatusUnauthorized
	case ErrorPermissionDenied.code:
		return http.StatusForbidden
	case ErrorNoteNotFound.code, ErrorSceneNotFound.code, ErrorNotFoundAPI.code:
		return http.StatusNotFound
	case ErrorWriteQueueFull.code, ErrorTooManyRequests.code:
		return http.StatusTooManyRequests
	case ErrorChannelUnavailable.code:
		return http.StatusServiceUnavailable
	}
	switch e.level {
	case LevelWarn:
		return http.StatusConflict
	case LevelError:
		return http.StatusInternalServerError
	}
	return http.StatusOK
}
