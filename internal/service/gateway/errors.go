package gateway

import (
	"errors"
	"fmt"
)

// ErrConfiguration 缺少模型凭证或合成器时返回，调用方应直接上报。
var ErrConfiguration = errors.New("llm gateway not configured")

// RemoteCallError wraps a failed call to the model or synthesis provider.
type RemoteCallError struct {
	Op  string
	Err error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("%s: remote call failed: %v", e.Op, e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// MalformedReplyError 模型回复无法解析为期望结构。
type MalformedReplyError struct {
	Op     string
	Reason string
	Raw    string
}

func (e *MalformedReplyError) Error() string {
	return fmt.Sprintf("%s: malformed reply: %s", e.Op, e.Reason)
}

// IsRecoverable reports whether err is handled with fallback content rather than surfaced.
func IsRecoverable(err error) bool {
	var remote *RemoteCallError
	var malformed *MalformedReplyError
	return errors.As(err, &remote) || errors.As(err, &malformed)
}
