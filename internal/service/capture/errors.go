package capture

import "fmt"

// Recognizer error codes reported by the browser.
const (
	CodeNoSpeech          = "no-speech"
	CodeAborted           = "aborted"
	CodeNetwork           = "network"
	CodeNotAllowed        = "not-allowed"
	CodeServiceNotAllowed = "service-not-allowed"
	CodeAudioCapture      = "audio-capture"
)

// MediaAccessError 用户拒绝或撤销了屏幕/麦克风权限，对应的适配器停止产出事件。
type MediaAccessError struct {
	Source string // "microphone" or "screen"
	Code   string
}

func (e *MediaAccessError) Error() string {
	return fmt.Sprintf("%s access denied: %s", e.Source, e.Code)
}

// IsTransient 可忽略的识别抖动，不向用户展示。
func IsTransient(code string) bool {
	switch code {
	case CodeNoSpeech, CodeAborted, CodeNetwork:
		return true
	default:
		return false
	}
}

// IsMediaAccess reports whether code means the permission was denied or the device is unavailable.
func IsMediaAccess(code string) bool {
	switch code {
	case CodeNotAllowed, CodeServiceNotAllowed, CodeAudioCapture:
		return true
	default:
		return false
	}
}
