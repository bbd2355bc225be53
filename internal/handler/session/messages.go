package session

import "encoding/json"

// Inbound message types.
const (
	MsgStart            = "start"
	MsgEnd              = "end"
	MsgSpeech           = "speech"
	MsgRecognitionError = "recognition_error"
	MsgRecognitionEnd   = "recognition_end"
	MsgScreenFrame      = "screen_frame"
	MsgScreenRevoked    = "screen_revoked"
	MsgPlaybackDone     = "playback_done"
	MsgTriggerNext      = "trigger_next"
)

// Outbound message types.
const (
	OutConnected        = "connected"
	OutState            = "state"
	OutTranscript       = "transcript"
	OutReply            = "reply"
	OutAudio            = "audio"
	OutSpeakLocal       = "speak_local"
	OutStopAudio        = "stop_audio"
	OutRecognitionStart = "recognition_start"
	OutRecognitionStop  = "recognition_stop"
	OutScreen           = "screen"
	OutMediaError       = "media_error"
	OutSaved            = "saved"
	OutError            = "error"
)

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// SpeechMessage 浏览器识别结果。
type SpeechMessage struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// CodeMessage carries a recognizer or screen-capture error code.
type CodeMessage struct {
	Code string `json:"code"`
}

// FrameMessage 屏幕截图（data URL）或 OCR 文本。
type FrameMessage struct {
	Image string `json:"image,omitempty"`
	Text  string `json:"text,omitempty"`
}

// PlaybackMessage acknowledges the end of an utterance on the client.
// A non-empty Error means the client could not play it.
type PlaybackMessage struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

type audioPayload struct {
	ID          string `json:"id"`
	Format      string `json:"format"`
	ContentType string `json:"contentType"`
	AudioData   []byte `json:"audioData"`
	Duration    int64  `json:"duration,omitempty"`
}

type speakLocalPayload struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type mediaErrorPayload struct {
	Source  string `json:"source"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
