package speech

import (
	"strconv"
	"time"
)

// Audio 合成得到的音频，调用方按不透明字节处理。
type Audio struct {
	UtteranceID string    `json:"utteranceId,omitempty"`
	Data        []byte    `json:"-"`
	Format      string    `json:"format"`
	Duration    int64     `json:"duration"` // milliseconds
	RequestID   string    `json:"requestId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ContentType returns the MIME type matching Format.
func (a *Audio) ContentType() string {
	switch a.Format {
	case "wav":
		return "audio/wav"
	case "ogg", "ogg_opus":
		return "audio/ogg"
	case "pcm":
		return "audio/L16"
	default:
		return "audio/mpeg"
	}
}

// ContentLength 以字符串形式返回字节数，便于写入响应头。
func (a *Audio) ContentLength() string {
	return strconv.Itoa(len(a.Data))
}
