package speech

// TTSRequest 语音合成请求
type TTSRequest struct {
	UtteranceID string `json:"utteranceId"`
	Text        string `json:"text"`
	Voice       Voice  `json:"voice"`
	Format      string `json:"format"` // mp3, wav, etc.
}
