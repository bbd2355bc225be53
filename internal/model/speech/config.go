package speech

// Voice 描述一次合成使用的音色参数。
type Voice struct {
	Name     string  `json:"name"`
	Speed    float32 `json:"speed"`  // 语速倍率 0.5-2.0
	Volume   float32 `json:"volume"` // 音量 0.0-1.0
	Language string  `json:"language"`
}

// WithDefaults fills zero fields from fallback.
func (v Voice) WithDefaults(fallback Voice) Voice {
	if v.Name == "" {
		v.Name = fallback.Name
	}
	if v.Speed <= 0 {
		v.Speed = fallback.Speed
	}
	if v.Volume <= 0 {
		v.Volume = fallback.Volume
	}
	if v.Language == "" {
		v.Language = fallback.Language
	}
	return v
}
