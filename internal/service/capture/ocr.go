package capture

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	ocrNoise      = regexp.MustCompile(`[^\w\s.,!?;:'"()\-=+*/\\<>{}\[\]@#$%^&|` + "`" + `~]`)
)

// CleanOCRText collapses whitespace and strips characters OCR tends to hallucinate.
func CleanOCRText(text string) string {
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = ocrNoise.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
