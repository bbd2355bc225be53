package interview

import "strings"

var technicalTerms = []string{
	"function", "algorithm", "component", "architecture", "database", "api",
	"framework", "library", "optimization", "scalability", "async", "promise",
	"react", "node", "typescript", "javascript",
}

// AssessDifficulty 根据平均回答长度与技术术语数量估计难度。
func AssessDifficulty(answers []string, transcript string) Difficulty {
	total := 0
	for _, ans := range answers {
		total += len(ans)
	}
	count := len(answers)
	if count < 1 {
		count = 1
	}
	avg := float64(total) / float64(count)

	lower := strings.ToLower(transcript)
	terms := 0
	for _, term := range technicalTerms {
		if strings.Contains(lower, term) {
			terms++
		}
	}

	switch {
	case avg > 200 && terms > 3:
		return DifficultyHard
	case avg > 100 || terms > 1:
		return DifficultyMedium
	default:
		return DifficultyEasy
	}
}
