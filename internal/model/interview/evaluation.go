package interview

import "math"

// BreakdownUnavailable 评估缺失某个维度时的占位文案。
const BreakdownUnavailable = "Assessment unavailable."

// FallbackFeedback is used when no evaluation could be produced.
const FallbackFeedback = "Unable to generate detailed feedback. Interview completed."

// DefaultSubScore 缺失分项时的默认分值。
const DefaultSubScore = 5

// Score weights used for overallScore.
const (
	WeightTechnicalDepth = 0.25
	WeightUnderstanding  = 0.20
	WeightProblemSolving = 0.20
	WeightClarity        = 0.15
	WeightCommunication  = 0.10
	WeightOriginality    = 0.10
)

// Breakdown 四个定性评估维度。
type Breakdown struct {
	TechnicalConcepts         string `json:"technicalConcepts"`
	ArchitectureUnderstanding string `json:"architectureUnderstanding"`
	CodeQuality               string `json:"codeQuality"`
	PresentationSkills        string `json:"presentationSkills"`
}

// Evaluation 面试结束后的评分结果。
type Evaluation struct {
	TechnicalDepth      float64   `json:"technicalDepth"`
	Clarity             float64   `json:"clarity"`
	Originality         float64   `json:"originality"`
	Understanding       float64   `json:"understanding"`
	ProblemSolving      float64   `json:"problemSolving"`
	Communication       float64   `json:"communication"`
	OverallScore        float64   `json:"overallScore"`
	Feedback            string    `json:"feedback"`
	Strengths           []string  `json:"strengths"`
	AreasForImprovement []string  `json:"areasForImprovement"`
	DetailedBreakdown   Breakdown `json:"detailedBreakdown"`
}

// WeightedScore computes the overall score from the six sub-scores, rounded to one decimal.
func (e Evaluation) WeightedScore() float64 {
	raw := e.TechnicalDepth*WeightTechnicalDepth +
		e.Understanding*WeightUnderstanding +
		e.ProblemSolving*WeightProblemSolving +
		e.Clarity*WeightClarity +
		e.Communication*WeightCommunication +
		e.Originality*WeightOriginality
	return RoundScore(raw)
}

// Normalize clamps sub-scores into [0,10], fills empty breakdown fields and
// recomputes OverallScore when it is missing (zero). Calling it twice is harmless.
func (e *Evaluation) Normalize() {
	for _, score := range []*float64{
		&e.TechnicalDepth, &e.Clarity, &e.Originality,
		&e.Understanding, &e.ProblemSolving, &e.Communication,
	} {
		*score = clampScore(*score)
	}

	if e.OverallScore <= 0 || math.IsNaN(e.OverallScore) {
		e.OverallScore = e.WeightedScore()
	} else {
		e.OverallScore = RoundScore(clampScore(e.OverallScore))
	}

	if e.Strengths == nil {
		e.Strengths = []string{}
	}
	if e.AreasForImprovement == nil {
		e.AreasForImprovement = []string{}
	}

	for _, field := range []*string{
		&e.DetailedBreakdown.TechnicalConcepts,
		&e.DetailedBreakdown.ArchitectureUnderstanding,
		&e.DetailedBreakdown.CodeQuality,
		&e.DetailedBreakdown.PresentationSkills,
	} {
		if *field == "" {
			*field = BreakdownUnavailable
		}
	}
}

// FallbackEvaluation 评估失败时使用的中性结果。
func FallbackEvaluation() Evaluation {
	return Evaluation{
		TechnicalDepth:      DefaultSubScore,
		Clarity:             DefaultSubScore,
		Originality:         DefaultSubScore,
		Understanding:       DefaultSubScore,
		ProblemSolving:      DefaultSubScore,
		Communication:       DefaultSubScore,
		OverallScore:        DefaultSubScore,
		Feedback:            FallbackFeedback,
		Strengths:           []string{},
		AreasForImprovement: []string{},
		DetailedBreakdown: Breakdown{
			TechnicalConcepts:         BreakdownUnavailable,
			ArchitectureUnderstanding: BreakdownUnavailable,
			CodeQuality:               BreakdownUnavailable,
			PresentationSkills:        BreakdownUnavailable,
		},
	}
}

// RoundScore rounds half away from zero to one decimal place.
func RoundScore(v float64) float64 {
	return math.Round(v*10) / 10
}

func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return DefaultSubScore
	case v < 0:
		return 0
	case v > 10:
		return 10
	default:
		return v
	}
}
