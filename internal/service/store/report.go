package store

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
)

// ExportJSON writes the record as indented JSON, the format of the download button.
func ExportJSON(w io.Writer, record interview.SavedInterview) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("export interview: %w", err)
	}
	return nil
}

type scoreRow struct {
	Label string
	Score float64
}

type reportView struct {
	interview.SavedInterview
	Duration string
	Date     string
	Scores   []scoreRow
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"inc":     func(i int) int { return i + 1 },
	"percent": func(v float64) float64 { return v * 10 },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Interview Report - {{.Date}}</title>
<style>
body{font-family:system-ui,sans-serif;max-width:760px;margin:2rem auto;color:#1f2937}
h1{margin-bottom:.25rem}.meta{color:#6b7280}
.overall{font-size:2.5rem;font-weight:700}
.bar{background:#e5e7eb;border-radius:4px;height:8px}
.bar span{display:block;height:8px;border-radius:4px;background:#6366f1}
table{width:100%;border-collapse:collapse}td{padding:.3rem 0}
.qa{border-left:3px solid #6366f1;padding-left:1rem;margin:1rem 0}
</style>
</head>
<body>
<h1>Interview Report</h1>
<p class="meta">{{.Date}} &middot; {{.Duration}} &middot; {{.QuestionCount}} questions</p>
<p class="overall">{{printf "%.1f" .OverallScore}}/10</p>
<h2>Scores</h2>
<table>
{{range .Scores}}<tr><td>{{.Label}}</td><td>{{printf "%.1f" .Score}}</td><td style="width:50%"><div class="bar"><span style="width:{{percent .Score}}%"></span></div></td></tr>
{{end}}</table>
<h2>Feedback</h2>
<p>{{.Evaluation.Feedback}}</p>
{{if .Evaluation.Strengths}}<h3>Strengths</h3>
<ul>{{range .Evaluation.Strengths}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{if .Evaluation.AreasForImprovement}}<h3>Areas for Improvement</h3>
<ul>{{range .Evaluation.AreasForImprovement}}<li>{{.}}</li>{{end}}</ul>{{end}}
<h2>Detailed Breakdown</h2>
<dl>
<dt>Technical Concepts</dt><dd>{{.Evaluation.DetailedBreakdown.TechnicalConcepts}}</dd>
<dt>Architecture Understanding</dt><dd>{{.Evaluation.DetailedBreakdown.ArchitectureUnderstanding}}</dd>
<dt>Code Quality</dt><dd>{{.Evaluation.DetailedBreakdown.CodeQuality}}</dd>
<dt>Presentation Skills</dt><dd>{{.Evaluation.DetailedBreakdown.PresentationSkills}}</dd>
</dl>
{{if .Questions}}<h2>Questions</h2>
{{range $i, $qa := .Questions}}<div class="qa"><p><strong>Q{{inc $i}}.</strong> {{$qa.Question}}</p><p>{{$qa.Answer}}</p></div>
{{end}}{{end}}
{{if .Transcript}}<h2>Transcript</h2>
<p>{{.Transcript}}</p>{{end}}
</body>
</html>
`))

// RenderReport writes a printable HTML report.
func RenderReport(w io.Writer, record interview.SavedInterview) error {
	eval := record.Evaluation
	view := reportView{
		SavedInterview: record,
		Duration:       record.DurationLabel(),
		Date:           record.Date.Format("January 2, 2006 15:04"),
		Scores: []scoreRow{
			{"Technical Depth", eval.TechnicalDepth},
			{"Understanding", eval.Understanding},
			{"Problem Solving", eval.ProblemSolving},
			{"Clarity", eval.Clarity},
			{"Communication", eval.Communication},
			{"Originality", eval.Originality},
		},
	}
	if err := reportTemplate.Execute(w, view); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
