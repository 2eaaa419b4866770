package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

var htmlReport = template.Must(template.New("report").Funcs(template.FuncMap{
	"round": func(d time.Duration) time.Duration { return d.Round(time.Millisecond) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>gherkit run {{.Run.ID}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 0.3rem 0.8rem; text-align: left; }
.passed { color: #1a7f37; }
.failed { color: #cf222e; }
.source { border: 1px solid #ccc; padding: 0.5rem; overflow-x: auto; }
</style>
</head>
<body>
<h1>gherkit run</h1>
<p>{{.Summary.Line}}</p>
<table>
<tr><th>Scenario</th><th>Feature</th><th>Status</th><th>Duration</th></tr>
{{range .Run.Scenarios}}<tr>
<td>{{.Name}}</td><td>{{.Feature}}</td>
<td class="{{.Status}}">{{.Status}}</td><td>{{round .Duration}}</td>
</tr>
{{end}}</table>
{{range .Failures}}
<h2 class="failed">{{.Scenario.Name}}</h2>
<p>{{.Scenario.Error}}</p>
{{if .Scenario.TriageNote}}<p><em>{{.Scenario.TriageNote}}</em></p>{{end}}
<ul>
{{if .Scenario.TracePath}}<li>trace: <code>{{.Scenario.TracePath}}</code></li>{{end}}
{{if .Scenario.ScreenshotPath}}<li>screenshot: <code>{{.Scenario.ScreenshotPath}}</code></li>{{end}}
</ul>
{{if .Source}}<div class="source">{{.Source}}</div>{{end}}
{{end}}
</body>
</html>
`))

type htmlFailure struct {
	Scenario Scenario
	Source   template.HTML
}

type htmlData struct {
	Run      *Run
	Summary  Summary
	Failures []htmlFailure
}

// WriteHTML persists a self-contained HTML report. Failed scenarios carry
// their feature source, syntax-highlighted, so the failure reads in context.
func WriteHTML(run *Run, path string) error {
	data := htmlData{Run: run, Summary: Summarize(run)}
	for _, s := range run.Scenarios {
		if s.Status != StatusFailed {
			continue
		}
		data.Failures = append(data.Failures, htmlFailure{
			Scenario: s,
			Source:   highlightFeature(s.URI),
		})
	}

	var buf bytes.Buffer
	if err := htmlReport.Execute(&buf, data); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write html report: %w", err)
	}
	return nil
}

// highlightFeature reads the feature file behind uri and highlights it as
// Gherkin. A missing or unreadable file yields an empty block, not an error;
// the report is still useful without the source.
func highlightFeature(uri string) template.HTML {
	if uri == "" {
		return ""
	}
	source, err := os.ReadFile(uri)
	if err != nil {
		return ""
	}

	lexer := lexers.Get("gherkin")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	style := styles.Get("github")
	if style == nil {
		style = styles.Fallback
	}
	formatter := html.New(html.WithLineNumbers(true))

	iterator, err := lexer.Tokenise(nil, string(source))
	if err != nil {
		return ""
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return ""
	}
	return template.HTML(buf.String())
}
