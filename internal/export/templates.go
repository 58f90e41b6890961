package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var boardTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}
	boardTemplate = template.Must(template.New("board").Funcs(funcMap).Parse(boardReportTemplate))
}

// TemplateData holds data for board report rendering
type TemplateData struct {
	BoardName   string
	SeriesName  string
	Status      string
	GeneratedAt time.Time
	Columns     []TemplateColumn
	Agreements  []TemplateAgreement
	Health      []TemplateHealth
}

// TemplateColumn holds one column and its cards
type TemplateColumn struct {
	Title string
	Cards []TemplateCard
}

// TemplateCard holds card data for the report
type TemplateCard struct {
	Content string
	Author  string
	Votes   int
}

// TemplateAgreement holds agreement data for the report
type TemplateAgreement struct {
	Content   string
	Author    string
	Completed bool
}

// TemplateHealth holds one aggregated health question
type TemplateHealth struct {
	Question      string
	AverageRating float64
	ResponseCount int
}

// RenderBoardHTML renders the board report template with provided data
func RenderBoardHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := boardTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const boardReportTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.BoardName}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h2 { margin-top: 2rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .card { background: #f5f5f5; padding: 0.75rem 1rem; margin: 0.5rem 0; border-left: 3px solid #333; }
    .card .byline { color: #666; font-size: 0.85em; }
    .votes { float: right; font-weight: bold; }
    .agreement { padding: 0.75rem 1rem; margin: 0.5rem 0; border-left: 3px solid #2a7; }
    .agreement.done { text-decoration: line-through; color: #888; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #ccc; padding: 0.5rem; text-align: left; }
  </style>
</head>
<body>
  <h1>{{.BoardName}}</h1>
  <div class="meta">{{.SeriesName}} | {{lower .Status}} | {{formatDate .GeneratedAt "Jan 2, 2006"}}</div>

  {{range .Columns}}
  <h2>{{.Title}}</h2>
  {{range .Cards}}
  <div class="card">
    {{if .Votes}}<span class="votes">{{.Votes}} votes</span>{{end}}
    {{.Content}}
    <div class="byline">{{.Author}}</div>
  </div>
  {{else}}<p><em>No cards.</em></p>{{end}}
  {{end}}

  {{if .Agreements}}
  <h2>Agreements</h2>
  {{range .Agreements}}
  <div class="agreement{{if .Completed}} done{{end}}">{{.Content}} <span class="byline">({{.Author}})</span></div>
  {{end}}
  {{end}}

  {{if .Health}}
  <h2>Team Health</h2>
  <table>
    <tr><th>Question</th><th>Average</th><th>Responses</th></tr>
    {{range .Health}}
    <tr><td>{{.Question}}</td><td>{{printf "%.1f" .AverageRating}}</td><td>{{.ResponseCount}}</td></tr>
    {{end}}
  </table>
  {{end}}
</body>
</html>`
