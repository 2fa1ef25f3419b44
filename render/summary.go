package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/warp/stage5-reports/period"
	"github.com/warp/stage5-reports/report"
)

// LongDateLayout is the human date used in subjects and headings.
const LongDateLayout = "January 02, 2006"

const summaryHTMLTemplate = `<h2>Stage 5 Completion Reports - {{longDate .Date}}</h2>
<p>Please find attached the following reports generated on {{.Date}}:</p>
<ul>
{{- range .Reports}}
<li><strong>{{.Window.Label}}</strong>: {{.Records}} records</li>
{{- end}}
</ul>
`

var summaryTemplate = template.Must(template.New("summary").Funcs(template.FuncMap{
	"longDate": func(d period.Date) string { return d.Format(LongDateLayout) },
}).Parse(summaryHTMLTemplate))

type summaryView struct {
	Date    period.Date
	Reports []report.GeneratedReport
}

// Summary renders the HTML notification body: a heading, the generation
// date and one list item per attached report.
func Summary(ref period.Date, reports []report.GeneratedReport) (string, error) {
	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, summaryView{Date: ref, Reports: reports}); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return buf.String(), nil
}

// Subject returns the notification subject for ref.
func Subject(ref period.Date) string {
	return "Stage 5 Completion Reports - " + ref.Format(LongDateLayout)
}
