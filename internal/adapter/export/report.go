package export

import (
	"io"
	"text/template"

	"github.com/couchcryptid/vaccination-data-etl/internal/domain"
)

var reportTemplate = template.Must(template.New("report").Parse(`# Vaccination data run {{.RunID}}

Generated at {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}.

## Coverage

- Locations with data: {{.Coverage.Locations}}
- Share of world population: {{printf "%.2f" .Coverage.WorldPopulationShare}}%

## Output

- Daily rows: {{.Rows}}
- Aggregates:{{range .AggregateNames}} {{.}};{{else}} none{{end}}
{{- if .Locations}}

| Location | Vaccines | Last observation |
|---|---|---|
{{- range .Locations}}
| {{.Location}} | {{.Vaccines}} | {{.LastObservationDate.Format "2006-01-02"}} |
{{- end}}
{{- end}}
`))

type reportData struct {
	domain.Dataset
	Rows           int
	AggregateNames []string
	Locations      []LocationSummary
}

func writeReport(w io.Writer, ds domain.Dataset, rows int) error {
	data := reportData{Dataset: ds, Rows: rows, Locations: Locations(ds)}
	for _, s := range ds.Series {
		if ds.IsAggregate(s.Location) {
			data.AggregateNames = append(data.AggregateNames, s.Location)
		}
	}
	return reportTemplate.Execute(w, data)
}
