package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/streamlens/streamlens/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatReport renders a validation report as a table.
func (f *TableFormatter) FormatReport(report *core.ValidationReport) (string, error) {
	if report == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Endpoint", "Status", "Avg / Min / Max (ms)", "Attempts", "Notes"})

	for _, result := range sortedResults(report) {
		t.AppendRow(table.Row{
			result.Endpoint.Address,
			statusLabel(report, result),
			latencyCell(result),
			result.Attempts,
			noteCell(result),
		})
	}

	if report.Stats.Total > 0 {
		t.AppendFooter(table.Row{
			"",
			summaryLine(report.Stats),
			"",
			"",
			"",
		})
	}

	rendered := t.Render()
	if !report.Success && report.Error != "" {
		rendered += fmt.Sprintf("\nrun failed: %s", report.Error)
	}
	return rendered, nil
}
