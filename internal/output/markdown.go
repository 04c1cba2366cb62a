package output

import (
	"fmt"
	"strings"

	"github.com/streamlens/streamlens/internal/core"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatReport renders a validation report as Markdown.
func (f *MarkdownFormatter) FormatReport(report *core.ValidationReport) (string, error) {
	if report == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Validation run %s\n\n", escapeMarkdownCell(report.RunID)))
	sb.WriteString("| Endpoint | Status | Avg / Min / Max (ms) | Attempts | Notes |\n")
	sb.WriteString("|----------|--------|----------------------|----------|-------|\n")

	for _, result := range sortedResults(report) {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %s |\n",
			escapeMarkdownCell(result.Endpoint.Address),
			escapeMarkdownCell(statusLabel(report, result)),
			escapeMarkdownCell(latencyCell(result)),
			result.Attempts,
			escapeMarkdownCell(noteCell(result)),
		))
	}

	if report.Stats.Total > 0 {
		sb.WriteString(fmt.Sprintf("\n**Summary**: %s\n", summaryLine(report.Stats)))
	}

	if !report.Success && report.Error != "" {
		sb.WriteString(fmt.Sprintf("\n**Run failed**: %s\n", escapeMarkdownCell(report.Error)))
	}

	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
