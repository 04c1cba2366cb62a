// Package output renders validation reports for the CLI in table, JSON, and
// markdown form.
package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/streamlens/streamlens/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders validation reports.
type Formatter interface {
	FormatReport(report *core.ValidationReport) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown):
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// sortedResults returns the report's probe results ordered by endpoint
// address so rendered output is deterministic.
func sortedResults(report *core.ValidationReport) []*core.ProbeResult {
	results := make([]*core.ProbeResult, 0, len(report.Results))
	for _, result := range report.Results {
		if result != nil {
			results = append(results, result)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Endpoint.Address < results[j].Endpoint.Address
	})
	return results
}

func statusLabel(report *core.ValidationReport, result *core.ProbeResult) string {
	switch {
	case report.IsValidEndpoint(result.Endpoint.Address):
		return "valid"
	case result.Succeeded:
		return "slow"
	default:
		return "unreachable"
	}
}

func latencyCell(result *core.ProbeResult) string {
	if !result.Succeeded {
		return "-"
	}
	return fmt.Sprintf("%.0f / %.0f / %.0f", result.AvgMs, result.MinMs, result.MaxMs)
}

func noteCell(result *core.ProbeResult) string {
	if result.Error == "" {
		return ""
	}
	return result.Error
}

func summaryLine(stats core.ValidationStats) string {
	summary := fmt.Sprintf("%d/%d valid (%.1f%%)", stats.Valid, stats.Total, stats.ValidationRate)
	if stats.Valid > 0 {
		summary += fmt.Sprintf(", avg %.1f ms", stats.AvgLatencyMs)
	}
	return summary
}
