package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/streamlens/streamlens/internal/core"
)

func sampleReport() *core.ValidationReport {
	return &core.ValidationReport{
		RunID:   "run-42",
		Success: true,
		Valid:   []core.Endpoint{{Address: "203.0.113.1", Family: core.FamilyIPv4}},
		Invalid: []core.Endpoint{
			{Address: "203.0.113.2", Family: core.FamilyIPv4},
			{Address: "203.0.113.3", Family: core.FamilyIPv4},
		},
		Results: map[string]*core.ProbeResult{
			"203.0.113.1": {
				Endpoint:  core.Endpoint{Address: "203.0.113.1", Family: core.FamilyIPv4},
				Succeeded: true,
				AvgMs:     40,
				MinMs:     38,
				MaxMs:     42,
				Attempts:  1,
			},
			"203.0.113.2": {
				Endpoint:  core.Endpoint{Address: "203.0.113.2", Family: core.FamilyIPv4},
				Succeeded: true,
				AvgMs:     120,
				MinMs:     100,
				MaxMs:     140,
				Attempts:  3,
			},
			"203.0.113.3": {
				Endpoint:  core.Endpoint{Address: "203.0.113.3", Family: core.FamilyIPv4},
				Succeeded: false,
				Attempts:  3,
				Error:     "probe timed out",
			},
		},
		Stats: core.ValidationStats{
			Total:          3,
			Succeeded:      2,
			Failed:         1,
			Valid:          1,
			Invalid:        2,
			ValidationRate: 33.3,
			AvgLatencyMs:   40,
			MinLatencyMs:   38,
			MaxLatencyMs:   42,
		},
		StartedAt:   time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC),
		CompletedAt: time.Date(2026, 8, 27, 9, 1, 0, 0, time.UTC),
	}
}

func TestParseFormat(t *testing.T) {
	for _, value := range []string{"", "table", "JSON", " markdown "} {
		_, err := ParseFormat(value)
		require.NoError(t, err, "value %q", value)
	}

	_, err := ParseFormat("yaml")
	require.Error(t, err)
}

func TestTableFormatter(t *testing.T) {
	out, err := (&TableFormatter{}).FormatReport(sampleReport())
	require.NoError(t, err)

	require.Contains(t, out, "203.0.113.1")
	require.Contains(t, out, "valid")
	require.Contains(t, out, "slow")
	require.Contains(t, out, "unreachable")
	require.Contains(t, out, "1/3 valid (33.3%)")
}

func TestTableFormatterDeterministicOrder(t *testing.T) {
	first, err := (&TableFormatter{}).FormatReport(sampleReport())
	require.NoError(t, err)

	for range 5 {
		next, err := (&TableFormatter{}).FormatReport(sampleReport())
		require.NoError(t, err)
		require.Equal(t, first, next)
	}
}

func TestJSONFormatterRoundTrips(t *testing.T) {
	out, err := (&JSONFormatter{Indent: true}).FormatReport(sampleReport())
	require.NoError(t, err)

	var decoded core.ValidationReport
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Equal(t, "run-42", decoded.RunID)
	require.Len(t, decoded.Valid, 1)
	require.Equal(t, 33.3, decoded.Stats.ValidationRate)
}

func TestMarkdownFormatter(t *testing.T) {
	out, err := (&MarkdownFormatter{}).FormatReport(sampleReport())
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(out, "## Validation run run-42"))
	require.Contains(t, out, "| 203.0.113.3 | unreachable |")
	require.Contains(t, out, "**Summary**: 1/3 valid (33.3%)")
}

func TestFormattersHandleNilReport(t *testing.T) {
	for _, f := range []Formatter{&TableFormatter{}, &JSONFormatter{}, &MarkdownFormatter{}} {
		out, err := f.FormatReport(nil)
		require.NoError(t, err)
		require.Empty(t, out)
	}
}

func TestFailedRunIncludesError(t *testing.T) {
	report := &core.ValidationReport{
		RunID:   "run-err",
		Success: false,
		Error:   "no endpoints to validate",
		Results: map[string]*core.ProbeResult{},
	}

	rendered, err := (&TableFormatter{}).FormatReport(report)
	require.NoError(t, err)
	require.Contains(t, rendered, "no endpoints to validate")

	md, err := (&MarkdownFormatter{}).FormatReport(report)
	require.NoError(t, err)
	require.Contains(t, md, "no endpoints to validate")
}
