package cmd

import (
	"fmt"
	"net/netip"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/core"
	"github.com/streamlens/streamlens/internal/core/extract"
	errwrap "github.com/streamlens/streamlens/internal/errors"
	"github.com/streamlens/streamlens/internal/observability"
	"github.com/streamlens/streamlens/internal/output"
	"github.com/streamlens/streamlens/internal/playlist"
)

var (
	validatePlaylist string
	validateFormat   string
)

var validateCmd = &cobra.Command{
	Use:   "validate [address...]",
	Short: "Probe endpoints and report which validate under the latency ceiling",
	Long: `Probe literal IP endpoints and report latency statistics.

Endpoints come from positional IP address arguments, from a local M3U
playlist given with --playlist, or both. Playlist channels with domain-name
hosts contribute no endpoints; only literal IPs are probed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()

		endpoints, err := collectEndpoints(args, validatePlaylist, extractPolicy(cfg))
		if err != nil {
			return err
		}

		format, err := output.ParseFormat(validateFormat)
		if err != nil {
			return errwrap.NewInvalidInputError(err.Error())
		}

		validator, err := buildValidator(cfg)
		if err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "validator construction failed")
		}
		defer validator.Destroy()

		observability.CLILogger.Info("Validating endpoints",
			zap.Int("endpoints", len(endpoints)),
			zap.Int("max_concurrency", cfg.Flow.MaxConcurrency),
			zap.Float64("max_latency_ms", cfg.Probe.MaxLatencyMs))

		report := validator.ValidateLatency(cmd.Context(), endpoints)
		recordProbeMetrics(report)

		rendered, err := output.NewFormatter(format).FormatReport(report)
		if err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "report rendering failed")
		}
		fmt.Println(rendered)

		if !report.Success {
			return errwrap.NewValidationError(report.Error)
		}
		return nil
	},
}

// collectEndpoints merges explicit address arguments with endpoints
// extracted from an optional playlist file, deduplicating by address.
func collectEndpoints(args []string, playlistPath string, policy extract.Policy) ([]core.Endpoint, error) {
	seen := make(map[string]struct{})
	var endpoints []core.Endpoint

	add := func(ep core.Endpoint) {
		if _, dup := seen[ep.Address]; dup {
			return
		}
		seen[ep.Address] = struct{}{}
		endpoints = append(endpoints, ep)
	}

	for _, arg := range args {
		addr, err := netip.ParseAddr(arg)
		if err != nil {
			return nil, errwrap.NewInvalidInputError(fmt.Sprintf("not a literal IP address: %s", arg))
		}
		family := core.FamilyIPv4
		if addr.Is6() && !addr.Is4In6() {
			family = core.FamilyIPv6
		}
		add(core.Endpoint{Address: addr.Unmap().String(), Family: family})
	}

	if playlistPath != "" {
		f, err := os.Open(playlistPath)
		if err != nil {
			return nil, errwrap.NewInvalidInputError(fmt.Sprintf("open playlist: %v", err))
		}
		defer f.Close() // nolint:errcheck // read-only file

		channels, err := playlist.Parse(f, playlistPath)
		if err != nil {
			return nil, errwrap.NewInvalidInputError(fmt.Sprintf("parse playlist: %v", err))
		}
		for _, ep := range extract.Extract(channels, policy) {
			add(ep)
		}
	}

	return endpoints, nil
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validatePlaylist, "playlist", "", "local M3U playlist to extract endpoints from")
	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "table", "output format (table, json, markdown)")
}
