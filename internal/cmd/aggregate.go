package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/streamlens/streamlens/internal/catalog"
	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/core"
	"github.com/streamlens/streamlens/internal/core/extract"
	"github.com/streamlens/streamlens/internal/core/store"
	errwrap "github.com/streamlens/streamlens/internal/errors"
	"github.com/streamlens/streamlens/internal/filter"
	"github.com/streamlens/streamlens/internal/logo"
	"github.com/streamlens/streamlens/internal/metrics"
	"github.com/streamlens/streamlens/internal/observability"
	"github.com/streamlens/streamlens/internal/output"
	"github.com/streamlens/streamlens/internal/source"
)

var (
	aggregateManifest string
	aggregateOutput   string
	aggregateFormat   string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Fetch sources, validate endpoints, and emit addon catalogs",
	Long: `Run the full aggregation pipeline:

  1. Fetch every enabled playlist from the source manifest.
  2. Clean, deduplicate, and allow/deny-filter the merged channel list.
  3. Extract literal-IP endpoints and validate them by latency under
     adaptive resource-aware concurrency.
  4. Write addon catalog files for the channels that survive.

Channels whose stream URL has a domain-name host carry no probeable
endpoint and pass through validation untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()
		ctx := cmd.Context()
		logger := observability.CLILogger

		format, err := output.ParseFormat(aggregateFormat)
		if err != nil {
			return errwrap.NewInvalidInputError(err.Error())
		}

		manifestPath := cfg.Sources.Manifest
		if aggregateManifest != "" {
			manifestPath = aggregateManifest
		}
		manifest, err := source.LoadManifest(manifestPath)
		if err != nil {
			return errwrap.WrapInvalidInput(ctx, err, "source manifest rejected")
		}
		sources := manifest.Enabled()

		st := openStoreBestEffort(ctx, cfg)
		if st != nil {
			defer st.Close() // nolint:errcheck // best-effort close on shutdown
		}

		channels := fetchChannels(ctx, cfg, sources, st)
		if len(channels) == 0 {
			return errwrap.NewExternalServiceError("no channels fetched from any source")
		}

		channels = filter.Apply(channels, filter.Rules{
			Allow:        cfg.Filter.Allow,
			Deny:         cfg.Filter.Deny,
			DefaultGroup: cfg.Filter.DefaultGroup,
		})
		logger.Info("Channel list filtered",
			zap.Int("channels", len(channels)),
			zap.Int("groups", len(filter.Groups(channels))))

		policy := extractPolicy(cfg)
		validator, err := buildValidator(cfg)
		if err != nil {
			return errwrap.WrapInternal(ctx, err, "validator construction failed")
		}
		defer validator.Destroy()

		report := validator.ValidateChannels(ctx, channels, policy)
		recordProbeMetrics(report)
		metrics.RecordRun(report.Success, len(report.Valid))

		kept := keepValidated(channels, report, policy)
		logger.Info("Validation complete",
			zap.Int("probed", report.Stats.Total),
			zap.Int("valid", report.Stats.Valid),
			zap.Float64("validation_rate", report.Stats.ValidationRate),
			zap.Int("channels_kept", len(kept)))

		if cfg.Logos.Enabled {
			kept = fetchLogos(ctx, cfg, kept)
		}

		outputDir := cfg.Catalog.OutputDir
		if aggregateOutput != "" {
			outputDir = aggregateOutput
		}
		files, err := writeCatalog(cfg, outputDir, kept)
		if err != nil {
			return errwrap.WrapInternal(ctx, err, "catalog generation failed")
		}
		logger.Info("Catalog written",
			zap.String("dir", outputDir),
			zap.Int("files", files))

		if st != nil {
			summary := core.RunSummary{
				RunID:          report.RunID,
				Sources:        len(sources),
				Channels:       len(channels),
				ValidEndpoints: len(report.Valid),
				StartedAt:      report.StartedAt,
				CompletedAt:    report.CompletedAt,
			}
			if err := st.SaveRun(ctx, summary); err != nil {
				logger.Warn("Failed to record run history", zap.Error(err))
			}
			if pruned, err := st.PruneExpired(ctx); err == nil && pruned > 0 {
				logger.Debug("Pruned expired playlist cache entries", zap.Int64("pruned", pruned))
			}
		}

		rendered, err := output.NewFormatter(format).FormatReport(report)
		if err != nil {
			return errwrap.WrapInternal(ctx, err, "report rendering failed")
		}
		fmt.Println(rendered)

		return nil
	},
}

// openStoreBestEffort opens and migrates the local store. Aggregation works
// without one, just with no playlist cache and no run history.
func openStoreBestEffort(ctx context.Context, cfg *config.Config) *store.Store {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		observability.CLILogger.Warn("Store unavailable, continuing without cache", zap.Error(err))
		return nil
	}
	if err := st.Migrate(ctx); err != nil {
		observability.CLILogger.Warn("Store migration failed, continuing without cache", zap.Error(err))
		_ = st.Close()
		return nil
	}
	return st
}

// fetchChannels downloads every enabled source and merges the parsed
// channels in manifest order. Per-source failures are logged and skipped.
func fetchChannels(ctx context.Context, cfg *config.Config, sources []source.Source, st *store.Store) []core.Channel {
	fetcher := source.NewFetcher()
	fetcher.Client = &http.Client{Timeout: cfg.Sources.Timeout}
	fetcher.CacheTTL = cfg.Sources.CacheTTL
	fetcher.Concurrency = cfg.Sources.Concurrency
	if st != nil {
		fetcher.Cache = st
	}

	var channels []core.Channel
	for _, result := range fetcher.FetchAll(ctx, sources) {
		metrics.RecordSourceFetch(result.Source.Name, result.Err == nil, result.FromCache)
		if result.Err != nil {
			observability.CLILogger.Warn("Source fetch failed",
				zap.String("source", result.Source.Name),
				zap.Error(result.Err))
			continue
		}
		observability.CLILogger.Debug("Source fetched",
			zap.String("source", result.Source.Name),
			zap.Int("channels", len(result.Channels)),
			zap.Bool("from_cache", result.FromCache))
		channels = append(channels, result.Channels...)
	}
	return channels
}

// keepValidated returns the channels that survive endpoint validation.
// Channels without a literal-IP endpoint cannot be probed and are kept.
func keepValidated(channels []core.Channel, report *core.ValidationReport, policy extract.Policy) []core.Channel {
	kept := make([]core.Channel, 0, len(channels))
	for _, ch := range channels {
		endpoints := extract.Extract([]core.Channel{ch}, policy)
		if len(endpoints) == 0 {
			kept = append(kept, ch)
			continue
		}
		for _, ep := range endpoints {
			if report.IsValidEndpoint(ep.Address) {
				kept = append(kept, ch)
				break
			}
		}
	}
	return kept
}

// fetchLogos downloads channel logos into local thumbnails and points the
// channel's logo at the generated file. Failures leave the upstream URL.
func fetchLogos(ctx context.Context, cfg *config.Config, channels []core.Channel) []core.Channel {
	thumbnailer := logo.NewThumbnailer(cfg.Logos.OutputDir)
	if cfg.Logos.MaxSize > 0 {
		thumbnailer.MaxSize = cfg.Logos.MaxSize
	}
	if cfg.Logos.Format != "" {
		thumbnailer.Format = cfg.Logos.Format
	}
	if cfg.Logos.JPEGQuality > 0 {
		thumbnailer.JPEGQuality = cfg.Logos.JPEGQuality
	}

	fetched := 0
	for i, ch := range channels {
		if ch.Logo == "" {
			continue
		}
		path, err := thumbnailer.Fetch(ctx, catalog.MetaID(ch), ch.Logo)
		if err != nil {
			observability.CLILogger.Debug("Logo fetch failed",
				zap.String("channel", ch.Name),
				zap.Error(err))
			continue
		}
		channels[i].Logo = path
		fetched++
	}
	observability.CLILogger.Info("Logo thumbnails generated", zap.Int("fetched", fetched))
	return channels
}

func writeCatalog(cfg *config.Config, outputDir string, channels []core.Channel) (int, error) {
	gen := catalog.NewGenerator(outputDir)
	if cfg.Catalog.AddonID != "" {
		gen.AddonID = cfg.Catalog.AddonID
	}
	if cfg.Catalog.AddonName != "" {
		gen.AddonName = cfg.Catalog.AddonName
	}
	if cfg.Catalog.Description != "" {
		gen.Description = cfg.Catalog.Description
	}
	if cfg.Catalog.Version != "" {
		gen.Version = cfg.Catalog.Version
	}
	return gen.Write(channels)
}

func init() {
	rootCmd.AddCommand(aggregateCmd)

	aggregateCmd.Flags().StringVar(&aggregateManifest, "manifest", "", "source manifest path (overrides config)")
	aggregateCmd.Flags().StringVarP(&aggregateOutput, "output", "o", "", "catalog output directory (overrides config)")
	aggregateCmd.Flags().StringVarP(&aggregateFormat, "format", "f", "table", "report format (table, json, markdown)")
}
