package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/orneryd/calotruth/pkg/config"
	"github.com/orneryd/calotruth/pkg/loader"
	"github.com/orneryd/calotruth/pkg/logging"
	"github.com/orneryd/calotruth/pkg/metrics"
	"github.com/orneryd/calotruth/pkg/pool"
	"github.com/orneryd/calotruth/pkg/storage"
	"github.com/orneryd/calotruth/pkg/truth"
)

func runInit(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	force, _ := cmd.Flags().GetBool("force")
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "📂 Initializing calotruth in %s\n", dataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dataDir, err)
	}

	configPath := filepath.Join(dataDir, config.FileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config already exists: %s (use --force to overwrite)", configPath)
	}
	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = dataDir
	if err := cfg.WriteFile(configPath); err != nil {
		return err
	}

	fmt.Fprintln(out, "✅ Initialized successfully")
	fmt.Fprintf(out, "   Config: %s\n", configPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Build truth:   calotruth run events.jsonl --config", configPath)
	fmt.Fprintln(out, "  2. List events:   calotruth list --config", configPath)
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	out := cmd.OutOrStdout()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	bundles, err := loader.LoadAll(cmd.Context(), args, cfg.Input.Workers)
	if err != nil {
		return err
	}
	logger.Info("input loaded", zap.Int("files", len(args)), zap.Int("events", len(bundles)))

	m := metrics.New()
	acc := truth.NewAccumulator(cfg.TruthOptions(), logger)
	acc.SetObserver(m)

	failed := 0
	for _, b := range bundles {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		result, err := acc.Process(b.Signal, b.Pileup...)
		if err != nil {
			failed++
			logger.Error("event failed", zap.Uint64("event", b.EventID()), zap.String("source", b.Source), zap.Error(err))
			continue
		}
		if err := store.Put(result); err != nil {
			failed++
			m.StoreErrorsTotal.Inc()
			logger.Error("storing event failed", zap.Uint64("event", result.EventID), zap.Error(err))
			continue
		}
		fmt.Fprintf(out, "event %d: %d calo particles, %d clusters, %d hits, %d sub-events, fingerprint %s\n",
			result.EventID, len(result.CaloParticles), len(result.Clusters), len(result.Hits),
			len(result.Graphs), shortFingerprint(result.Fingerprint))
	}

	if cfg.Metrics.File != "" {
		if err := m.WriteTextfile(cfg.Metrics.File); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "✅ Processed %d events, %d failed\n", len(bundles)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d events failed", failed, len(bundles))
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT\tHITS\tCLUSTERS\tCALO PARTICLES\tSUB-EVENTS\tWARNINGS\tFINGERPRINT")
	for _, s := range summaries {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%v\t%s\n",
			s.EventID, s.Hits, s.Clusters, s.CaloParticles, s.SubEvents, s.Warnings, shortFingerprint(s.Fingerprint))
	}
	return w.Flush()
}

func runShow(cmd *cobra.Command, args []string) error {
	eventID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", args[0], err)
	}
	summaryOnly, _ := cmd.Flags().GetBool("summary")

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var v any
	if summaryOnly {
		v, err = store.Summary(eventID)
	} else {
		v, err = store.Get(eventID)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("event %d not found in %s", eventID, cfg.Storage.DataDir)
	}
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), v)
}

func runDot(cmd *cobra.Command, args []string) error {
	eventID, _ := cmd.Flags().GetUint64("event")
	outPath, _ := cmd.Flags().GetString("out")

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	bundles, err := loader.LoadFile(args[0])
	if err != nil {
		return err
	}
	bundle, err := findBundle(bundles, eventID, cmd.Flags().Changed("event"))
	if err != nil {
		return err
	}

	result, err := truth.NewAccumulator(cfg.TruthOptions(), logger).Process(bundle.Signal, bundle.Pileup...)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outPath, err)
		}
		defer f.Close()
		w = f
	}
	for _, g := range result.Graphs {
		if err := g.ExportDOT(w); err != nil {
			return err
		}
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	out := cmd.OutOrStdout()

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var store storage.Store
	if dataDir != "" {
		if _, err := os.Stat(dataDir); err != nil {
			return fmt.Errorf("data dir: %w", err)
		}
		cfg.Storage.DataDir = dataDir
		cfg.Storage.InMemory = false
		if store, err = openStore(cfg, logger); err != nil {
			return err
		}
		defer store.Close()
	}

	bundles, err := loader.LoadAll(cmd.Context(), args, cfg.Input.Workers)
	if err != nil {
		return err
	}

	acc := truth.NewAccumulator(cfg.TruthOptions(), logger)
	mismatches := 0
	for _, b := range bundles {
		first, err := acc.Process(b.Signal, b.Pileup...)
		if err != nil {
			return fmt.Errorf("event %d: %w", b.EventID(), err)
		}
		second, err := acc.Process(b.Signal, b.Pileup...)
		if err != nil {
			return fmt.Errorf("event %d: %w", b.EventID(), err)
		}

		status := reproduceStatus(first, second)
		if status == "ok" && store != nil {
			s, err := store.Summary(first.EventID)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				status = "ok (not stored)"
			case err != nil:
				return err
			case s.Fingerprint != first.Fingerprint:
				status = "MISMATCH (stored " + shortFingerprint(s.Fingerprint) + ")"
			}
		}
		if status != "ok" && status != "ok (not stored)" {
			mismatches++
		}
		fmt.Fprintf(out, "event %d: %s %s\n", first.EventID, shortFingerprint(first.Fingerprint), status)
	}

	if mismatches > 0 {
		return fmt.Errorf("%d of %d events did not reproduce", mismatches, len(bundles))
	}
	fmt.Fprintf(out, "✅ %d events reproduced\n", len(bundles))
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

// reproduceStatus compares two runs of the same event and checks the
// calo-particle ranges of the first.
func reproduceStatus(first, second *truth.Output) string {
	if err := first.Validate(); err != nil {
		return "INVALID (" + err.Error() + ")"
	}
	if first.Fingerprint != second.Fingerprint {
		return "MISMATCH (repeat)"
	}
	return "ok"
}

// setup loads the configuration, applies command-line overrides and builds
// the logger.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	if path == "" {
		if dir, _ := flags.GetString("data-dir"); dir != "" {
			candidate := filepath.Join(dir, config.FileName)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	if f := flags.Lookup("data-dir"); f != nil && f.Changed {
		cfg.Storage.DataDir = f.Value.String()
	}
	if f := flags.Lookup("in-memory"); f != nil && f.Changed {
		cfg.Storage.InMemory, _ = flags.GetBool("in-memory")
	}
	if f := flags.Lookup("workers"); f != nil && f.Changed {
		cfg.Input.Workers, _ = flags.GetInt("workers")
	}
	if f := flags.Lookup("metrics-file"); f != nil && f.Changed {
		cfg.Metrics.File = f.Value.String()
	}
	if level, _ := flags.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if format, _ := flags.GetString("log-format"); format != "" {
		cfg.Logging.Format = format
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		return nil, nil, err
	}
	pool.Configure(cfg.PoolOptions())
	logger.Debug("configuration loaded", zap.String("config", path), zap.Stringer("settings", cfg))
	return cfg, logger, nil
}

func openStore(cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	if cfg.Storage.InMemory {
		return storage.NewMemoryStore(), nil
	}
	return storage.NewBadgerStore(storage.BadgerOptions{
		DataDir:    cfg.Storage.DataDir,
		SyncWrites: cfg.Storage.SyncWrites,
		LowMemory:  cfg.Storage.LowMemory,
		Logger:     logger,
	})
}

func findBundle(bundles []loader.Bundle, eventID uint64, byID bool) (loader.Bundle, error) {
	if len(bundles) == 0 {
		return loader.Bundle{}, fmt.Errorf("no events in file")
	}
	if !byID {
		return bundles[0], nil
	}
	for _, b := range bundles {
		if b.EventID() == eventID {
			return b, nil
		}
	}
	return loader.Bundle{}, fmt.Errorf("event %d not found", eventID)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
