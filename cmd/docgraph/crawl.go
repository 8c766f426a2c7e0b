package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deidaraiorek/docgraph/internal/metrics"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the document collection from the seed into the database",
	Long: `Crawl walks the collection breadth first from the seed. Pages already in
the database are replayed from it instead of fetched, so an interrupted crawl
resumes where it stopped.`,
	RunE: runCrawl,
}

func init() {
	f := crawlCmd.Flags()
	f.String("seed", "", "seed URL (overrides SEED_URL)")
	f.Int("max-pages", 0, "stop after this many committed pages (overrides MAX_PAGES)")
	f.Int("max-depth", 0, "do not visit pages deeper than this; -1 for no limit (overrides MAX_DEPTH)")
	f.Duration("max-duration", 0, "stop after this long (overrides MAX_DURATION)")
	f.Bool("recrawl", false, "fetch pages again even if they are already stored")
	f.Bool("refetch-errors", false, "fetch pages stored as errors again")
	f.Bool("no-browser", false, "never fall back to the headless browser")
}

func applyCrawlFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("seed") {
		cfg.SeedURL, _ = f.GetString("seed")
	}
	if f.Changed("max-pages") {
		cfg.MaxPages, _ = f.GetInt("max-pages")
	}
	if f.Changed("max-depth") {
		cfg.MaxDepth, _ = f.GetInt("max-depth")
	}
	if f.Changed("max-duration") {
		cfg.MaxDuration, _ = f.GetDuration("max-duration")
	}
	if f.Changed("recrawl") {
		cfg.Recrawl, _ = f.GetBool("recrawl")
	}
	if f.Changed("refetch-errors") {
		cfg.RefetchErrors, _ = f.GetBool("refetch-errors")
	}
	if noBrowser, _ := f.GetBool("no-browser"); noBrowser {
		cfg.BrowserEnabled = false
	}
}

func runCrawl(cmd *cobra.Command, args []string) error {
	applyCrawlFlags(cmd)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sched, err := newScheduler(cfg, store, log, metrics.New())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting crawl",
		zap.String("seed", cfg.SeedURL),
		zap.Int("max_pages", cfg.MaxPages),
		zap.Int("max_depth", cfg.MaxDepth),
		zap.Duration("max_duration", cfg.MaxDuration),
	)
	start := time.Now()
	report, err := sched.Run(ctx)
	if err != nil {
		return err
	}
	log.Info("Crawl finished",
		zap.String("stop_reason", string(report.StopReason)),
		zap.Int("committed", report.Committed),
		zap.Int("fetched", report.Fetched),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
