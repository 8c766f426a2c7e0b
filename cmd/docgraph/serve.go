package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/deidaraiorek/docgraph/internal/api"
	"github.com/deidaraiorek/docgraph/internal/metrics"
	"github.com/deidaraiorek/docgraph/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the question answering API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("port", "", "listen port (overrides SERVER_PORT)")
	serveCmd.Flags().Bool("crawl", false, "run a crawl in the background while serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("port") {
		cfg.ServerPort, _ = cmd.Flags().GetString("port")
	}
	crawlOnStart := cfg.CrawlOnStart
	if cmd.Flags().Changed("crawl") {
		crawlOnStart, _ = cmd.Flags().GetBool("crawl")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	resolver, err := newRetrieval(cfg, store, log, m)
	if err != nil {
		return err
	}
	engine := newEngine(store, resolver, log, m)

	var sched *scheduler.Scheduler
	var crawl api.CrawlStatus
	if crawlOnStart {
		sched, err = newScheduler(cfg, store, log, m)
		if err != nil {
			return err
		}
		crawl = sched
	}

	server := api.NewServer(cfg.ServerPort, engine, resolver, store, crawl, m, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if sched != nil {
		g.Go(func() error {
			report, err := sched.Run(ctx)
			if err != nil {
				log.Error("Background crawl failed", zap.Error(err))
				return nil
			}
			log.Info("Background crawl finished",
				zap.String("stop_reason", string(report.StopReason)),
				zap.Int("committed", report.Committed),
			)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
