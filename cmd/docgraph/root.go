package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deidaraiorek/docgraph/internal/config"
	"github.com/deidaraiorek/docgraph/internal/logger"
)

var (
	envFile  string
	dbPath   string
	logLevel string

	cfg *config.Config
	log *zap.Logger

	rootCmd = &cobra.Command{
		Use:   "docgraph",
		Short: "Crawl a linked document collection into a graph and answer questions over it",
		Long: `docgraph crawls a hierarchically linked document collection into a SQLite
graph with a lexical index, then answers questions either by walking the
graph or by lexical retrieval feeding a language model.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to the env file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(crawlCmd, serveCmd, askCmd, statsCmd, treeCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log, err = logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	log.Debug("Configuration loaded", zap.String("db", cfg.DBPath), zap.String("seed", cfg.SeedURL))
	return nil
}
