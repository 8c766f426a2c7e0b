package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deidaraiorek/docgraph/internal/answer"
	"github.com/deidaraiorek/docgraph/internal/metrics"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

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

	resp, err := newEngine(store, resolver, log, m).Answer(context.Background(), question)
	if err != nil {
		return fmt.Errorf("could not generate an answer: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, resp.Text)
	if resp.Path == answer.PathLexical && len(resp.Sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for i, src := range resp.Sources {
			fmt.Fprintf(out, "[%d] %s (%s)\n", i+1, src.Title, src.Locator)
		}
	}
	return nil
}
