package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deidaraiorek/docgraph/internal/storage"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print graph statistics as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats(context.Background())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

var treeDepth int

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the stored hierarchy",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		roots, err := store.Tree(context.Background(), treeDepth)
		if err != nil {
			return err
		}
		printTree(cmd.OutOrStdout(), roots, 0)
		return nil
	},
}

func init() {
	treeCmd.Flags().IntVar(&treeDepth, "depth", 4, "deepest level to print; -1 for all")
}

func printTree(w io.Writer, nodes []*storage.TreeNode, level int) {
	for _, n := range nodes {
		title := n.Title
		if title == "" {
			title = n.Locator
		}
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", level), title)
		printTree(w, n.Children, level+1)
	}
}
