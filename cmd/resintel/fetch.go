package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cognicore/resintel/internal/arxiv"
)

type fetchOptions struct {
	category string
	max      int
	out      string
	baseURL  string
}

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download paper metadata into a corpus file",
	}
	opts := &fetchOptions{}
	arxivCmd := &cobra.Command{
		Use:   "arxiv",
		Short: "Fetch the newest submissions of an arXiv category as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetchArxiv(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	arxivCmd.Flags().StringVar(&opts.category, "category", "cs.AI", "arXiv category, e.g. cs.DB or q-bio.GN")
	arxivCmd.Flags().IntVar(&opts.max, "max", 200, "number of papers")
	arxivCmd.Flags().StringVar(&opts.out, "out", "", "output CSV (defaults to <category>.csv)")
	arxivCmd.Flags().StringVar(&opts.baseURL, "base-url", arxiv.DefaultBaseURL, "API endpoint")
	cmd.AddCommand(arxivCmd)
	return cmd
}

func runFetchArxiv(ctx context.Context, opts *fetchOptions, w io.Writer) error {
	client := arxiv.NewClient()
	client.BaseURL = opts.baseURL
	papers, err := client.Fetch(ctx, arxiv.Query{Category: opts.category, Max: opts.max})
	if err != nil {
		return err
	}

	out := opts.out
	if out == "" {
		out = opts.category + ".csv"
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := arxiv.WriteCSV(f, papers); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %d %s papers to %s\n", len(papers), opts.category, out)
	return nil
}
