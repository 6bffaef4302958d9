package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/cognicore/resintel/pkg/resintel"
	"github.com/cognicore/resintel/pkg/resintel/config"
	"github.com/cognicore/resintel/pkg/resintel/embed"
	"github.com/cognicore/resintel/pkg/resintel/ingest"
	"github.com/cognicore/resintel/pkg/resintel/internalerr"
	"github.com/cognicore/resintel/pkg/resintel/match"
	"github.com/cognicore/resintel/pkg/resintel/pmi"
	"github.com/cognicore/resintel/pkg/resintel/refine"
	"github.com/cognicore/resintel/pkg/resintel/store"
	"github.com/cognicore/resintel/pkg/resintel/topicmodel"
)

// loadCorpus reads a CSV or JSONL export and registers it with the engine.
func loadCorpus(a *app, path string) (*ingest.Corpus, error) {
	corpus, stats, err := ingest.LoadFile(path)
	if err != nil {
		return nil, err
	}
	a.log.Info("corpus loaded", nil, map[string]interface{}{
		"corpus":     corpus.ID,
		"original":   stats.Original,
		"processed":  stats.Processed,
		"empty":      stats.Empty,
		"duplicates": stats.Duplicates,
		"malformed":  stats.Malformed,
	})
	if err := a.engine.Register(corpus); err != nil {
		return nil, err
	}
	return corpus, nil
}

type discoverOptions struct {
	noTUI          bool
	minClusterSize int
	jsonOut        bool
	discoverOnly   bool
}

func newDiscoverCmd(root *rootOptions) *cobra.Command {
	opts := &discoverOptions{}
	cmd := &cobra.Command{
		Use:   "discover <papers.csv|papers.jsonl>",
		Short: "Sweep granularities, pick one and label the topics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(cmd.Context(), root, opts, args[0], cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "refine at the best granularity without asking")
	cmd.Flags().IntVar(&opts.minClusterSize, "min-cluster-size", 0, "refine at this granularity instead of the best one")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print JSON")
	cmd.Flags().BoolVar(&opts.discoverOnly, "curve-only", false, "print the coherence curve and stop")
	return cmd
}

type discoverOutput struct {
	Discovery  *resintel.Discovery `json:"discovery"`
	Refinement *refine.Result      `json:"refinement,omitempty"`
}

func runDiscover(ctx context.Context, root *rootOptions, opts *discoverOptions, path string, w io.Writer) error {
	a, err := buildApp(ctx, root, true)
	if err != nil {
		return err
	}
	defer a.Close()

	corpus, err := loadCorpus(a, path)
	if err != nil {
		return err
	}
	d, err := a.engine.Discover(ctx, corpus.ID)
	if err != nil {
		return err
	}
	out := discoverOutput{Discovery: d}

	size, ok, err := chooseGranularity(d, opts)
	if err != nil {
		return err
	}
	if ok && !opts.discoverOnly {
		out.Refinement, err = a.engine.Refine(ctx, corpus.ID, size)
		if err != nil {
			return err
		}
	}

	if opts.jsonOut {
		return writeJSON(w, out)
	}
	printCurve(w, d)
	if !d.Best.Found {
		fmt.Fprintln(w, "no granularity produced at least two topics with a coherence score")
	}
	if out.Refinement != nil {
		printTopics(w, out.Refinement)
	}
	return nil
}

// chooseGranularity resolves the refine size: the flag, the picker, or the best point.
func chooseGranularity(d *resintel.Discovery, opts *discoverOptions) (int, bool, error) {
	if opts.minClusterSize != 0 {
		if opts.minClusterSize < 2 {
			return 0, false, fmt.Errorf("%w: min cluster size must be at least 2", internalerr.ErrInvalidInput)
		}
		return opts.minClusterSize, true, nil
	}
	if !d.Best.Found || opts.discoverOnly {
		return 0, false, nil
	}
	if opts.noTUI || opts.jsonOut || !isTerminal(os.Stdout) {
		return d.Best.MinClusterSize, true, nil
	}
	final, err := tea.NewProgram(newPicker(d)).Run()
	if err != nil {
		return 0, false, err
	}
	size, ok := final.(pickerModel).Choice()
	return size, ok, nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func printCurve(w io.Writer, d *resintel.Discovery) {
	fmt.Fprintf(w, "corpus %s  run %s  range [%d, %d)\n", d.CorpusID, d.RunID, d.Range.Lo, d.Range.Hi)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MIN_CLUSTER_SIZE\tCOHERENCE\t")
	for _, p := range d.Curve {
		mark := ""
		if p.Best {
			mark = "best"
		}
		fmt.Fprintf(tw, "%d\t%+.4f\t%s\n", p.MinClusterSize, p.Coherence, mark)
	}
	tw.Flush()
}

func printTopics(w io.Writer, r *refine.Result) {
	fmt.Fprintf(w, "\n%d topics at min_cluster_size %d\n", r.TopicCount, r.MinClusterSize)
	for _, t := range r.Topics {
		fmt.Fprintf(w, "  [%d] %s (%d docs)\n      %s\n", t.ID, t.Label, t.Count, strings.Join(t.Terms, ", "))
	}
}

func newMatchCmd(root *rootOptions) *cobra.Command {
	var jsonOut bool
	var top int
	cmd := &cobra.Command{
		Use:   "match <papers.csv|papers.jsonl>",
		Short: "Match every paper to its closest taxonomy field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, root, false)
			if err != nil {
				return err
			}
			defer a.Close()

			corpus, err := loadCorpus(a, args[0])
			if err != nil {
				return err
			}
			results, err := a.engine.Match(ctx, corpus.ID)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			printFieldCounts(cmd.OutOrStdout(), results, match.TopFields(results, top))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print every result as JSON")
	cmd.Flags().IntVar(&top, "top", match.DefaultTopFields, "number of fields to list")
	return cmd
}

func printFieldCounts(w io.Writer, results []match.Result, counts []match.FieldCount) {
	var matched int
	for _, r := range results {
		if r.Matched() {
			matched++
		}
	}
	fmt.Fprintf(w, "%d of %d papers matched a field\n", matched, len(results))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tPAPERS")
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\n", c.Field, c.Count)
	}
	tw.Flush()
}

func newGroupCmd(root *rootOptions) *cobra.Command {
	var jsonOut bool
	var groups int
	cmd := &cobra.Command{
		Use:   "group <papers.csv|papers.jsonl>",
		Short: "Group the most frequent fields into broader themes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if groups < 0 {
				return fmt.Errorf("%w: --groups must not be negative", internalerr.ErrInvalidInput)
			}
			a, err := buildApp(ctx, root, false)
			if err != nil {
				return err
			}
			defer a.Close()

			corpus, err := loadCorpus(a, args[0])
			if err != nil {
				return err
			}
			g, err := a.engine.Group(ctx, corpus.ID, groups)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), g)
			}
			printGroups(cmd.OutOrStdout(), g)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	cmd.Flags().IntVar(&groups, "groups", 0, "number of groups (0 uses the default)")
	return cmd
}

func printGroups(w io.Writer, g *resintel.Grouping) {
	fmt.Fprintf(w, "%d groups (%s)\n", len(g.Groups), g.Source)
	for _, grp := range g.Groups {
		fmt.Fprintf(w, "\n%s\n", grp.Name)
		if grp.Description != "" {
			fmt.Fprintf(w, "  %s\n", grp.Description)
		}
		for _, f := range grp.Fields {
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}
	if v := g.Violations; !v.Empty() {
		fmt.Fprintf(w, "\nmodel answer: %d missing, %d duplicated, %d unknown fields\n",
			len(v.Missing), len(v.Duplicate), len(v.Unknown))
	}
}

func newArtifactsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Manage the fitted topic model stages",
	}
	cmd.AddCommand(newArtifactsFitCmd(root))
	return cmd
}

type fitOptions struct {
	components int
	out        string
	ngramMax   int
	minDF      int
	bm25       bool
	reduceFreq bool
	autoStops  bool
}

func newArtifactsFitCmd(root *rootOptions) *cobra.Command {
	opts := &fitOptions{}
	cmd := &cobra.Command{
		Use:   "fit <reference.csv|reference.jsonl>",
		Short: "Fit the dimensionality reducer on a reference corpus and write the artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(cmd.Context(), root, opts, args[0], cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&opts.components, "components", 5, "reduced dimensions")
	cmd.Flags().StringVar(&opts.out, "out", "", "output file (defaults to the configured artifacts location)")
	cmd.Flags().IntVar(&opts.ngramMax, "ngram-max", 1, "longest n-gram in topic terms")
	cmd.Flags().IntVar(&opts.minDF, "min-df", 1, "minimum document frequency of a topic term")
	cmd.Flags().BoolVar(&opts.bm25, "bm25", false, "BM25 weighting in c-TF-IDF")
	cmd.Flags().BoolVar(&opts.reduceFreq, "reduce-frequent-words", false, "square-root term frequencies in c-TF-IDF")
	cmd.Flags().BoolVar(&opts.autoStops, "auto-stopwords", false, "add corpus-specific stopwords to the vectorizer")
	return cmd
}

func runFit(ctx context.Context, root *rootOptions, opts *fitOptions, path string, w io.Writer) error {
	cfg, err := config.Load(root.configPath, root.envFiles...)
	if err != nil {
		return err
	}
	var stopwords []string
	if p := firstSet(root.stoplistPath, cfg.StoplistPath); p != "" {
		sl, err := config.LoadStoplist(p)
		if err != nil {
			return err
		}
		stopwords = sl.Terms
	}
	e, err := embed.New(cfg.Embedder)
	if err != nil {
		return err
	}
	corpus, _, err := ingest.LoadFile(path)
	if err != nil {
		return err
	}

	if opts.autoStops {
		for _, c := range suggestStopwords(corpus, ingest.NewTokenizer(stopwords), pmi.StopwordThresholds{}) {
			stopwords = append(stopwords, c.Token)
		}
	}

	vec := &topicmodel.CountVectorizer{NgramMax: opts.ngramMax, MinDocs: opts.minDF, Stopwords: stopwords}
	weighting := topicmodel.CTFIDF{BM25Weighting: opts.bm25, ReduceFrequentWords: opts.reduceFreq}
	artifacts, err := topicmodel.FitArtifacts(ctx, e, corpus.Texts(), opts.components, vec, weighting)
	if err != nil {
		return err
	}

	out := opts.out
	if out == "" {
		out = filepath.Join(cfg.Artifacts.Dir, cfg.ArtifactName())
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := artifacts.Write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %s (%s, %d -> %d dimensions, %d reference documents)\n",
		out, artifacts.Embedding.Name, artifacts.Embedding.Dimension, opts.components, corpus.Len())
	return nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "history [corpus]",
		Short: "List past discovery runs and their refinements",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, root, false)
			if err != nil {
				return err
			}
			defer a.Close()

			var id string
			if len(args) == 1 {
				id = args[0]
			}
			runs, err := a.engine.History(ctx, id, limit)
			if err != nil {
				return err
			}
			refinements := make(map[string][]store.Refinement, len(runs))
			for _, r := range runs {
				refs, err := a.engine.Refinements(ctx, r.ID)
				if err != nil {
					return err
				}
				refinements[r.ID] = refs
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"runs": runs, "refinements": refinements})
			}
			printHistory(cmd.OutOrStdout(), runs, refinements)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "most recent runs to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}

func printHistory(w io.Writer, runs []store.Run, refinements map[string][]store.Refinement) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tCORPUS\tDOCS\tBEST\tCOHERENCE\tREFINED AT\tCREATED")
	for _, r := range runs {
		best, coh := "-", "-"
		if r.Found {
			best = fmt.Sprint(r.MinClusterSize)
			coh = fmt.Sprintf("%+.4f", r.Coherence)
		}
		var sizes []string
		for _, ref := range refinements[r.ID] {
			sizes = append(sizes, fmt.Sprint(ref.MinClusterSize))
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n", r.ID, r.CorpusID, r.Docs, best, coh,
			strings.Join(sizes, ","), r.CreatedAt.Format("2006-01-02 15:04"))
	}
	tw.Flush()
}
