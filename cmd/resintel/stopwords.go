package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/resintel/pkg/resintel/config"
	"github.com/cognicore/resintel/pkg/resintel/ingest"
	"github.com/cognicore/resintel/pkg/resintel/pmi"
)

func suggestStopwords(corpus *ingest.Corpus, tok *ingest.Tokenizer, th pmi.StopwordThresholds) []pmi.StopwordCandidate {
	dict := pmi.NewDictionary(tok.TokenizeAll(corpus.Texts()))
	return pmi.NewCalculator(pmi.DefaultEpsilon).SuggestStopwords(dict, th, tok.IsStopword)
}

type stopwordOptions struct {
	dfPercent float64
	npmiMax   float64
	jsonOut   bool
}

func newStopwordsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stopwords",
		Short: "Derive corpus-specific stopwords",
	}
	opts := &stopwordOptions{}
	defaults := pmi.DefaultStopwordThresholds()
	suggest := &cobra.Command{
		Use:   "suggest <papers.csv|papers.jsonl>",
		Short: "Print frequent tokens that associate with nothing, as a stoplist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuggestStopwords(cmd.Context(), root, opts, args[0], cmd.OutOrStdout())
		},
	}
	suggest.Flags().Float64Var(&opts.dfPercent, "df-percent", defaults.DFPercent, "minimum document frequency in percent")
	suggest.Flags().Float64Var(&opts.npmiMax, "npmi-max", defaults.NPMIMax, "upper bound on the strongest NPMI association")
	suggest.Flags().BoolVar(&opts.jsonOut, "json", false, "print the evidence for each token as JSON")
	cmd.AddCommand(suggest)
	return cmd
}

func runSuggestStopwords(_ context.Context, root *rootOptions, opts *stopwordOptions, path string, w io.Writer) error {
	loader := config.Loader{ConfigPath: root.configPath, EnvFiles: root.envFiles, StoplistPath: root.stoplistPath}
	comp, err := loader.Load()
	if err != nil {
		return err
	}
	corpus, _, err := ingest.LoadFile(path)
	if err != nil {
		return err
	}

	got := suggestStopwords(corpus, comp.Tokenizer, pmi.StopwordThresholds{DFPercent: opts.dfPercent, NPMIMax: opts.npmiMax})
	if opts.jsonOut {
		return writeJSON(w, got)
	}
	sl := config.Stoplist{Terms: make([]string, 0, len(got))}
	for _, c := range got {
		sl.Terms = append(sl.Terms, c.Token)
	}
	fmt.Fprintf(w, "# %d stopwords suggested for %s\n", len(sl.Terms), corpus.ID)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(sl); err != nil {
		return err
	}
	return enc.Close()
}
