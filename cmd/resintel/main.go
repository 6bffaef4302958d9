// Command resintel discovers research topics in a CSV export of papers and
// maps the papers onto a research-field taxonomy.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
)

type rootOptions struct {
	configPath   string
	envFiles     []string
	stoplistPath string
	taxonomyPath string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "resintel",
		Short:         "Research topic discovery and field mapping",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file (defaults run offline)")
	flags.StringSliceVar(&opts.envFiles, "env", nil, "dotenv files to load before the config")
	flags.StringVar(&opts.stoplistPath, "stoplist", "", "stoplist YAML, overrides the config")
	flags.StringVar(&opts.taxonomyPath, "taxonomy", "", "taxonomy YAML or CSV, overrides the config")

	root.AddCommand(
		newDiscoverCmd(opts),
		newMatchCmd(opts),
		newGroupCmd(opts),
		newArtifactsCmd(opts),
		newHistoryCmd(opts),
		newFetchCmd(),
		newStopwordsCmd(opts),
	)
	return root
}

// exitCode maps the error kinds to distinct statuses for scripts.
func exitCode(err error) int {
	switch {
	case errors.Is(err, internalerr.ErrInvalidInput), errors.Is(err, internalerr.ErrInvalidConfig):
		return 2
	case errors.Is(err, internalerr.ErrInsufficientData):
		return 3
	case errors.Is(err, internalerr.ErrModelUnavailable):
		return 4
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
