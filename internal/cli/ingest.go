package cli

import (
	"github.com/spf13/cobra"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Index documents",
		Long: `Loads each file, splits it into clauses and table facts and indexes them.
Re-ingesting a file replaces its previous entries. Glob patterns are expanded.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			_, err = ingestAll(cmd, a, expandInputs(args))
			return err
		},
	}
}
