package cli

import (
	"github.com/spf13/cobra"
)

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <file>",
		Short: "Remove a document from the index",
		Long: `Deletes every indexed unit whose source is the given path. The path must
match the one used when the file was ingested; separators are normalised.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Service.DeleteDocument(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}
