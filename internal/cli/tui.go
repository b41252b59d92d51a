package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docqa/internal/tui"
)

func newTUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui [file]...",
		Short: "Launch the interactive terminal UI",
		Long: `Indexes the given files, then opens an interactive session for asking
questions.

Controls:
  Enter     - Ask
  ↑, ↓      - Browse retrieved passages
  Esc, ^C   - Quit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			files := expandInputs(args)
			indexed, err := ingestAll(cmd, a, files)
			if err != nil && indexed == 0 && len(files) > 0 {
				return err
			}
			summary := fmt.Sprintf("%d of %d files indexed with %s into %s", indexed, len(files), a.Embedder.Name(), a.Config.VectorStore.Type)
			m := tui.New(cmd.Context(), a.Service, summary)
			_, err = tea.NewProgram(m, tea.WithContext(cmd.Context()), tea.WithAltScreen()).Run()
			return err
		},
	}
}
