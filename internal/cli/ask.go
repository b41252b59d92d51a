package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"docqa/internal/domain"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		files    []string
		asJSON   bool
		showCtxt bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Long: `Retrieves the passages most similar to the question and answers from them.
Use --file to index documents first, e.g. with the in-memory store.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(files) > 0 {
				if _, err := ingestAll(cmd, a, expandInputs(files)); err != nil {
					return err
				}
			}
			answer, err := a.Service.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("ask failed: %w", err)
			}
			if asJSON {
				return outputAnswerJSON(cmd, answer)
			}
			outputAnswer(cmd, answer, showCtxt)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "files to index before asking")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the answer as JSON")
	cmd.Flags().BoolVar(&showCtxt, "context", false, "print the retrieved passages")
	return cmd
}

func outputAnswerJSON(cmd *cobra.Command, answer domain.Answer) error {
	data, err := json.MarshalIndent(answer, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputAnswer(cmd *cobra.Command, answer domain.Answer, showContext bool) {
	cmd.Println(answer.Text)
	if len(answer.Sources) > 0 {
		cmd.Printf("\nSources: %s\n", strings.Join(answer.Sources, ", "))
	}
	if len(answer.Pages) > 0 {
		pages := make([]string, len(answer.Pages))
		for i, p := range answer.Pages {
			pages[i] = strconv.Itoa(p)
		}
		cmd.Printf("Pages: %s\n", strings.Join(pages, ", "))
	}
	if !showContext {
		return
	}
	cmd.Println()
	for i, r := range answer.Context {
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, r.Unit.Metadata.Source, r.Score)
		cmd.Printf("      %s\n", strings.ReplaceAll(r.Unit.Content, "\n", "\n      "))
	}
}
