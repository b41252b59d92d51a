package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"docqa/internal/chunker"
	"docqa/internal/domain"
	"docqa/internal/loader"
)

func newExtractCmd(opts *rootOptions) *cobra.Command {
	var chunk bool
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the text units of a document as JSON",
		Long: `Runs the document loader on a single file and prints its units, without
touching the embedder, the vector store or the generator.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			l := loader.New(loader.WithWorkers(cfg.Loader.Workers), loader.WithLogger(logger))
			units, err := l.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if chunk {
				units = chunker.New(
					chunker.WithChunkSize(cfg.Chunker.ChunkSize),
					chunker.WithOverlap(cfg.Chunker.ChunkOverlap),
				).Chunk(units)
			}
			if len(units) == 0 {
				return fmt.Errorf("%s: %w", args[0], domain.ErrNoExtractableContent)
			}
			data, err := json.MarshalIndent(units, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal units: %w", err)
			}
			cmd.Println(string(data))
			return nil
		},
	}
	cmd.Flags().BoolVar(&chunk, "chunk", false, "apply the chunker to the units")
	return cmd
}
