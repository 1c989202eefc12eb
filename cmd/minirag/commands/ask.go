package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minirag/minirag-go/internal/generator"
	"github.com/minirag/minirag-go/internal/logging"
	"github.com/minirag/minirag-go/internal/pipeline"
)

// NewAskCmd constructs the `minirag ask` command, which answers a single
// question from the ingested documents and prints the cited sources.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question over the ingested documents",
		Long: `Answer a natural language question using only previously ingested text.

The answer cites its sources with bracketed numbers ([1], [2]) that map
to the printed source list. When nothing relevant is stored, the fixed
no-relevant-info answer is returned instead of a guess.

Examples:
  minirag ask "what is our refund policy?"
  minirag ask "who approves travel expenses?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			emb, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			idx, err := buildIndex()
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer idx.Close()

			gen, err := generator.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise generation backend: %w", err)
			}

			pl, err := pipeline.New(emb, idx, gen, pipelineConfigFromEnv())
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			res, err := pl.Answer(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(res.Answer)
			if len(res.Sources) > 0 {
				fmt.Println("\nSources:")
				printSources(res.Sources)
			}
			fmt.Printf("\n(%d ms)\n", res.LatencyMs)
			return nil
		},
	}

	return cmd
}
