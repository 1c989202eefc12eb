package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/minirag/minirag-go/internal/extract"
	"github.com/minirag/minirag-go/internal/logging"
	"github.com/minirag/minirag-go/internal/pipeline"
)

// NewIngestCmd constructs the `minirag ingest` command, which chunks, embeds,
// and stores one document in the vector store.
func NewIngestCmd() *cobra.Command {
	var title string
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a document into the vector store",
		Long: `Chunk, embed, and store a document in the Qdrant vector store.

Text is read from --file (.txt or .pdf) or from stdin when no file is
given. Ingested documents become the only knowledge the answering
pipeline may cite.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: mini_rag_docs)
  EMBEDDING_PROVIDER   Embedding backend: gemini, ollama, openai (default: gemini)
  GOOGLE_API_KEY       Required for the gemini backend

Examples:
  minirag ingest --title "Company Handbook" --file handbook.pdf
  cat notes.txt | minirag ingest --title "Notes"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if title == "" {
				return fmt.Errorf("ingest: --title is required")
			}

			var text string
			if file != "" {
				content, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("ingest: read %s: %w", file, err)
				}
				text, err = extract.Text(filepath.Base(file), content)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
			} else {
				content, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("ingest: read stdin: %w", err)
				}
				text = string(content)
			}

			emb, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			idx, err := buildIndex()
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer idx.Close()

			// No generator: ingestion never needs one.
			pl, err := pipeline.New(emb, idx, nil, pipelineConfigFromEnv())
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			res, err := pl.Ingest(ctx, title, text)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingestion complete",
				slog.String("title", title),
				slog.Int("chunks", res.Chunks),
				slog.Int("inserted", res.Inserted),
			)
			fmt.Printf("ingested %q: %d chunks stored\n", title, res.Inserted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Document title stored with every chunk (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to a .txt or .pdf file (default: read stdin)")

	return cmd
}

// printSources writes the citation list of an answer to stdout.
func printSources(sources []pipeline.Source) {
	for _, src := range sources {
		fmt.Printf("  [%d] %s (chunk %d, score %.3f)\n",
			src.Ref, src.Title, src.ChunkIndex, src.RerankScore)
	}
}
