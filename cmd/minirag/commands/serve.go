package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/minirag/minirag-go/internal/generator"
	"github.com/minirag/minirag-go/internal/history"
	"github.com/minirag/minirag-go/internal/logging"
	"github.com/minirag/minirag-go/internal/pipeline"
	"github.com/minirag/minirag-go/internal/server"
	"github.com/minirag/minirag-go/internal/tracing"
)

// NewServeCmd constructs the `minirag serve` command, which starts the HTTP
// API server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the minirag HTTP API server",
		Long: `Start the minirag HTTP server.

The server exposes document ingestion (raw text and file upload),
question answering with citations, collection lifecycle management,
and the usual operational endpoints (health, readiness, metrics).

Examples:
  minirag serve
  minirag serve --port 9090
  EMBEDDING_PROVIDER=ollama minirag serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting",
				slog.String("embedding_provider", os.Getenv("EMBEDDING_PROVIDER")),
				slog.String("model_provider", os.Getenv("MODEL_PROVIDER")),
			)

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			emb, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			idx, err := buildIndex()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer idx.Close()
			log.Info("qdrant index ready", slog.String("collection", idx.Collection()))

			// A missing generation credential must not take ingestion down:
			// the server starts with answering disabled and /ask reports the
			// configuration error.
			gen, err := generator.NewFromEnv(ctx)
			if err != nil {
				log.Warn("generation backend unavailable — /ask will fail until configured",
					slog.Any("error", err),
				)
				gen = nil
			}

			// Open the ask history store. MINIRAG_HISTORY_DB overrides the
			// default path (~/.minirag/history.db). Set to "disabled" to disable.
			var hist history.Store
			dbPath := os.Getenv("MINIRAG_HISTORY_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = history.DefaultDBPath()
					if err != nil {
						log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					hs, hsErr := history.Open(dbPath)
					if hsErr != nil {
						log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
					} else {
						hist = hs
						defer func() { _ = hs.Close() }()
						log.Info("history: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("history: disabled via MINIRAG_HISTORY_DB=disabled")
			}

			pl, err := pipeline.New(emb, idx, gen, pipelineConfigFromEnv())
			if err != nil {
				return fmt.Errorf("serve: failed to create pipeline: %w", err)
			}

			srv, err := server.New(pl, idx, hist, &server.Config{
				Host:   host,
				Port:   port,
				Logger: log,
				Pingers: []server.Pinger{
					server.NewIndexPinger(idx),
					server.NewEmbedderPinger(emb, "embedder"),
				},
				APIKey: os.Getenv("MINIRAG_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
