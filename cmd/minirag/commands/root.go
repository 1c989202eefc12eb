// Package commands defines all Cobra CLI commands for the minirag binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/minirag/minirag-go/internal/audit"
	"github.com/minirag/minirag-go/internal/config"
	"github.com/minirag/minirag-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "minirag",
		Short: "minirag — retrieval-augmented question answering over your own documents",
		Long: `minirag ingests documents into a Qdrant vector store and answers
questions grounded exclusively in that ingested text, with numbered
citations back to the exact chunks used.

Embedding and generation backends (Gemini, OpenAI, Ollama) are selected
via EMBEDDING_PROVIDER and MODEL_PROVIDER environment variables or a
YAML config file (~/.minirag/config.yaml).
See 'minirag --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A local .env is a convenience for development — absence is fine.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.minirag/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewVersionCmd(),
	)

	return root
}
