// Command minirag is the entry point for the mini-RAG question answering
// service. It provides a CLI (via Cobra) for one-shot ingestion and
// answering, and an HTTP server exposing the full API.
package main

import (
	"fmt"
	"os"

	"github.com/minirag/minirag-go/cmd/minirag/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
