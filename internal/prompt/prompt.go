// Package prompt assembles the citation-indexed instruction prompt sent to
// the generation model. Each context entry is prefixed with its 1-based
// bracketed index, in the exact order the caller supplies — the caller's
// Source list uses the same order, so a model-emitted "[k]" marker always
// resolves to sources[k-1].
package prompt

import (
	"fmt"
	"strings"
)

// InsufficientContextAnswer is the verbatim sentence the model is instructed
// to emit when the supplied context cannot answer the question.
const InsufficientContextAnswer = `I don't know based on the provided text.`

// Build returns the deterministic instruction prompt for the given question
// and ordered context texts. Callers must pass contexts in citation order:
// contexts[i] appears in the prompt as "[i+1] ...".
func Build(question string, contexts []string) string {
	entries := make([]string, len(contexts))
	for i, c := range contexts {
		entries[i] = fmt.Sprintf("[%d] %s", i+1, c)
	}
	contextBlock := strings.Join(entries, "\n\n")

	var sb strings.Builder
	sb.WriteString("You are a helpful assistant.\n")
	sb.WriteString("Answer the user question ONLY using the context below.\n")
	sb.WriteString("If the context is not enough, say: \"" + InsufficientContextAnswer + "\"\n")
	sb.WriteString("\nCONTEXT:\n")
	sb.WriteString(contextBlock)
	sb.WriteString("\n\nQUESTION:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nRULES:\n")
	sb.WriteString("- Use inline citations like [1], [2] based on the context chunks.\n")
	sb.WriteString("- Do NOT use any outside knowledge.\n")
	sb.WriteString("- Keep the answer short and clear.")

	return sb.String()
}
