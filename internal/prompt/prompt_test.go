package prompt

import (
	"fmt"
	"strings"
	"testing"
)

// TestBuild_CitationIndices verifies every context appears under its 1-based
// bracketed index in supplied order — the alignment the Source list depends on.
func TestBuild_CitationIndices(t *testing.T) {
	t.Parallel()

	contexts := []string{"first chunk", "second chunk", "third chunk"}
	got := Build("what is this?", contexts)

	for i, c := range contexts {
		marker := fmt.Sprintf("[%d] %s", i+1, c)
		if !strings.Contains(got, marker) {
			t.Errorf("prompt missing %q", marker)
		}
	}

	// Order must match: [1] before [2] before [3].
	if strings.Index(got, "[1] ") > strings.Index(got, "[2] ") ||
		strings.Index(got, "[2] ") > strings.Index(got, "[3] ") {
		t.Error("context entries out of order")
	}
}

func TestBuild_ContainsQuestionAndRules(t *testing.T) {
	t.Parallel()

	got := Build("why is the sky blue?", []string{"ctx"})

	for _, want := range []string{
		"why is the sky blue?",
		"ONLY using the context below",
		InsufficientContextAnswer,
		"Do NOT use any outside knowledge",
		"inline citations like [1], [2]",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

// TestBuild_Deterministic verifies two builds with identical input are
// byte-identical.
func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	a := Build("q", []string{"x", "y"})
	b := Build("q", []string{"x", "y"})
	if a != b {
		t.Error("prompt not deterministic")
	}
}
