package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/iyya/iyya/internal/log"
)

// EmbedderSetup contains the resources needed for embedder-based tests.
type EmbedderSetup struct {
	Embedder ai.Embedder
	Genkit   *genkit.Genkit
	Logger   log.Logger
}

// SetupEmbedder creates a Gemini embedder for integration tests.
// Skips the test when GEMINI_API_KEY is not available.
func SetupEmbedder(t *testing.T) *EmbedderSetup {
	t.Helper()

	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set - skipping test requiring embedder")
	}

	ctx := context.Background()
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		t.Fatal("Failed to initialize genkit")
	}

	return &EmbedderSetup{
		Embedder: googlegenai.GoogleAIEmbedder(g, "gemini-embedding-001"),
		Genkit:   g,
		Logger:   log.NewNop(),
	}
}
