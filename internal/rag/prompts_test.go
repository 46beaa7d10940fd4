package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iyya/iyya/internal/chunk"
	"github.com/iyya/iyya/internal/index"
)

func result(content string, page int, similarity float64) index.Result {
	return index.Result{
		Chunk:      chunk.Chunk{Content: content, Page: page},
		Similarity: similarity,
	}
}

func TestFormatContext(t *testing.T) {
	results := []index.Result{
		result("Le taux normal est de 20%.", 42, 0.9),
		result("Sont exonérés les produits de base.", 7, 0.8),
	}

	ctx := formatContext(results)

	assert.Contains(t, ctx, "[Source 1 - Page 42]\nLe taux normal est de 20%.")
	assert.Contains(t, ctx, "[Source 2 - Page 7]\nSont exonérés les produits de base.")
	assert.Contains(t, ctx, "\n\n---\n\n")
}

func TestFormatContextEmpty(t *testing.T) {
	assert.Equal(t, "Aucun contexte disponible.", formatContext(nil))
}

func TestFormatContextUnknownPage(t *testing.T) {
	ctx := formatContext([]index.Result{result("Texte sans page.", 0, 0.5)})
	assert.Contains(t, ctx, "[Source 1 - Page N/A]")
}

func TestRenderTemplate(t *testing.T) {
	out := renderTemplate("C: {context}\nQ: {question}", "le contexte", "la question")
	assert.Equal(t, "C: le contexte\nQ: la question", out)
}

func TestSourceLocations(t *testing.T) {
	results := []index.Result{
		result("a", 12, 0.9),
		result("b", 3, 0.8),
		result("c", 12, 0.7), // duplicate page
		result("d", 0, 0.6),  // non-numeric marker
		result("e", 1, 0.5),
	}

	assert.Equal(t, []string{"1", "3", "12", "N/A"}, sourceLocations(results))
}

func TestSourceLocationsEmpty(t *testing.T) {
	assert.Empty(t, sourceLocations(nil))
}
