package rag

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/iyya/iyya/internal/index"
)

// conversationalPrompt answers greetings and small talk without document
// context. {question} is interpolated at query time.
const conversationalPrompt = `Tu es un assistant juridique marocain sympathique et professionnel.

L'utilisateur t'a envoyé un message conversationnel (salutation, remerciement, question générale).

Réponds de manière chaleureuse et naturelle en français. Si c'est une première interaction, présente-toi brièvement comme assistant spécialisé dans la législation marocaine et invite l'utilisateur à poser ses questions.

Message de l'utilisateur : {question}

Ta réponse chaleureuse :`

// emptyContext is the placeholder when retrieval returned nothing.
const emptyContext = "Aucun contexte disponible."

// formatContext renders retrieved chunks into one context block. Each
// fragment is labeled with its source index and page, fragments are
// separated by explicit delimiters so the model can cite them.
func formatContext(results []index.Result) string {
	if len(results) == 0 {
		return emptyContext
	}

	parts := make([]string, len(results))
	for i, r := range results {
		page := "N/A"
		if r.Chunk.Page > 0 {
			page = strconv.Itoa(r.Chunk.Page)
		}
		parts[i] = fmt.Sprintf("[Source %d - Page %s]\n%s", i+1, page, strings.TrimSpace(r.Chunk.Content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// renderTemplate interpolates {context} and {question} placeholders.
func renderTemplate(template, context, question string) string {
	return strings.NewReplacer(
		"{context}", context,
		"{question}", question,
	).Replace(template)
}

// sourceLocations collects the distinct page numbers across retrieved
// chunks, numeric pages sorted ascending, non-numeric markers ("N/A")
// appended after in first-seen order.
func sourceLocations(results []index.Result) []string {
	seen := make(map[string]bool)
	var numeric []int
	var other []string

	for _, r := range results {
		marker := "N/A"
		if r.Chunk.Page > 0 {
			marker = strconv.Itoa(r.Chunk.Page)
		}
		if seen[marker] {
			continue
		}
		seen[marker] = true

		if n, err := strconv.Atoi(marker); err == nil {
			numeric = append(numeric, n)
		} else {
			other = append(other, marker)
		}
	}

	sort.Ints(numeric)
	out := make([]string, 0, len(numeric)+len(other))
	for _, n := range numeric {
		out = append(out, strconv.Itoa(n))
	}
	return append(out, other...)
}
