package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyya/iyya/internal/chunk"
	"github.com/iyya/iyya/internal/config"
	"github.com/iyya/iyya/internal/index"
	"github.com/iyya/iyya/internal/log"
)

// fakeSearcher returns canned retrieval results.
type fakeSearcher struct {
	results   []index.Result
	searchErr error
	calls     int
	lastQuery string
	lastK     int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, k int) ([]index.Result, error) {
	f.calls++
	f.lastQuery = query
	f.lastK = k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

func testModule() config.Module {
	return config.Module{
		ID:           "cgi",
		Collection:   "cgi_maroc_docs",
		SystemPrompt: "Contexte:\n{context}\n\nQuestion: {question}\nRéponse:",
		ChunkSize:    1500,
		ChunkOverlap: 300,
		Enabled:      true,
	}
}

// newTestEngine builds an Engine with a recording fake generator.
func newTestEngine(searcher Searcher, genText string, genErr error) (*Engine, *[]string) {
	prompts := &[]string{}
	e := &Engine{
		searcher: searcher,
		module:   testModule(),
		topK:     8,
		logger:   log.NewNop(),
		generate: func(ctx context.Context, prompt string, history []Turn, stream StreamCallback) (string, error) {
			*prompts = append(*prompts, prompt)
			if genErr != nil {
				return "", genErr
			}
			if stream != nil {
				for _, piece := range strings.SplitAfter(genText, " ") {
					if err := stream(ctx, piece); err != nil {
						return "", err
					}
				}
			}
			return genText, nil
		},
	}
	return e, prompts
}

func TestAnswerSubstantive(t *testing.T) {
	searcher := &fakeSearcher{results: []index.Result{
		{Chunk: chunk.Chunk{Content: "Le taux normal de la TVA est de 20%.", Page: 42}, Similarity: 0.9},
		{Chunk: chunk.Chunk{Content: "Taux réduit de 7%.", Page: 7}, Similarity: 0.8},
	}}
	e, prompts := newTestEngine(searcher, "Le taux normal est de 20%.", nil)

	ans, err := e.Answer(context.Background(), "Quel est le taux de TVA ?", nil)
	require.NoError(t, err)

	assert.Equal(t, "Le taux normal est de 20%.", ans.Answer)
	assert.Equal(t, []string{"7", "42"}, ans.Sources)
	assert.False(t, ans.Conversational)

	assert.Equal(t, 1, searcher.calls)
	assert.Equal(t, "Quel est le taux de TVA ?", searcher.lastQuery)
	assert.Equal(t, 8, searcher.lastK)

	require.Len(t, *prompts, 1)
	prompt := (*prompts)[0]
	assert.Contains(t, prompt, "[Source 1 - Page 42]")
	assert.Contains(t, prompt, "Quel est le taux de TVA ?")
	assert.NotContains(t, prompt, "{context}")
	assert.NotContains(t, prompt, "{question}")
}

func TestAnswerConversationalSkipsRetrieval(t *testing.T) {
	searcher := &fakeSearcher{}
	e, prompts := newTestEngine(searcher, "Bonjour ! Comment puis-je vous aider ?", nil)

	ans, err := e.Answer(context.Background(), "Bonjour", nil)
	require.NoError(t, err)

	assert.True(t, ans.Conversational)
	assert.Empty(t, ans.Sources)
	assert.NotNil(t, ans.Sources, "sources is an empty list, not null")
	assert.Zero(t, searcher.calls, "conversational questions never hit the index")

	require.Len(t, *prompts, 1)
	assert.Contains(t, (*prompts)[0], "Bonjour")
	assert.Contains(t, (*prompts)[0], "message conversationnel")
}

func TestAnswerEmptyRetrievalStillGenerates(t *testing.T) {
	searcher := &fakeSearcher{results: nil}
	e, prompts := newTestEngine(searcher, "Je n'ai pas trouvé cette information.", nil)

	ans, err := e.Answer(context.Background(), "Quel est le taux de la taxe professionnelle ?", nil)
	require.NoError(t, err)

	assert.Empty(t, ans.Sources)
	require.Len(t, *prompts, 1)
	assert.Contains(t, (*prompts)[0], "Aucun contexte disponible.")
}

func TestAnswerRetrievalFailure(t *testing.T) {
	searcher := &fakeSearcher{searchErr: errors.New("index down")}
	e, prompts := newTestEngine(searcher, "", nil)

	_, err := e.Answer(context.Background(), "Quel est le taux de TVA ?", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieving context")
	assert.Empty(t, *prompts, "generation must not run when retrieval fails")
}

func TestAnswerGenerationFailure(t *testing.T) {
	searcher := &fakeSearcher{results: []index.Result{
		{Chunk: chunk.Chunk{Content: "x", Page: 1}, Similarity: 0.9},
	}}
	e, _ := newTestEngine(searcher, "", errors.New("model unavailable"))

	_, err := e.Answer(context.Background(), "Quel est le taux de TVA ?", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestAnswerStream(t *testing.T) {
	searcher := &fakeSearcher{results: []index.Result{
		{Chunk: chunk.Chunk{Content: "Le taux est de 20%.", Page: 3}, Similarity: 0.9},
	}}
	e, _ := newTestEngine(searcher, "Le taux est de 20%.", nil)

	var streamed []string
	ans, err := e.AnswerStream(context.Background(), "Quel est le taux de TVA ?", nil,
		func(ctx context.Context, chunk string) error {
			streamed = append(streamed, chunk)
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, ans.Answer, strings.Join(streamed, ""))
	assert.Equal(t, 1, searcher.calls, "retrieval completed before streaming")
}

func TestAnswerStreamCancellation(t *testing.T) {
	searcher := &fakeSearcher{results: []index.Result{
		{Chunk: chunk.Chunk{Content: "x", Page: 1}, Similarity: 0.9},
	}}
	e, _ := newTestEngine(searcher, "une réponse assez longue pour plusieurs segments", nil)

	stop := errors.New("consumer disconnected")
	_, err := e.AnswerStream(context.Background(), "Quel est le taux de TVA ?", nil,
		func(ctx context.Context, chunk string) error {
			return stop
		})
	assert.ErrorIs(t, err, stop)
}

func TestAnswerPassesHistory(t *testing.T) {
	searcher := &fakeSearcher{results: []index.Result{
		{Chunk: chunk.Chunk{Content: "x", Page: 1}, Similarity: 0.9},
	}}

	var gotHistory []Turn
	e := &Engine{
		searcher: searcher,
		module:   testModule(),
		topK:     8,
		logger:   log.NewNop(),
		generate: func(ctx context.Context, prompt string, history []Turn, stream StreamCallback) (string, error) {
			gotHistory = history
			return "ok", nil
		},
	}

	history := []Turn{
		{Role: "user", Content: "Bonjour"},
		{Role: "assistant", Content: "Bonjour ! Posez vos questions fiscales."},
	}
	_, err := e.Answer(context.Background(), "Quel est le taux de TVA ?", history)
	require.NoError(t, err)
	assert.Equal(t, history, gotHistory)
}
