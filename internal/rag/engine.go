package rag

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/iyya/iyya/internal/config"
	"github.com/iyya/iyya/internal/index"
	"github.com/iyya/iyya/internal/log"
)

// Turn is one entry of the caller-owned conversation history.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Answer is the structured result of one question.
type Answer struct {
	Answer         string   `json:"answer"`
	Sources        []string `json:"sources"`
	Conversational bool     `json:"is_conversational"`
}

// Searcher is the read-only slice of the vector index the engine needs.
// *index.Collection satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]index.Result, error)
}

// StreamCallback receives generation output incrementally. Returning an
// error cancels the stream.
type StreamCallback func(ctx context.Context, chunk string) error

// generateFunc abstracts the model call so tests can substitute a fake.
type generateFunc func(ctx context.Context, prompt string, history []Turn, stream StreamCallback) (string, error)

// Engine answers questions for one module: classify, retrieve, prompt,
// generate. Read-only against the index and safe for concurrent use.
type Engine struct {
	searcher Searcher
	module   config.Module
	topK     int
	generate generateFunc
	logger   log.Logger
}

// NewEngine creates an Engine generating through Genkit.
func NewEngine(g *genkit.Genkit, modelName string, searcher Searcher, module config.Module, topK int, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{
		searcher: searcher,
		module:   module,
		topK:     topK,
		generate: newGenkitGenerate(g, modelName),
		logger:   logger,
	}
}

// Answer answers a question without streaming.
func (e *Engine) Answer(ctx context.Context, question string, history []Turn) (*Answer, error) {
	return e.AnswerStream(ctx, question, history, nil)
}

// AnswerStream answers a question, delivering generation output through
// cb as it is produced (cb may be nil). Retrieval completes and the full
// context is fixed before the first token is requested; generation never
// interleaves with retrieval.
func (e *Engine) AnswerStream(ctx context.Context, question string, history []Turn, cb StreamCallback) (*Answer, error) {
	intent := Classify(question)
	e.logger.Debug("classified question", "module", e.module.ID, "intent", intent.String())

	if intent == IntentConversational {
		prompt := renderTemplate(conversationalPrompt, "", question)
		text, err := e.generate(ctx, prompt, history, cb)
		if err != nil {
			return nil, fmt.Errorf("generating conversational answer: %w", err)
		}
		return &Answer{Answer: text, Sources: []string{}, Conversational: true}, nil
	}

	results, err := e.searcher.Search(ctx, question, e.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	e.logger.Debug("retrieved context", "module", e.module.ID, "chunks", len(results))

	prompt := renderTemplate(e.module.SystemPrompt, formatContext(results), question)
	text, err := e.generate(ctx, prompt, history, cb)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &Answer{
		Answer:  text,
		Sources: sourceLocations(results),
	}, nil
}

// newGenkitGenerate builds the production generateFunc on genkit.Generate.
func newGenkitGenerate(g *genkit.Genkit, modelName string) generateFunc {
	return func(ctx context.Context, prompt string, history []Turn, stream StreamCallback) (string, error) {
		messages := make([]*ai.Message, 0, len(history)+1)
		for _, t := range history {
			if t.Role == "assistant" {
				messages = append(messages, ai.NewModelMessage(ai.NewTextPart(t.Content)))
			} else {
				messages = append(messages, ai.NewUserMessage(ai.NewTextPart(t.Content)))
			}
		}
		messages = append(messages, ai.NewUserMessage(ai.NewTextPart(prompt)))

		opts := []ai.GenerateOption{
			ai.WithModelName(modelName),
			ai.WithMessages(messages...),
		}
		if stream != nil {
			opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
				return stream(ctx, chunk.Text())
			}))
		}

		resp, err := genkit.Generate(ctx, g, opts...)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
}
