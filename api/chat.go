package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/iyya/iyya/internal/config"
	"github.com/iyya/iyya/internal/index"
	"github.com/iyya/iyya/internal/log"
	"github.com/iyya/iyya/internal/rag"
)

// Answerer is the slice of the RAG engine the chat handler needs.
// *rag.Engine satisfies it.
type Answerer interface {
	Answer(ctx context.Context, question string, history []rag.Turn) (*rag.Answer, error)
	AnswerStream(ctx context.Context, question string, history []rag.Turn, cb rag.StreamCallback) (*rag.Answer, error)
}

// EngineProvider resolves a module ID to its engine. Wraps the registry
// so tests can substitute fakes.
type EngineProvider func(ctx context.Context, moduleID string) (Answerer, error)

// ChatHandler handles the question answering endpoints.
//
// Endpoints:
//   - POST /api/chat        - synchronous answer (JSON request/response)
//   - POST /api/chat/stream - streaming answer (SSE - Server-Sent Events)
//
// Both endpoints run the same pipeline; the streaming variant delivers
// generation output chunk by chunk before the final payload.
type ChatHandler struct {
	cfg     *config.Config
	engines EngineProvider
	logger  log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(cfg *config.Config, engines EngineProvider, logger log.Logger) *ChatHandler {
	return &ChatHandler{cfg: cfg, engines: engines, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("POST /api/chat/stream", h.handleStream)
}

// ChatRequest is the request body for both chat endpoints.
type ChatRequest struct {
	ModuleID string     `json:"module_id"`
	Message  string     `json:"message"`
	History  []rag.Turn `json:"conversation_history,omitempty"`
}

// ChatResponse is the response body for POST /api/chat.
type ChatResponse struct {
	Success        bool     `json:"success"`
	Answer         string   `json:"answer,omitempty"`
	Sources        []string `json:"sources,omitempty"`
	Conversational bool     `json:"is_conversational"`
	Error          string   `json:"error,omitempty"`
}

// decodeChatRequest parses and validates the request body.
func decodeChatRequest(r *http.Request) (ChatRequest, error) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	if req.ModuleID == "" {
		return req, errors.New("module_id is required")
	}
	if req.Message == "" {
		return req, errors.New("message is required")
	}
	return req, nil
}

// handleChat answers a question synchronously.
//
// Error mapping follows the frontend contract: unknown modules are 404,
// an unsynced index and model failures come back as success:false with a
// user-facing message, database outages are 503.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	engine, err := h.engines(r.Context(), req.ModuleID)
	if err != nil {
		h.writeEngineError(w, req.ModuleID, err)
		return
	}

	ans, err := engine.Answer(r.Context(), req.Message, req.History)
	if err != nil {
		h.writeEngineError(w, req.ModuleID, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Success:        true,
		Answer:         ans.Answer,
		Sources:        ans.Sources,
		Conversational: ans.Conversational,
	})
}

// writeEngineError maps pipeline errors to HTTP responses.
func (h *ChatHandler) writeEngineError(w http.ResponseWriter, moduleID string, err error) {
	switch {
	case errors.Is(err, config.ErrUnknownModule):
		writeError(w, http.StatusNotFound, "module_not_found", "unknown module: "+moduleID)
	case errors.Is(err, rag.ErrEmptyIndex):
		writeJSON(w, http.StatusOK, ChatResponse{Error: err.Error()})
	case errors.Is(err, index.ErrUnavailable):
		h.logger.Error("chat failed", "module", moduleID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, ChatResponse{Error: err.Error()})
	default:
		h.logger.Error("chat failed", "module", moduleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, ChatResponse{Error: err.Error()})
	}
}

// SSEChunkData is the data for "chunk" events.
type SSEChunkData struct {
	Text string `json:"text"`
}

// SSEDoneData is the data for "done" events.
type SSEDoneData struct {
	Answer         string   `json:"answer"`
	Sources        []string `json:"sources"`
	Conversational bool     `json:"is_conversational"`
}

// SSEErrorData is the data for "error" events.
type SSEErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleStream handles the SSE streaming endpoint.
//
// Request body: {"module_id": "...", "message": "...", "conversation_history": [...]}
// Response: Server-Sent Events stream
//
// Event types:
//   - chunk: partial text {"text": "..."}
//   - done:  final payload {"answer": "...", "sources": [...], "is_conversational": ...}
//   - error: error occurred {"code": "...", "message": "..."}
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	req, err := decodeChatRequest(r)
	if err != nil {
		h.writeSSEError(w, flusher, "invalid_request", err.Error())
		return
	}

	ctx := r.Context()
	h.logger.Info("SSE stream started", "module", req.ModuleID)

	engine, err := h.engines(ctx, req.ModuleID)
	if err != nil {
		h.writeSSEError(w, flusher, sseErrorCode(err), err.Error())
		return
	}

	ans, err := engine.AnswerStream(ctx, req.Message, req.History, func(ctx context.Context, chunk string) error {
		// Stop generating once the client is gone.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		h.writeSSEChunk(w, flusher, chunk)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected", "module", req.ModuleID)
			return
		}
		h.logger.Error("stream failed", "module", req.ModuleID, "error", err)
		h.writeSSEError(w, flusher, sseErrorCode(err), err.Error())
		return
	}

	h.writeSSEDone(w, flusher, ans)
	h.logger.Info("SSE stream completed",
		"module", req.ModuleID,
		"conversational", ans.Conversational,
		"answerLen", len(ans.Answer))
}

// sseErrorCode picks the error code for SSE error events.
func sseErrorCode(err error) string {
	switch {
	case errors.Is(err, config.ErrUnknownModule):
		return "module_not_found"
	case errors.Is(err, rag.ErrEmptyIndex):
		return "empty_index"
	case errors.Is(err, index.ErrUnavailable):
		return "index_unavailable"
	default:
		return "stream_error"
	}
}

// writeSSEChunk writes a chunk event to the SSE stream.
func (h *ChatHandler) writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, text string) {
	data, _ := json.Marshal(SSEChunkData{Text: text})
	fmt.Fprintf(w, "event: chunk\ndata: %s\n\n", data)
	flusher.Flush()
}

// writeSSEDone writes a done event to the SSE stream.
func (h *ChatHandler) writeSSEDone(w http.ResponseWriter, flusher http.Flusher, ans *rag.Answer) {
	data, _ := json.Marshal(SSEDoneData{
		Answer:         ans.Answer,
		Sources:        ans.Sources,
		Conversational: ans.Conversational,
	})
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
	flusher.Flush()
}

// writeSSEError writes an error event to the SSE stream.
func (h *ChatHandler) writeSSEError(w http.ResponseWriter, flusher http.Flusher, code, message string) {
	data, _ := json.Marshal(SSEErrorData{Code: code, Message: message})
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
	flusher.Flush()
}
