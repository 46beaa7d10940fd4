package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/iyya/iyya/internal/config"
	"github.com/iyya/iyya/internal/index"
	"github.com/iyya/iyya/internal/ingest"
	"github.com/iyya/iyya/internal/log"
)

// StatusReporter reports a module's folder and index state.
// *ingest.Syncer satisfies it.
type StatusReporter interface {
	Status(ctx context.Context, moduleID string) (*ingest.Status, error)
}

// ModuleHandler handles module listing and status endpoints.
type ModuleHandler struct {
	cfg    *config.Config
	status StatusReporter
	logger log.Logger
}

// NewModuleHandler creates a new module handler.
func NewModuleHandler(cfg *config.Config, status StatusReporter, logger log.Logger) *ModuleHandler {
	return &ModuleHandler{cfg: cfg, status: status, logger: logger}
}

// RegisterRoutes registers module routes on the given mux.
func (h *ModuleHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/modules", h.list)
	mux.HandleFunc("GET /api/modules/{id}", h.get)
	mux.HandleFunc("GET /api/modules/{id}/status", h.moduleStatus)
}

// ModuleInfo is the public view of a module. The system prompt stays
// server-side.
type ModuleInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ShortName   string `json:"short_name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	Enabled     bool   `json:"enabled"`
}

// ModulesResponse is the response for GET /api/modules.
type ModulesResponse struct {
	Modules []ModuleInfo `json:"modules"`
}

// ModuleStatusResponse is the response for GET /api/modules/{id}/status.
type ModuleStatusResponse struct {
	Success    bool   `json:"success"`
	ModuleID   string `json:"module_id"`
	NumVectors int64  `json:"num_vectors"`
	FileCount  int    `json:"file_count"`
	Synced     bool   `json:"synced"`
	Error      string `json:"error,omitempty"`
}

func moduleInfo(m config.Module) ModuleInfo {
	return ModuleInfo{
		ID:          m.ID,
		Name:        m.Name,
		ShortName:   m.ShortName,
		Description: m.Description,
		Icon:        m.Icon,
		Color:       m.Color,
		Enabled:     m.Enabled,
	}
}

// list returns all enabled modules.
func (h *ModuleHandler) list(w http.ResponseWriter, _ *http.Request) {
	enabled := h.cfg.EnabledModules()
	infos := make([]ModuleInfo, 0, len(enabled))
	for _, m := range enabled {
		infos = append(infos, moduleInfo(m))
	}
	writeJSON(w, http.StatusOK, ModulesResponse{Modules: infos})
}

// get returns a single module's metadata.
func (h *ModuleHandler) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m, err := h.cfg.ModuleByID(id)
	if err != nil || !m.Enabled {
		writeError(w, http.StatusNotFound, "module_not_found", "unknown module: "+id)
		return
	}
	writeJSON(w, http.StatusOK, moduleInfo(m))
}

// moduleStatus reports the index state for one module.
func (h *ModuleHandler) moduleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	st, err := h.status.Status(r.Context(), id)
	switch {
	case errors.Is(err, config.ErrUnknownModule):
		writeError(w, http.StatusNotFound, "module_not_found", "unknown module: "+id)
		return
	case errors.Is(err, index.ErrUnavailable):
		h.logger.Error("status check failed", "module", id, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, ModuleStatusResponse{ModuleID: id, Error: err.Error()})
		return
	case err != nil:
		h.logger.Error("status check failed", "module", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, ModuleStatusResponse{ModuleID: id, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ModuleStatusResponse{
		Success:    true,
		ModuleID:   st.ModuleID,
		NumVectors: st.IndexCount,
		FileCount:  st.FileCount,
		Synced:     st.Synced,
	})
}
