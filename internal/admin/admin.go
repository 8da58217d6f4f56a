package admin

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/kubeview/panelview/internal/cache"
	"github.com/kubeview/panelview/internal/metrics"
	"github.com/kubeview/panelview/internal/style"
)

// Handler provides admin API endpoints.
type Handler struct {
	source     style.Source
	metrics    *metrics.Metrics
	pages      *cache.PageCache
	reloadFunc func() error // callback to reload presets
}

// NewHandler returns admin endpoints for source. m, pages and reloadFunc
// may be nil.
func NewHandler(source style.Source, m *metrics.Metrics, pages *cache.PageCache, reloadFunc func() error) *Handler {
	return &Handler{
		source:     source,
		metrics:    m,
		pages:      pages,
		reloadFunc: reloadFunc,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/admin/status", h.handleStatus)
	mux.HandleFunc("/admin/reload", h.handleReload)
	mux.HandleFunc("/admin/cache/purge", h.handlePurge)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var metricsSnap *metrics.Snapshot
	if h.metrics != nil {
		s := h.metrics.GetSnapshot()
		metricsSnap = &s
	}

	status := map[string]interface{}{
		"presets":    style.Presets{All: h.source.All(), Solo: h.source.Solo()},
		"reloadable": h.reloadFunc != nil,
		"metrics":    metricsSnap,
	}
	if h.pages != nil {
		size, maxSize := h.pages.Stats()
		status["cache"] = map[string]int{"size": size, "max_size": maxSize}
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.reloadFunc == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no presets_file configured"})
		return
	}

	log.Printf("[admin] Reloading presets")
	if err := h.reloadFunc(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "reloaded",
		"solo":   h.source.Solo(),
	})
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.pages == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "page cache disabled"})
		return
	}

	log.Printf("[admin] Purging page cache")
	h.pages.Purge()
	writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
