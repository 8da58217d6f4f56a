package dashboard

import (
	"bytes"
	"encoding/json"
	"html/template"
	"log"
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	"github.com/kubeview/panelview/internal/cache"
	"github.com/kubeview/panelview/internal/config"
	"github.com/kubeview/panelview/internal/metrics"
	"github.com/kubeview/panelview/internal/panel"
	"github.com/kubeview/panelview/internal/style"
)

type Handler struct {
	opts      panel.Options
	source    style.Source
	metrics   *metrics.Metrics
	pages     *cache.PageCache
	startTime time.Time
}

// NewHandler serves panels built from cfg and source. m may be nil.
func NewHandler(cfg *config.Config, source style.Source, m *metrics.Metrics) *Handler {
	h := &Handler{
		opts:      panel.OptionsFromConfig(cfg),
		source:    source,
		metrics:   m,
		startTime: time.Now(),
	}
	if m != nil {
		h.opts.OnTransition = func(id string, from panel.State, p *style.StylePreset) {
			m.RecordTransition()
		}
	}
	return h
}

// SetCache enables caching of rendered panel pages.
func (h *Handler) SetCache(c *cache.PageCache) {
	h.pages = c
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /panel/{id}", h.servePanel)
	mux.HandleFunc("GET /panel/{id}/frame", h.serveFrame)
	mux.Handle("GET /panel/{id}/ws", websocket.Handler(h.serveWS))
	mux.HandleFunc("GET /presets", h.servePresets)
	mux.HandleFunc("GET /health", h.serveHealth)
}

func (h *Handler) newView(id string) *panel.View {
	return panel.NewView(id, h.source, h.opts)
}

// frameFor builds the frame for id and records it.
func (h *Handler) frameFor(id string) (*panel.View, panel.Frame) {
	v := h.newView(id)
	f := v.Frame()
	if h.metrics != nil {
		if f.Valid() {
			h.metrics.RecordRender(id)
		} else {
			h.metrics.RecordInvalidIdentifier()
		}
	}
	return v, f
}

func (h *Handler) servePanel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	v, f := h.frameFor(id)

	if h.pages != nil && f.Valid() {
		if page, ok := h.pages.Get(id); ok {
			if h.metrics != nil {
				h.metrics.RecordCacheHit()
			}
			writePage(w, http.StatusOK, page)
			return
		}
		if h.metrics != nil {
			h.metrics.RecordCacheMiss()
		}
	}

	var chart bytes.Buffer
	if err := v.Render(&chart); err != nil {
		log.Printf("[dashboard] rendering panel %q: %v", id, err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if !f.Valid() {
		status = http.StatusBadRequest
	}

	var page bytes.Buffer
	err := pageTmpl.Execute(&page, pageData{
		Identifier: id,
		Chart:      template.HTML(chart.String()),
		Live:       f.Valid(),
	})
	if err != nil {
		log.Printf("[dashboard] rendering page %q: %v", id, err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	if h.pages != nil && f.Valid() {
		h.pages.Set(id, page.Bytes())
	}
	writePage(w, status, page.Bytes())
}

func writePage(w http.ResponseWriter, status int, page []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(page)
}

func (h *Handler) serveFrame(w http.ResponseWriter, r *http.Request) {
	_, f := h.frameFor(r.PathValue("id"))
	if !f.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": f.Error})
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// stateMessage is pushed to websocket clients on mount and on every
// transition.
type stateMessage struct {
	Identifier string             `json:"identifier"`
	State      string             `json:"state"`
	Preset     *style.StylePreset `json:"preset,omitempty"`
}

// serveWS mounts a view for the lifetime of the connection.
func (h *Handler) serveWS(ws *websocket.Conn) {
	defer ws.Close()

	id := ws.Request().PathValue("id")
	if err := panel.ValidateIdentifier(id); err != nil {
		if h.metrics != nil {
			h.metrics.RecordInvalidIdentifier()
		}
		websocket.JSON.Send(ws, map[string]string{"error": err.Error()})
		return
	}

	v := h.newView(id)
	dispose := v.Mount(ws.Request().Context())
	if h.metrics != nil {
		h.metrics.ViewMounted()
	}
	defer func() {
		dispose()
		if h.metrics != nil {
			h.metrics.ViewDisposed()
		}
	}()

	// Reads only detect disconnects; the client sends nothing meaningful.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		var discard string
		for {
			if err := websocket.Message.Receive(ws, &discard); err != nil {
				return
			}
		}
	}()

	// A transition can land before the initial message; each preset is
	// sent only once.
	var last *style.StylePreset
	send := func() error {
		state, preset := v.State()
		last = preset
		return websocket.JSON.Send(ws, stateMessage{Identifier: id, State: state.String(), Preset: preset})
	}
	if err := send(); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case p := <-v.Changes():
			if p == last {
				continue
			}
			if err := send(); err != nil {
				return
			}
		}
	}
}

func (h *Handler) servePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, style.Presets{All: h.source.All(), Solo: h.source.Solo()})
}

func (h *Handler) serveHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	}
	if h.metrics != nil {
		if p := h.metrics.Probe(); p != nil {
			resp["grafana"] = p
		}
		resp["mounted_views"] = h.metrics.GetSnapshot().MountedViews
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[dashboard] encoding response: %v", err)
	}
}
