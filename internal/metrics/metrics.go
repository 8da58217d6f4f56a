package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ProbeResult is the last reachability check of the Grafana host.
type ProbeResult struct {
	Host       string    `json:"host"`
	Reachable  bool      `json:"reachable"`
	RTTMs      float64   `json:"rtt_ms"`
	PacketLoss float64   `json:"packet_loss"`
	CheckedAt  time.Time `json:"checked_at"`
	Error      string    `json:"error,omitempty"`
}

// MaxPanelLabels bounds the distinct panel labels kept for per-panel
// render counts. Renders of further identifiers are counted under
// OtherPanel.
const MaxPanelLabels = 100

// OtherPanel is the label shared by identifiers past MaxPanelLabels.
const OtherPanel = "_other"

// Metrics collects Prometheus-compatible metrics for the panel service.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	RendersTotal       int64
	RendersByPanel     map[string]*int64
	InvalidIdentifiers int64
	StyleTransitions   int64
	PresetReloads      int64
	MountsTotal        int64
	DisposalsTotal     int64
	CacheHits          int64
	CacheMisses        int64

	// Gauges
	MountedViews int64

	probe *ProbeResult

	startTime time.Time
}

// New creates a new Metrics collector.
func New() *Metrics {
	return &Metrics{
		RendersByPanel: make(map[string]*int64),
		startTime:      time.Now(),
	}
}

// RecordRender counts a rendered frame for the identifier.
func (m *Metrics) RecordRender(id string) {
	atomic.AddInt64(&m.RendersTotal, 1)

	m.mu.RLock()
	counter, ok := m.RendersByPanel[id]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if counter, ok = m.RendersByPanel[id]; !ok {
			if len(m.RendersByPanel) >= MaxPanelLabels {
				id = OtherPanel
			}
			if counter, ok = m.RendersByPanel[id]; !ok {
				counter = new(int64)
				m.RendersByPanel[id] = counter
			}
		}
		m.mu.Unlock()
	}
	atomic.AddInt64(counter, 1)
}

func (m *Metrics) RecordInvalidIdentifier() { atomic.AddInt64(&m.InvalidIdentifiers, 1) }
func (m *Metrics) RecordTransition()        { atomic.AddInt64(&m.StyleTransitions, 1) }
func (m *Metrics) RecordPresetReload()      { atomic.AddInt64(&m.PresetReloads, 1) }
func (m *Metrics) RecordCacheHit()          { atomic.AddInt64(&m.CacheHits, 1) }
func (m *Metrics) RecordCacheMiss()         { atomic.AddInt64(&m.CacheMisses, 1) }

// ViewMounted and ViewDisposed track the lifetime of mounted views.
func (m *Metrics) ViewMounted() {
	atomic.AddInt64(&m.MountsTotal, 1)
	atomic.AddInt64(&m.MountedViews, 1)
}

func (m *Metrics) ViewDisposed() {
	atomic.AddInt64(&m.DisposalsTotal, 1)
	atomic.AddInt64(&m.MountedViews, -1)
}

// SetProbe stores the latest probe result.
func (m *Metrics) SetProbe(r ProbeResult) {
	m.mu.Lock()
	m.probe = &r
	m.mu.Unlock()
}

// Probe returns the latest probe result, or nil if none ran yet.
func (m *Metrics) Probe() *ProbeResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.probe == nil {
		return nil
	}
	r := *m.probe
	return &r
}

// Handler returns an HTTP handler that serves Prometheus-format metrics.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		uptime := time.Since(m.startTime).Seconds()
		fmt.Fprintf(w, "# HELP panelview_uptime_seconds Service uptime in seconds\n")
		fmt.Fprintf(w, "panelview_uptime_seconds %f\n\n", uptime)

		fmt.Fprintf(w, "# HELP panelview_renders_total Total number of rendered panel frames\n")
		fmt.Fprintf(w, "# TYPE panelview_renders_total counter\n")
		fmt.Fprintf(w, "panelview_renders_total %d\n\n", atomic.LoadInt64(&m.RendersTotal))

		fmt.Fprintf(w, "# HELP panelview_invalid_identifiers_total Rejected panel identifiers\n")
		fmt.Fprintf(w, "# TYPE panelview_invalid_identifiers_total counter\n")
		fmt.Fprintf(w, "panelview_invalid_identifiers_total %d\n\n", atomic.LoadInt64(&m.InvalidIdentifiers))

		fmt.Fprintf(w, "# HELP panelview_style_transitions_total View style state transitions\n")
		fmt.Fprintf(w, "# TYPE panelview_style_transitions_total counter\n")
		fmt.Fprintf(w, "panelview_style_transitions_total %d\n\n", atomic.LoadInt64(&m.StyleTransitions))

		fmt.Fprintf(w, "# HELP panelview_preset_reloads_total Successful presets file reloads\n")
		fmt.Fprintf(w, "# TYPE panelview_preset_reloads_total counter\n")
		fmt.Fprintf(w, "panelview_preset_reloads_total %d\n\n", atomic.LoadInt64(&m.PresetReloads))

		fmt.Fprintf(w, "# HELP panelview_mounts_total Views mounted\n")
		fmt.Fprintf(w, "# TYPE panelview_mounts_total counter\n")
		fmt.Fprintf(w, "panelview_mounts_total %d\n\n", atomic.LoadInt64(&m.MountsTotal))

		fmt.Fprintf(w, "# HELP panelview_disposals_total Views disposed\n")
		fmt.Fprintf(w, "# TYPE panelview_disposals_total counter\n")
		fmt.Fprintf(w, "panelview_disposals_total %d\n\n", atomic.LoadInt64(&m.DisposalsTotal))

		fmt.Fprintf(w, "# HELP panelview_cache_hits_total Page cache hits\n")
		fmt.Fprintf(w, "# TYPE panelview_cache_hits_total counter\n")
		fmt.Fprintf(w, "panelview_cache_hits_total %d\n\n", atomic.LoadInt64(&m.CacheHits))

		fmt.Fprintf(w, "# HELP panelview_cache_misses_total Page cache misses\n")
		fmt.Fprintf(w, "# TYPE panelview_cache_misses_total counter\n")
		fmt.Fprintf(w, "panelview_cache_misses_total %d\n\n", atomic.LoadInt64(&m.CacheMisses))

		fmt.Fprintf(w, "# HELP panelview_mounted_views Currently mounted views\n")
		fmt.Fprintf(w, "# TYPE panelview_mounted_views gauge\n")
		fmt.Fprintf(w, "panelview_mounted_views %d\n\n", atomic.LoadInt64(&m.MountedViews))

		// Per-panel render counts
		fmt.Fprintf(w, "# HELP panelview_panel_renders_total Renders per panel identifier\n")
		fmt.Fprintf(w, "# TYPE panelview_panel_renders_total counter\n")
		m.mu.RLock()
		ids := make([]string, 0, len(m.RendersByPanel))
		for id := range m.RendersByPanel {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(w, "panelview_panel_renders_total{panel=%q} %d\n", id, atomic.LoadInt64(m.RendersByPanel[id]))
		}
		probe := m.probe
		m.mu.RUnlock()
		fmt.Fprintln(w)

		if probe != nil {
			up := 0
			if probe.Reachable {
				up = 1
			}
			fmt.Fprintf(w, "# HELP panelview_grafana_up Whether the Grafana host answered the last probe\n")
			fmt.Fprintf(w, "# TYPE panelview_grafana_up gauge\n")
			fmt.Fprintf(w, "panelview_grafana_up{host=%q} %d\n", probe.Host, up)
			fmt.Fprintf(w, "panelview_grafana_rtt_ms{host=%q} %.1f\n", probe.Host, probe.RTTMs)
			fmt.Fprintf(w, "panelview_grafana_packet_loss{host=%q} %.1f\n", probe.Host, probe.PacketLoss)
		}
	}
}

// Snapshot is a JSON-friendly summary.
type Snapshot struct {
	Uptime             float64      `json:"uptime_seconds"`
	RendersTotal       int64        `json:"renders_total"`
	InvalidIdentifiers int64        `json:"invalid_identifiers"`
	StyleTransitions   int64        `json:"style_transitions"`
	MountedViews       int64        `json:"mounted_views"`
	Probe              *ProbeResult `json:"probe,omitempty"`
}

// GetSnapshot returns the current counters.
func (m *Metrics) GetSnapshot() Snapshot {
	return Snapshot{
		Uptime:             time.Since(m.startTime).Seconds(),
		RendersTotal:       atomic.LoadInt64(&m.RendersTotal),
		InvalidIdentifiers: atomic.LoadInt64(&m.InvalidIdentifiers),
		StyleTransitions:   atomic.LoadInt64(&m.StyleTransitions),
		MountedViews:       atomic.LoadInt64(&m.MountedViews),
		Probe:              m.Probe(),
	}
}
