package panel

import (
	"context"
	"sync"
	"time"

	"github.com/kubeview/panelview/internal/config"
	"github.com/kubeview/panelview/internal/style"
)

// DefaultSyncInterval is the period of a mounted view's style check.
const DefaultSyncInterval = 20 * time.Millisecond

// State is the style state of a view.
type State int

const (
	StateUnset State = iota
	StateSet
)

func (s State) String() string {
	switch s {
	case StateUnset:
		return "unset"
	case StateSet:
		return "set"
	default:
		return "unknown"
	}
}

// Options configures a View. Zero values fall back to the defaults of
// config.Default.
type Options struct {
	Grafana      config.GrafanaConfig
	SyncInterval time.Duration

	// OnTransition is called from the tick goroutine after the held preset
	// changes.
	OnTransition func(id string, from State, preset *style.StylePreset)
}

// OptionsFromConfig derives view options from the service config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Grafana:      cfg.Grafana,
		SyncInterval: time.Duration(cfg.Style.SyncIntervalMs) * time.Millisecond,
	}
}

// View embeds one Grafana panel. Its style state only changes while it is
// mounted.
type View struct {
	id     string
	source style.Source
	opts   Options

	mu      sync.Mutex
	held    *style.StylePreset
	mounted bool

	changes chan *style.StylePreset
}

// NewView returns an unmounted view in StateUnset.
func NewView(id string, source style.Source, opts Options) *View {
	if opts.Grafana.Host == "" {
		opts.Grafana = config.Default().Grafana
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = DefaultSyncInterval
	}
	return &View{
		id:      id,
		source:  source,
		opts:    opts,
		changes: make(chan *style.StylePreset, 1),
	}
}

// Identifier returns the identifier the view was created with.
func (v *View) Identifier() string { return v.id }

// State returns the current state and the held preset (nil when unset).
func (v *View) State() (State, *style.StylePreset) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.held == nil {
		return StateUnset, nil
	}
	return StateSet, v.held
}

// Changes delivers the newly held preset after each transition. Only the
// latest undelivered value is kept.
func (v *View) Changes() <-chan *style.StylePreset { return v.changes }

// Mount starts the periodic style check and returns its disposer. The
// disposer stops the timer and waits for any in-flight tick to finish; it
// is safe to call more than once. Cancelling ctx also stops the timer.
// Mounting an already mounted view returns a no-op disposer.
func (v *View) Mount(ctx context.Context) (dispose func()) {
	v.mu.Lock()
	if v.mounted {
		v.mu.Unlock()
		return func() {}
	}
	v.mounted = true
	v.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go v.run(ctx, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			v.mu.Lock()
			v.mounted = false
			v.mu.Unlock()
		})
	}
}

func (v *View) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(v.opts.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A tick racing with cancellation must not mutate a disposed view.
			if ctx.Err() != nil {
				return
			}
			v.sync()
		}
	}
}

// sync adopts the source's solo preset when the held reference differs.
func (v *View) sync() {
	solo := v.source.Solo()

	v.mu.Lock()
	if v.held == solo {
		v.mu.Unlock()
		return
	}
	from := StateSet
	if v.held == nil {
		from = StateUnset
	}
	v.held = solo
	v.mu.Unlock()

	select {
	case v.changes <- solo:
	default:
		// Replace the stale undelivered value.
		select {
		case <-v.changes:
		default:
		}
		select {
		case v.changes <- solo:
		default:
		}
	}

	if v.opts.OnTransition != nil {
		v.opts.OnTransition(v.id, from, solo)
	}
}
