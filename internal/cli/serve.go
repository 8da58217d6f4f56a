package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kubeview/panelview/internal/admin"
	"github.com/kubeview/panelview/internal/cache"
	"github.com/kubeview/panelview/internal/config"
	"github.com/kubeview/panelview/internal/dashboard"
	"github.com/kubeview/panelview/internal/metrics"
	"github.com/kubeview/panelview/internal/middleware"
	"github.com/kubeview/panelview/internal/probe"
	"github.com/kubeview/panelview/internal/style"
)

func newServeCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the panel HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.ListenAddr = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "override listen_addr")
	return cmd
}

// buildHandler wires routes and the middleware chain for cfg. reloadable
// and m may be nil.
func buildHandler(ctx context.Context, cfg *config.Config, source style.Source, reloadable *style.Reloadable, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	var pages *cache.PageCache
	if cfg.Cache.Enabled {
		pages = cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTLSec)
		go pages.Run(ctx, time.Minute)
	}

	dash := dashboard.NewHandler(cfg, source, m)
	if pages != nil {
		dash.SetCache(pages)
	}
	dash.RegisterRoutes(mux)

	var reloadFunc func() error
	if reloadable != nil {
		reloadFunc = reloadable.Reload
	}
	admin.NewHandler(source, m, pages, reloadFunc).RegisterRoutes(mux)

	if m != nil {
		mux.HandleFunc("GET /metrics", m.Handler())
	}

	// Build middleware chain (applied in reverse order)
	var handler http.Handler = mux
	handler = middleware.Auth(cfg.Dashboard)(handler)
	if cfg.RateLimit.Enabled {
		handler = middleware.RateLimit(ctx, cfg.RateLimit)(handler)
	}
	handler = middleware.StructuredLogging(cfg.Logging.Format)(handler)
	handler = middleware.RequestID(handler)
	return handler
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("panelview %s starting...", Version)

	source, reloadable, err := loadSource(cfg)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		log.Printf("  [feature] Prometheus metrics enabled at /metrics")
	}

	if reloadable != nil {
		if m != nil {
			reloadable.OnReload = func(style.Presets) { m.RecordPresetReload() }
		}
		log.Printf("  [feature] presets loaded from %s", cfg.Style.PresetsFile)
		if cfg.Style.Watch {
			go func() {
				if err := reloadable.Watch(ctx); err != nil {
					log.Printf("[style] watcher stopped: %v", err)
				}
			}()
			log.Printf("  [feature] presets hot reload enabled")
		}
	}

	if cfg.Probe.Enabled {
		report := func(metrics.ProbeResult) {}
		if m != nil {
			report = m.SetProbe
		}
		p := probe.New(cfg.Grafana, cfg.Probe, report)
		go p.Run(ctx)
		log.Printf("  [feature] Grafana probe enabled (%s every %ds)", p.Host(), cfg.Probe.IntervalSec)
	}
	if cfg.Dashboard.Password != "" {
		log.Printf("  [feature] panel password protection enabled")
	}
	if cfg.Cache.Enabled {
		log.Printf("  [feature] page cache enabled (%d entries, TTL %ds)", cfg.Cache.MaxEntries, cfg.Cache.TTLSec)
	}
	if cfg.RateLimit.Enabled {
		log.Printf("  [feature] rate limiting enabled (%d req/min, burst %d)", cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstSize)
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           buildHandler(ctx, cfg, source, reloadable, m),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// SIGHUP re-reads the presets file.
	go func() {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if reloadable == nil {
					log.Printf("Received SIGHUP but no presets_file is configured")
					continue
				}
				log.Printf("Received SIGHUP, reloading presets...")
				if err := reloadable.Reload(); err != nil {
					log.Printf("Presets reload failed: %v", err)
				}
			}
		}
	}()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		log.Printf("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("panelview listening on %s", cfg.ListenAddr)
	log.Printf("  GET  http://localhost%s/panel/{id}", cfg.ListenAddr)
	log.Printf("  GET  http://localhost%s/panel/{id}/frame", cfg.ListenAddr)
	log.Printf("  GET  ws://localhost%s/panel/{id}/ws", cfg.ListenAddr)
	log.Printf("  GET  http://localhost%s/presets", cfg.ListenAddr)
	log.Printf("  GET  http://localhost%s/health", cfg.ListenAddr)
	log.Printf("  GET  http://localhost%s/admin/status", cfg.ListenAddr)
	log.Printf("  POST http://localhost%s/admin/reload", cfg.ListenAddr)
	log.Printf("  POST http://localhost%s/admin/cache/purge", cfg.ListenAddr)

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-shutdownDone
	return nil
}
