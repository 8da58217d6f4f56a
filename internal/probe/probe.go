// Package probe checks that the Grafana host behind embedded panels answers
// ICMP echo requests.
package probe

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	ping "github.com/prometheus-community/pro-bing"

	"github.com/kubeview/panelview/internal/config"
	"github.com/kubeview/panelview/internal/metrics"
)

// Pinger is the subset of *ping.Pinger used by the prober.
type Pinger interface {
	Run() error
	Statistics() *ping.Statistics
	SetPrivileged(bool)
}

// newPinger is a variable to allow mocking in tests.
var newPinger = func(host string, count int, timeout time.Duration) (Pinger, error) {
	p, err := ping.NewPinger(host)
	if err != nil {
		return nil, err
	}
	p.Count = count
	p.Timeout = timeout
	return p, nil
}

// Prober pings one host on a fixed interval.
type Prober struct {
	host       string
	count      int
	timeout    time.Duration
	interval   time.Duration
	privileged bool
	report     func(metrics.ProbeResult)
}

// New returns a prober for the host part of the configured Grafana address.
// report receives every result.
func New(g config.GrafanaConfig, p config.ProbeConfig, report func(metrics.ProbeResult)) *Prober {
	host := g.Host
	if h, _, err := net.SplitHostPort(g.Host); err == nil {
		host = h
	}
	return &Prober{
		host:       host,
		count:      p.Count,
		timeout:    time.Duration(p.TimeoutSec) * time.Second,
		interval:   time.Duration(p.IntervalSec) * time.Second,
		privileged: p.Privileged,
		report:     report,
	}
}

// Host returns the probed host name.
func (p *Prober) Host() string { return p.host }

// Check runs a single probe.
func (p *Prober) Check() metrics.ProbeResult {
	res := metrics.ProbeResult{Host: p.host, PacketLoss: 100, CheckedAt: time.Now()}

	pinger, err := newPinger(p.host, p.count, p.timeout)
	if err != nil {
		res.Error = fmt.Sprintf("resolving %s: %v", p.host, err)
		return res
	}
	pinger.SetPrivileged(p.privileged)

	if err := pinger.Run(); err != nil {
		res.Error = err.Error()
		return res
	}
	stats := pinger.Statistics()
	if stats == nil {
		res.Error = "no statistics"
		return res
	}
	res.PacketLoss = stats.PacketLoss
	res.Reachable = stats.PacketsRecv > 0
	res.RTTMs = float64(stats.AvgRtt) / float64(time.Millisecond)
	return res
}

// Run probes immediately and then every interval until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	interval := p.interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res := p.Check()
		if !res.Reachable {
			log.Printf("[probe] grafana host %s unreachable (loss %.0f%%) %s", p.host, res.PacketLoss, res.Error)
		}
		if p.report != nil {
			p.report(res)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
