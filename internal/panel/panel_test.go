package panel

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/kubeview/panelview/internal/config"
	"github.com/kubeview/panelview/internal/style"
)

const nodeCPUURL = "http://localhost:32000/d-solo/node-cpu/node-cpu?orgId=1&refresh=10s&from=1691451277822&to=1691472877822&panelId=1"

func defaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

// swappableSource lets tests replace the solo pointer.
type swappableSource struct {
	mu   sync.Mutex
	solo *style.StylePreset
}

func (s *swappableSource) All() *style.StylePreset { return nil }

func (s *swappableSource) Solo() *style.StylePreset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.solo
}

func (s *swappableSource) set(p *style.StylePreset) {
	s.mu.Lock()
	s.solo = p
	s.mu.Unlock()
}

// parseChart extracts the wrapper div and iframe attributes from rendered markup.
func parseChart(t *testing.T, markup string) (div, iframe map[string]string) {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(markup))
	require.NoError(t, err)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			attrs := make(map[string]string, len(n.Attr))
			for _, a := range n.Attr {
				attrs[a.Key] = a.Val
			}
			switch n.Data {
			case "div":
				if div == nil {
					div = attrs
				}
			case "iframe":
				iframe = attrs
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return div, iframe
}

func TestBuildURLNodeCPU(t *testing.T) {
	got, err := BuildURL(config.Default().Grafana, "node-cpu")
	require.NoError(t, err)
	assert.Equal(t, nodeCPUURL, got)
}

func TestBuildURLUsesIdentifierTwice(t *testing.T) {
	for _, id := range []string{"a", "node-cpu", "kube_pods.v2", "X9"} {
		got, err := BuildURL(config.Default().Grafana, id)
		require.NoError(t, err)
		assert.Contains(t, got, "/d-solo/"+id+"/"+id+"?")
	}
}

func TestBuildURLCustomGrafana(t *testing.T) {
	g := config.GrafanaConfig{Host: "grafana:3000", OrgID: 2, Refresh: "1m", From: 5, To: 6, PanelID: 7}
	got, err := BuildURL(g, "mem")
	require.NoError(t, err)
	assert.Equal(t, "http://grafana:3000/d-solo/mem/mem?orgId=2&refresh=1m&from=5&to=6&panelId=7", got)
}

func TestValidateIdentifier(t *testing.T) {
	for _, id := range []string{"", ".", "..", "a/b", "a?b", "a&panelId=2", "a b", "ü", strings.Repeat("x", 129)} {
		err := ValidateIdentifier(id)
		assert.True(t, errors.Is(err, ErrInvalidIdentifier), "identifier %q", id)
	}
	for _, id := range []string{"node-cpu", "a.b", "A_1", strings.Repeat("x", 128)} {
		assert.NoError(t, ValidateIdentifier(id), "identifier %q", id)
	}
}

func TestRenderFrame(t *testing.T) {
	v := NewView("node-cpu", style.Static(style.DefaultPresets()), defaultOptions())

	var buf bytes.Buffer
	require.NoError(t, v.Render(&buf))

	div, iframe := parseChart(t, buf.String())
	require.NotNil(t, div)
	require.NotNil(t, iframe)
	assert.Equal(t, "chart", div["class"])
	assert.Equal(t, "Event Chart", div["data-testid"])
	assert.Equal(t, nodeCPUURL, iframe["src"])
	assert.Equal(t, "450", iframe["width"])
	assert.Equal(t, "200", iframe["height"])
}

func TestRenderDimensionsIgnoreStyleState(t *testing.T) {
	huge := &style.StylePreset{Height: 999, Width: 999}
	src := style.Static(style.Presets{All: huge, Solo: huge})
	v := NewView("node-cpu", src, defaultOptions())

	dispose := v.Mount(context.Background())
	defer dispose()
	require.Eventually(t, func() bool {
		s, _ := v.State()
		return s == StateSet
	}, time.Second, 5*time.Millisecond)

	f := v.Frame()
	assert.Equal(t, 450, f.Width)
	assert.Equal(t, 200, f.Height)
	assert.Equal(t, TestID, f.TestID)
}

func TestFrameSizeIgnoresConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("frame:\n  width: 800\n  height: 600\n"), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	v := NewView("node-cpu", style.Static(style.DefaultPresets()), OptionsFromConfig(cfg))
	f := v.Frame()
	assert.Equal(t, FrameWidth, f.Width)
	assert.Equal(t, FrameHeight, f.Height)

	var buf bytes.Buffer
	require.NoError(t, v.Render(&buf))
	_, iframe := parseChart(t, buf.String())
	require.NotNil(t, iframe)
	assert.Equal(t, "450", iframe["width"])
	assert.Equal(t, "200", iframe["height"])
}

func TestRenderPlaceholderForEmptyIdentifier(t *testing.T) {
	v := NewView("", style.Static(style.DefaultPresets()), defaultOptions())

	f := v.Frame()
	assert.False(t, f.Valid())
	assert.Empty(t, f.Src)

	var buf bytes.Buffer
	require.NoError(t, v.Render(&buf))
	div, iframe := parseChart(t, buf.String())
	assert.Nil(t, iframe)
	assert.Equal(t, "Event Chart", div["data-testid"])
	assert.Contains(t, buf.String(), "Panel unavailable")
}

func TestMountTransitionsToSoloOnce(t *testing.T) {
	presets := style.DefaultPresets()
	var mu sync.Mutex
	var transitions []State

	opts := defaultOptions()
	opts.OnTransition = func(id string, from State, p *style.StylePreset) {
		mu.Lock()
		transitions = append(transitions, from)
		mu.Unlock()
		assert.Equal(t, "node-cpu", id)
		assert.Same(t, presets.Solo, p)
	}
	v := NewView("node-cpu", style.Static(presets), opts)

	state, held := v.State()
	assert.Equal(t, StateUnset, state)
	assert.Nil(t, held)

	dispose := v.Mount(context.Background())
	defer dispose()

	select {
	case p := <-v.Changes():
		assert.Same(t, presets.Solo, p)
	case <-time.After(time.Second):
		t.Fatal("no transition after mount")
	}

	// Several more periods pass without further transitions.
	time.Sleep(10 * DefaultSyncInterval)
	state, held = v.State()
	assert.Equal(t, StateSet, state)
	assert.Same(t, presets.Solo, held)

	mu.Lock()
	assert.Equal(t, []State{StateUnset}, transitions)
	mu.Unlock()
}

func TestFirstTransitionWithinOnePeriod(t *testing.T) {
	opts := defaultOptions()
	opts.SyncInterval = 200 * time.Millisecond
	v := NewView("node-cpu", style.Static(style.DefaultPresets()), opts)

	start := time.Now()
	dispose := v.Mount(context.Background())
	defer dispose()

	// Nothing happens before the first tick.
	time.Sleep(opts.SyncInterval / 4)
	state, _ := v.State()
	assert.Equal(t, StateUnset, state)

	select {
	case <-v.Changes():
	case <-time.After(3 * opts.SyncInterval):
		t.Fatal("no transition within three periods")
	}
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, opts.SyncInterval)
	assert.Less(t, elapsed, 3*opts.SyncInterval)
}

func TestMountFollowsReplacedPreset(t *testing.T) {
	first := &style.StylePreset{Height: 1, Width: 1}
	second := &style.StylePreset{Height: 1, Width: 1}
	src := &swappableSource{solo: first}
	v := NewView("node-cpu", src, defaultOptions())

	dispose := v.Mount(context.Background())
	defer dispose()

	require.Eventually(t, func() bool { _, p := v.State(); return p == first }, time.Second, 5*time.Millisecond)
	src.set(second)
	require.Eventually(t, func() bool { _, p := v.State(); return p == second }, time.Second, 5*time.Millisecond)
}

func TestDisposeBeforeFirstTick(t *testing.T) {
	opts := defaultOptions()
	opts.SyncInterval = time.Hour
	v := NewView("node-cpu", style.Static(style.DefaultPresets()), opts)

	before := runtime.NumGoroutine()
	dispose := v.Mount(context.Background())

	// The disposer waits for the tick goroutine, so nothing is left running
	// once it returns.
	assert.NotPanics(t, dispose)
	assert.LessOrEqual(t, runtime.NumGoroutine(), before)
	assert.NotPanics(t, dispose)
	assert.LessOrEqual(t, runtime.NumGoroutine(), before)

	state, _ := v.State()
	assert.Equal(t, StateUnset, state)
}

func TestDisposeStopsTicks(t *testing.T) {
	src := &swappableSource{solo: &style.StylePreset{}}
	v := NewView("node-cpu", src, defaultOptions())

	dispose := v.Mount(context.Background())
	require.Eventually(t, func() bool { s, _ := v.State(); return s == StateSet }, time.Second, 5*time.Millisecond)
	dispose()

	_, held := v.State()
	src.set(&style.StylePreset{Height: 5})
	time.Sleep(10 * DefaultSyncInterval)
	_, after := v.State()
	assert.Same(t, held, after)
}

func TestMountStopsOnContextCancel(t *testing.T) {
	src := &swappableSource{solo: &style.StylePreset{}}
	v := NewView("node-cpu", src, defaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	dispose := v.Mount(ctx)
	defer dispose()
	require.Eventually(t, func() bool { s, _ := v.State(); return s == StateSet }, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(5 * DefaultSyncInterval)
	_, held := v.State()
	src.set(&style.StylePreset{Height: 5})
	time.Sleep(10 * DefaultSyncInterval)
	_, after := v.State()
	assert.Same(t, held, after)
}

func TestDoubleMountIsNoop(t *testing.T) {
	v := NewView("node-cpu", style.Static(style.DefaultPresets()), defaultOptions())
	d1 := v.Mount(context.Background())
	d2 := v.Mount(context.Background())
	d2()
	require.Eventually(t, func() bool { s, _ := v.State(); return s == StateSet }, time.Second, 5*time.Millisecond)
	d1()
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unset", StateUnset.String())
	assert.Equal(t, "set", StateSet.String())
	assert.Equal(t, "unknown", State(7).String())
}
