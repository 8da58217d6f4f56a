package panel

import (
	"html/template"
	"io"
)

// TestID marks the wrapper element of every rendered panel.
const TestID = "Event Chart"

// Every embedded panel has the same iframe size.
const (
	FrameWidth  = 450
	FrameHeight = 200
)

// Frame describes the iframe a view renders. Src and Error are mutually
// exclusive.
type Frame struct {
	Identifier string `json:"identifier"`
	Src        string `json:"src,omitempty"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	TestID     string `json:"test_id"`
	Error      string `json:"error,omitempty"`
}

// Valid reports whether the frame has a source to embed.
func (f Frame) Valid() bool { return f.Error == "" }

// Frame returns the frame for the view's identifier. The dimensions are
// fixed and never follow the held style preset.
func (v *View) Frame() Frame {
	f := Frame{
		Identifier: v.id,
		Width:      FrameWidth,
		Height:     FrameHeight,
		TestID:     TestID,
	}
	src, err := BuildURL(v.opts.Grafana, v.id)
	if err != nil {
		f.Error = err.Error()
		return f
	}
	f.Src = src
	return f
}

var chartTmpl = template.Must(template.New("chart").Parse(
	`<div class="chart" data-testid="{{.TestID}}">` +
		`{{if .Valid}}<iframe src="{{.Src}}" width="{{.Width}}" height="{{.Height}}"></iframe>` +
		`{{else}}<p class="chart-placeholder">Panel unavailable: {{.Error}}</p>{{end}}` +
		`</div>`))

// Render writes the view's markup. Invalid identifiers render a placeholder
// in place of the iframe.
func (v *View) Render(w io.Writer) error {
	return chartTmpl.Execute(w, v.Frame())
}
