package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kubeview/panelview/internal/config"
	"github.com/kubeview/panelview/internal/panel"
	"github.com/kubeview/panelview/internal/style"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#60a5fa"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8")).Width(8)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f87171"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#334155")).
			Padding(0, 1)
)

func newPreviewCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <identifier>",
		Short: "Show the frame a panel would render",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			source, _, err := loadSource(cfg)
			if err != nil {
				return err
			}
			v := panel.NewView(args[0], source, panel.OptionsFromConfig(cfg))
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderPreview(v.Frame(), source, isTerminal(out)))
			if f := v.Frame(); !f.Valid() {
				return fmt.Errorf("%s", f.Error)
			}
			return nil
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// renderPreview lays out the frame summary, boxed and coloured when styled.
func renderPreview(f panel.Frame, source style.Source, styled bool) string {
	paint := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}
	key := func(k string) string {
		if !styled {
			return fmt.Sprintf("%-8s", k)
		}
		return keyStyle.Render(k)
	}

	var b strings.Builder
	b.WriteString(paint(titleStyle, "Panel "+f.Identifier))
	b.WriteString("\n")
	if f.Valid() {
		fmt.Fprintf(&b, "%s%s\n", key("src"), f.Src)
	} else {
		fmt.Fprintf(&b, "%s%s\n", key("error"), paint(errStyle, f.Error))
	}
	fmt.Fprintf(&b, "%s%dx%d\n", key("frame"), f.Width, f.Height)
	fmt.Fprintf(&b, "%s%s\n", key("test id"), f.TestID)
	fmt.Fprintf(&b, "%s%s", key("solo"), presetString(source.Solo()))

	if !styled {
		return b.String()
	}
	return boxStyle.Render(b.String())
}

func presetString(p *style.StylePreset) string {
	if p == nil {
		return "unset"
	}
	return fmt.Sprintf("%gx%g", p.Width, p.Height)
}
