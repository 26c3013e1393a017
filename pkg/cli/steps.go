package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/steprunner/pkg/discovery"
)

var (
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	tagStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func newStepsCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "List discovered steps, hooks and scopes",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := discovery.BuildManifest(opts.scanner)
			switch format {
			case "yaml":
				return discovery.WriteManifest(cmd.OutOrStdout(), m)
			case "text":
				printManifest(cmd.OutOrStdout(), m)
				return nil
			default:
				return fmt.Errorf("unknown format %q (want text or yaml)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or yaml")
	return cmd
}

func printManifest(w io.Writer, m *discovery.Manifest) {
	fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("Steps (%d)", len(m.Steps))))
	for _, s := range m.Steps {
		fmt.Fprintf(w, "  %s", textStyle.Render(s.Texts[0]))
		if s.ContinueOnFailure {
			fmt.Fprintf(w, " %s", tagStyle.Render("[continue-on-failure]"))
		}
		fmt.Fprintf(w, " %s\n", dimStyle.Render(fmt.Sprintf("%s:%d", s.Source, s.Line)))
		for _, alias := range s.Texts[1:] {
			fmt.Fprintf(w, "    %s %s\n", dimStyle.Render("alias"), alias)
		}
		if s.Scope != "" {
			fmt.Fprintf(w, "    %s %s\n", dimStyle.Render("scope"), s.Scope)
		}
	}

	if len(m.Hooks) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("Hooks (%d)", len(m.Hooks))))
		for _, h := range m.Hooks {
			fmt.Fprintf(w, "  %-16s %s", h.Kind, h.ID)
			if len(h.Tags) > 0 {
				fmt.Fprintf(w, " %s", tagStyle.Render(fmt.Sprintf("[%s: %s]", h.Aggregation, strings.Join(h.Tags, ", "))))
			}
			if h.When != "" {
				fmt.Fprintf(w, " %s", tagStyle.Render("when "+h.When))
			}
			fmt.Fprintf(w, " %s\n", dimStyle.Render(fmt.Sprintf("%s:%d", h.Source, h.Line)))
		}
	}

	if len(m.Scopes) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headingStyle.Render("Scopes"))
		for _, s := range m.Scopes {
			fmt.Fprintf(w, "  %s\n", s)
		}
	}
	if m.Capture {
		fmt.Fprintf(w, "\n%s\n", dimStyle.Render("screenshot capture registered"))
	}
}
