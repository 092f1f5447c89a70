package cliui

import (
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"
)

var (
	rankStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	authorityStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
)

// Hit is one search result as shown in the terminal.
type Hit struct {
	Title      string
	Source     string
	SourceType string
	Authority  int
	Score      float32
	Text       string
}

// Header prints a bold heading followed by a highlighted value.
func Header(w io.Writer, label, value string) {
	fmt.Fprintf(w, "\n%s %s\n\n", headerStyle.Render(label), sourceStyle.Render(value))
}

// PrintHit renders one ranked hit. The text is rendered as markdown when
// possible and indented under the heading.
func PrintHit(w io.Writer, rank int, h Hit) {
	fmt.Fprintf(w, "  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		titleStyle.Render(h.Title),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", h.Score)),
	)
	fmt.Fprintf(w, "      %s  %s\n",
		sourceStyle.Render(fmt.Sprintf("[%s]", h.SourceType)),
		authorityStyle.Render(fmt.Sprintf("authority %d", h.Authority)),
	)
	if h.Source != "" {
		fmt.Fprintf(w, "      %s\n", dimStyle.Render(h.Source))
	}

	body, err := RenderMarkdown(h.Text)
	if err != nil {
		body = h.Text
	}
	for line := range strings.SplitSeq(strings.TrimRight(body, "\n"), "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
	fmt.Fprintln(w)
}

// KeyValue prints an aligned, dimmed label with its value.
func KeyValue(w io.Writer, key string, value any) {
	fmt.Fprintf(w, "  %s %v\n", dimStyle.Render(fmt.Sprintf("%-24s", key+":")), value)
}
