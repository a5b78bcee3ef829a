// text_view paints render plans in a terminal, for previewing a widget without a browser.
package text_view

import (
	"fmt"
	"io"
	"strings"

	"dimfilter/binding"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().PaddingRight(2)
)

const (
	selectedMark = "[x]"
	clearMark    = "[ ]"
)

// Renderer writes each plan it is given to w.
type Renderer struct {
	w io.Writer
}

func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

func (r *Renderer) Render(plan binding.RenderPlan) error {
	_, err := fmt.Fprintln(r.w, String(plan))
	return err
}

// String renders a plan as a block of styled text.
func String(plan binding.RenderPlan) string {
	switch plan.Kind {
	case binding.Loading:
		return statusStyle.Render("Loading…")
	case binding.EmptyDimensions:
		return statusStyle.Render("Add at least one dimension to the widget.")
	case binding.EmptyMeasures:
		return statusStyle.Render("Add at least one measure to the table.")
	}
	if plan.Ready == nil {
		return ""
	}

	blocks := []string{titleStyle.Render("Filters")}
	for _, ctl := range plan.Ready.Dimensions {
		blocks = append(blocks, control(ctl))
	}
	if len(plan.Ready.Rows) > 0 {
		blocks = append(blocks, "", titleStyle.Render("Rows"), table(plan.Ready))
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, blocks...))
}

func control(ctl binding.DimensionControl) string {
	label := headerStyle.Render(ctl.Dimension.Description)
	if !ctl.Loaded {
		return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", dimStyle.Render("loading…"))
	}
	if len(ctl.Members) == 0 {
		return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", dimStyle.Render("(no members)"))
	}

	options := make([]string, 0, len(ctl.Members))
	for _, m := range ctl.Members {
		if m.ID == ctl.Selected {
			options = append(options, selectedStyle.Render("▸"+m.Label))
			continue
		}
		options = append(options, m.Label)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", strings.Join(options, " | "))
}

// table lays the rows out in columns: a selection mark, the dimensions, then the measures.
func table(ready *binding.ReadyPlan) string {
	headers := []string{""}
	for _, ctl := range ready.Dimensions {
		headers = append(headers, ctl.Dimension.Description)
	}
	for _, m := range ready.Measures {
		headers = append(headers, m.Description)
	}

	grid := [][]string{headers}
	for _, row := range ready.Rows {
		mark := clearMark
		if row.Selected {
			mark = selectedMark
		}
		line := []string{mark}
		for _, dim := range row.Dimensions {
			switch {
			case dim.Value != "":
				line = append(line, dim.Value)
			case dim.Control != nil && !dim.Control.Loaded:
				line = append(line, "…")
			default:
				line = append(line, "-")
			}
		}
		for _, m := range row.Measures {
			line = append(line, m.Display)
		}
		grid = append(grid, line)
	}

	widths := make([]int, len(headers))
	for _, line := range grid {
		for i, text := range line {
			if i < len(widths) && lipgloss.Width(text) > widths[i] {
				widths[i] = lipgloss.Width(text)
			}
		}
	}

	lines := make([]string, 0, len(grid))
	for r, line := range grid {
		cells := make([]string, 0, len(line))
		for i, text := range line {
			style := cellStyle.Width(widths[i] + 2)
			if r == 0 {
				style = style.Bold(true)
			}
			cells = append(cells, style.Render(text))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
