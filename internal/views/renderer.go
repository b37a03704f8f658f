// Package views renders CLI output: tables, the dashboard and progress bars,
// styled with lipgloss when the writer is a terminal.
package views

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Renderer writes styled output to one writer
type Renderer struct {
	writer io.Writer
	re     *lipgloss.Renderer

	titleStyle  lipgloss.Style
	headerStyle lipgloss.Style
	borderStyle lipgloss.Style
	panelStyle  lipgloss.Style
	helpStyle   lipgloss.Style
	goodStyle   lipgloss.Style
	badStyle    lipgloss.Style
}

// NewRenderer creates a renderer. Colors are used only when writer is a
// terminal that supports them.
func NewRenderer(writer io.Writer) *Renderer {
	re := lipgloss.NewRenderer(writer)
	return &Renderer{
		writer: writer,
		re:     re,
		titleStyle: re.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		headerStyle: re.NewStyle().
			Bold(true).
			Padding(0, 1),
		borderStyle: re.NewStyle().
			Foreground(lipgloss.Color("240")),
		panelStyle: re.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		helpStyle: re.NewStyle().
			Foreground(lipgloss.Color("241")),
		goodStyle: re.NewStyle().
			Foreground(lipgloss.Color("10")),
		badStyle: re.NewStyle().
			Foreground(lipgloss.Color("196")),
	}
}

// RenderTable prints t with a rounded border, or t.Empty when it has no rows.
func (r *Renderer) RenderTable(t Table) {
	if t.Title != "" {
		_, _ = fmt.Fprintln(r.writer, r.titleStyle.Render(t.Title))
	}
	if len(t.Rows) == 0 {
		if t.Empty != "" {
			_, _ = fmt.Fprintln(r.writer, r.helpStyle.Render(t.Empty))
		}
		return
	}

	headers := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		headers[i] = c.Title
	}
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for j := range t.Columns {
			if j < len(row) {
				cells[j] = formatCell(row[j], t.Columns[j])
			}
		}
		rows[i] = cells
	}

	cellStyle := r.re.NewStyle().Padding(0, 1)
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.headerStyle
			}
			if col < len(t.Columns) {
				return cellStyle.Align(alignment(t.Columns[col].Align))
			}
			return cellStyle
		})
	_, _ = fmt.Fprintln(r.writer, tbl.Render())
}

// Message prints a single informational line.
func (r *Renderer) Message(format string, args ...any) {
	_, _ = fmt.Fprintln(r.writer, fmt.Sprintf(format, args...))
}

// Success prints a line marked as done.
func (r *Renderer) Success(format string, args ...any) {
	_, _ = fmt.Fprintln(r.writer, r.goodStyle.Render("✓")+" "+fmt.Sprintf(format, args...))
}

// RenderDashboard prints the dashboard panel.
func (r *Renderer) RenderDashboard(d Dashboard) {
	var b strings.Builder

	name := d.FullName
	if name == "" {
		name = d.Username
	}
	b.WriteString(r.titleStyle.Render(fmt.Sprintf("Assalamu alaikum, %s", name)))
	b.WriteString("\n")
	b.WriteString(r.helpStyle.Render(d.Date))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Prayers   %s %d/5\n", ProgressBar(d.PrayersDone, 5, 10), d.PrayersDone)
	if len(d.Prayers) > 0 {
		cells := make([]string, len(d.Prayers))
		for i, p := range d.Prayers {
			cells[i] = p.Name + " " + r.prayerMark(p.Status)
		}
		b.WriteString("          " + strings.Join(cells, "  ") + "\n")
	}
	fmt.Fprintf(&b, "Quran     %s %d/%d pages\n", ProgressBar(d.QuranPages, d.QuranGoal, 10), d.QuranPages, d.QuranGoal)
	fmt.Fprintf(&b, "Tasbih    %d (cycle %d, total %d)\n", d.TasbihCount, d.TasbihCycles, d.TasbihTotal)
	if d.NextPrayer != "" {
		fmt.Fprintf(&b, "Next      %s at %s", d.NextPrayer, d.NextPrayerAt)
		if d.Location != "" {
			fmt.Fprintf(&b, " (%s)", d.Location)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Messages  %d unread", d.Unread)
	if d.PendingFatwa > 0 {
		fmt.Fprintf(&b, "\nFatwa     %d pending", d.PendingFatwa)
	}

	_, _ = fmt.Fprintln(r.writer, r.panelStyle.Render(b.String()))
}

func (r *Renderer) prayerMark(status string) string {
	switch status {
	case "ON_TIME":
		return r.goodStyle.Render("✓")
	case "LATE":
		return r.goodStyle.Render("~")
	case "MISSED":
		return r.badStyle.Render("✗")
	default:
		return r.helpStyle.Render("·")
	}
}

// ProgressBar renders done out of total as a bar of width cells. A zero total
// renders empty.
func ProgressBar(done, total, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 {
		if done > total {
			done = total
		}
		if done > 0 {
			filled = done * width / total
		}
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

func formatCell(value string, c Column) string {
	value = strings.ReplaceAll(value, "\n", " ")
	if c.Width <= 0 || lipgloss.Width(value) <= c.Width {
		return value
	}
	if !c.Truncate {
		return value
	}
	if c.Width <= 1 {
		return "…"
	}
	runes := []rune(value)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > c.Width {
		runes = runes[:len(runes)-1]
	}
	return strings.TrimRight(string(runes), " ") + "…"
}

func alignment(a string) lipgloss.Position {
	switch a {
	case "right":
		return lipgloss.Right
	case "center":
		return lipgloss.Center
	default:
		return lipgloss.Left
	}
}
