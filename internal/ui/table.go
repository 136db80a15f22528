package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"scc/internal/driver"
	"scc/internal/ir"
	"scc/internal/irstore"
)

// TableOptions controls RenderSteps.
type TableOptions struct {
	Color bool
	Width int // caps the label column; 0 means no cap
}

// RenderSteps writes the scheduled order of one unit as an aligned table.
func RenderSteps(w io.Writer, res *driver.Result, opts TableOptions) error {
	header := []string{"#", "node", "label", "type", "refs", "len", "flags"}
	spilled := res.Spill != nil
	if spilled {
		header = append(header, "loc")
	}
	rows := make([][]string, 0, len(res.Steps))
	for _, s := range res.Steps {
		label := s.Label
		if opts.Width > 0 {
			label = truncate(label, opts.Width)
		}
		row := []string{
			fmt.Sprint(s.Index),
			fmt.Sprintf("n%d", s.Node),
			label,
			s.Type,
			fmt.Sprint(s.Refs),
			fmt.Sprint(s.PathLen),
			s.Flags.String(),
		}
		if spilled {
			row = append(row, loc(s.Loc))
		}
		rows = append(rows, row)
	}

	title := fmt.Sprintf("%s: %d nodes, depth %d", res.Unit, len(res.Steps), res.Depth)
	var footer string
	if spilled {
		footer = fmt.Sprintf("spilled %d bytes, head @%d", res.Spill.Bytes, res.Spill.Head)
	}
	return writeTable(w, title, header, rows, footer, opts)
}

// RenderInspection writes the records of a re-read snapshot.
func RenderInspection(w io.Writer, ins *driver.Inspection, opts TableOptions) error {
	header := []string{"loc", "kind", "left", "right", "prev", "type", "refs", "visits", "var", "flags"}
	rows := make([][]string, 0, len(ins.Nodes))
	for _, n := range ins.Nodes {
		v := "-"
		if n.Var != ir.NoVar {
			v = fmt.Sprintf("v%d", n.Var)
		}
		rows = append(rows, []string{
			loc(n.Loc),
			n.Kind.String(),
			loc(n.Left),
			loc(n.Right),
			loc(n.Prev),
			n.Type,
			fmt.Sprint(n.Refs),
			fmt.Sprint(n.Visits),
			v,
			n.Flags.String(),
		})
	}
	title := fmt.Sprintf("%s: %s, %d nodes, %d bytes, ptr %d", ins.Path, ins.Unit, len(ins.Nodes), ins.Bytes, ins.PtrSize)
	return writeTable(w, title, header, rows, "", opts)
}

func loc(off irstore.Offset) string {
	if off == irstore.NoOffset {
		return "-"
	}
	return fmt.Sprintf("@%d", off)
}

func writeTable(w io.Writer, title string, header []string, rows [][]string, footer string, opts TableOptions) error {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	headStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	paint := func(style lipgloss.Style, text string) string {
		if !opts.Color {
			return text
		}
		return style.Render(text)
	}

	var b strings.Builder
	b.WriteString(paint(headStyle, title))
	b.WriteString("\n")
	b.WriteString(paint(headStyle, formatRow(header, widths)))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(formatRow(row, widths))
		b.WriteString("\n")
	}
	if footer != "" {
		b.WriteString(paint(dimStyle, footer))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderTypes writes the declared types of one unit.
func RenderTypes(w io.Writer, res *driver.Result) error {
	width := 0
	for _, t := range res.Types {
		width = max(width, runewidth.StringWidth(t.Name))
	}
	var b strings.Builder
	for _, t := range res.Types {
		b.WriteString(runewidth.FillRight(t.Name, width))
		b.WriteString("  ")
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func formatRow(cells []string, widths []int) string {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		if i == len(cells)-1 {
			b.WriteString(cell)
			continue
		}
		b.WriteString(runewidth.FillRight(cell, widths[i]))
	}
	return b.String()
}
