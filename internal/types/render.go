package types

import (
	"fmt"
	"io"
	"strings"
)

// Render writes a debug description of id, prefixed by name when it is not
// empty. Struct and union members are listed one per line, indented by
// nesting depth. Render only reads the table.
func (t *Table) Render(w io.Writer, id TypeID, name string) error {
	var sb strings.Builder
	if name != "" {
		sb.WriteString(name)
		sb.WriteString(": ")
	}
	t.render(&sb, id, 0)
	sb.WriteByte('\n')
	_, err := io.WriteString(w, sb.String())
	return err
}

// String renders id on a single logical line.
func (t *Table) String(id TypeID) string {
	var sb strings.Builder
	t.render(&sb, id, 0)
	return sb.String()
}

func (t *Table) render(sb *strings.Builder, id TypeID, depth int) {
	ty, ok := t.Lookup(id)
	if !ok {
		if id == NoTypeID {
			sb.WriteString("<none>")
		} else {
			fmt.Fprintf(sb, "<dead #%d>", id)
		}
		return
	}
	switch ty.Kind {
	case KindBasic:
		t.renderBasic(sb, ty, depth)
	case KindArray:
		fmt.Fprintf(sb, "[%d]", ty.Count)
		t.render(sb, ty.Elem, depth)
	case KindPointer:
		if q := ty.Qual.String(); q != "" {
			sb.WriteString(q)
			sb.WriteByte(' ')
		}
		sb.WriteByte('*')
		t.render(sb, ty.Elem, depth)
	case KindFunction:
		sb.WriteString("func(")
		for i, p := range t.ParamList(id) {
			if i > 0 {
				sb.WriteString(", ")
			}
			if p.Name != "" {
				sb.WriteString(p.Name)
				sb.WriteByte(' ')
			}
			t.render(sb, p.Type, depth)
		}
		sb.WriteString(") ")
		t.render(sb, ty.Elem, depth)
	default:
		fmt.Fprintf(sb, "<%s>", ty.Kind)
	}
}

func (t *Table) renderBasic(sb *strings.Builder, ty *Type, depth int) {
	for _, word := range []string{ty.Storage.String(), ty.Qual.String(), ty.Sign.String()} {
		if word != "" {
			sb.WriteString(word)
			sb.WriteByte(' ')
		}
	}
	sb.WriteString(ty.Spec.String())
	switch body := ty.Body.(type) {
	case Opaque:
		sb.WriteByte(' ')
		sb.WriteString(body.Name)
	case Fields:
		if body.Tag != "" {
			sb.WriteByte(' ')
			sb.WriteString(body.Tag)
		}
		sb.WriteString(" {\n")
		indent := strings.Repeat("  ", depth+1)
		for f := body.Head; f != NoField; {
			rec := t.fields.Get(uint32(f))
			sb.WriteString(indent)
			sb.WriteString(rec.Name)
			sb.WriteString(": ")
			t.render(sb, rec.Type, depth+1)
			fmt.Fprintf(sb, " @%d\n", rec.Offset)
			f = rec.Next
		}
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteByte('}')
	}
}
