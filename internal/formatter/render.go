package formatter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/rxyfmt/internal/config"
	"github.com/robert-at-pretension-io/rxyfmt/internal/descriptor"
)

// renderer builds the canonical text of one struct or array. Output uses
// "\n"; the final line ending is applied by cleanup.
type renderer struct {
	cfg      *config.Config
	indent   string
	boolType descriptor.FieldType
}

func newRenderer(cfg *config.Config) *renderer {
	r := &renderer{cfg: cfg, indent: cfg.IndentUnit(), boolType: descriptor.TypeUint8}
	if cfg.Struct.BoolFields {
		r.boolType = descriptor.TypeBool
	}
	return r
}

// retype applies the boolean typing choice to buttons, switches and the
// reserved marker field
func (r *renderer) retype(p *descriptor.BoundPair) {
	for _, e := range p.Array.Elements {
		if e.Kind.BoolLike() && e.Bound() {
			e.Binding.Type = r.boolType
		}
	}
	if m := p.Struct.Marker(); m != nil && (m.Type == descriptor.TypeBool || m.Type == descriptor.TypeUint8) {
		m.Type = r.boolType
	}
}

// open returns the text between a declaration head and its '{'
func (r *renderer) open() string {
	if r.cfg.Braces == config.BracesSameLine {
		return " {"
	}
	return "\n{"
}

// -----------------------------------------------------------------------------
// Struct
// -----------------------------------------------------------------------------

type fieldLine struct {
	typ   descriptor.FieldType
	name  string
	count int
}

func (r *renderer) renderStruct(p *descriptor.BoundPair) string {
	s := p.Struct

	var inputs, outputs, other []fieldLine
	for _, e := range p.Array.Elements {
		if !e.Bound() {
			continue
		}
		switch e.Category {
		case descriptor.CategoryInput:
			inputs = append(inputs, r.bindingLines(e.Binding)...)
		case descriptor.CategoryOutput:
			outputs = append(outputs, r.bindingLines(e.Binding)...)
		}
	}
	for _, f := range s.OtherFields() {
		other = append(other, fieldLine{f.Type, f.Name, f.Count})
	}

	width := 0
	if r.cfg.Struct.AlignTypes {
		width = 4
		for _, group := range [][]fieldLine{inputs, outputs, other} {
			for _, l := range group {
				if n := len(l.typ); n > width {
					width = n
				}
			}
		}
	}

	var b strings.Builder
	b.WriteString("struct")
	if s.TypeName != "" {
		b.WriteString(" " + s.TypeName)
	}
	b.WriteString(r.open())

	first := true
	block := func(title string, lines []fieldLine, always bool) {
		if len(lines) == 0 && !always {
			return
		}
		if !first {
			b.WriteString("\n")
		}
		first = false
		fmt.Fprintf(&b, "\n%s// %s", r.indent, title)
		for _, l := range lines {
			typ := string(l.typ)
			if width > 0 {
				typ = fmt.Sprintf("%-*s", width, typ)
			}
			fmt.Fprintf(&b, "\n%s%s %s", r.indent, typ, l.name)
			if l.count > 1 {
				fmt.Fprintf(&b, "[%d]", l.count)
			}
			b.WriteString(";")
		}
	}
	block("Inputs", inputs, len(p.Array.Inputs()) > 0)
	block("Outputs", outputs, len(p.Array.Outputs()) > 0)
	block("Other", other, true)

	b.WriteString("\n}")
	if s.ObjectName != "" {
		b.WriteString(" " + s.ObjectName)
	}
	if s.ObjectSize != "" {
		b.WriteString("[" + s.ObjectSize + "]")
	}
	b.WriteString(";")
	return b.String()
}

// bindingLines returns the struct lines of one element binding: a single
// (possibly array) field, or one field per slot name
func (r *renderer) bindingLines(bd *descriptor.Binding) []fieldLine {
	if r.cfg.Struct.CollapseArrays || len(bd.Names) == 0 {
		return []fieldLine{{bd.Type, bd.Name, bd.Count}}
	}
	lines := make([]fieldLine, 0, len(bd.Names))
	for _, n := range bd.Names {
		lines = append(lines, fieldLine{bd.Type, n, 1})
	}
	return lines
}

// -----------------------------------------------------------------------------
// Array
// -----------------------------------------------------------------------------

type elementLines struct {
	comment string
	lines   []string
}

func (r *renderer) renderArray(a *descriptor.ArrayDef) string {
	values := r.values(a)

	header := r.indent + strings.Join(values[:descriptor.HeaderSize], ",") + ","
	maxLen := len(header)

	groups := make([]elementLines, 0, len(a.Elements))
	for _, e := range a.Elements {
		g := elementLines{comment: r.elementName(e)}
		vals := values[e.Start : e.End+1]
		for i := 0; i < len(vals); i += r.cfg.Array.MaxValuesPerLine {
			end := i + r.cfg.Array.MaxValuesPerLine
			if end > len(vals) {
				end = len(vals)
			}
			l := r.indent + strings.Join(vals[i:end], ",") + ","
			if len(l) > maxLen {
				maxLen = len(l)
			}
			g.lines = append(g.lines, l)
		}
		groups = append(groups, g)
	}

	beside := r.cfg.Array.CommentPosition == config.CommentBeside
	pad := func(l string) string {
		return l + strings.Repeat(" ", maxLen+1-len(l))
	}

	var b strings.Builder
	b.WriteString("uint8_t ")
	for _, q := range a.Qualifiers {
		b.WriteString(q + " ")
	}
	b.WriteString(a.Name + "[")
	if a.DeclaredSize >= 0 {
		b.WriteString(strconv.Itoa(a.DeclaredSize))
	}
	b.WriteString("] =" + r.open() + "\n")

	if beside {
		b.WriteString(pad(header) + "// Header\n")
	} else {
		b.WriteString(r.indent + "// Header\n" + header + "\n")
	}

	for _, g := range groups {
		if r.cfg.Array.BlankLineBetween {
			b.WriteString("\n")
		}
		lines := g.lines
		if beside {
			b.WriteString(pad(lines[0]) + "// " + g.comment + "\n")
			lines = lines[1:]
		} else {
			b.WriteString(r.indent + "// " + g.comment + "\n")
		}
		for _, l := range lines {
			b.WriteString(l + "\n")
		}
	}
	b.WriteString("};")
	return b.String()
}

// values returns the rendered text of every array byte, padded
func (r *renderer) values(a *descriptor.ArrayDef) []string {
	out := make([]string, len(a.Bytes))
	for i := range a.Bytes {
		if r.cfg.Array.FixNegativeValues || i >= len(a.Literals) {
			out[i] = strconv.Itoa(int(a.Bytes[i]))
		} else {
			out[i] = strconv.Itoa(a.Literals[i])
		}
	}

	if r.cfg.Array.ShowCharacters {
		null := "0"
		if r.cfg.Array.ShowNullTerminator {
			null = `'\0'`
		}
		for _, e := range a.Elements {
			for _, t := range e.Texts {
				for k, c := range t.Chars {
					out[t.Start+k] = c
				}
				out[t.End] = null
			}
		}
	}

	if w := r.cfg.Array.ValuePadding + 1; w > 1 {
		for i, v := range out {
			out[i] = fmt.Sprintf("%*s", w, v)
		}
	}
	return out
}

// elementName is the comment naming an element in the array
func (r *renderer) elementName(e *descriptor.Element) string {
	prefix := ""
	if r.cfg.Array.ShowCategories {
		prefix = e.Category.Title() + " "
	}

	switch {
	case e.Binding != nil:
		if e.Binding.Name != "" {
			return prefix + e.Binding.Name
		}
		return prefix + string(e.Kind) + " (no struct variable)"
	case e.Category == descriptor.CategoryDecoration:
		switch e.Kind {
		case descriptor.KindLabel:
			return fmt.Sprintf("%slabel_%d", prefix, e.Ordinal)
		case descriptor.KindPanel:
			return fmt.Sprintf("%spanel_%d", prefix, e.Ordinal)
		case descriptor.KindPage:
			id := e.Ordinal
			if e.PageID != nil {
				id = int(*e.PageID)
			}
			name := fmt.Sprintf("%spage_%d", prefix, id)
			if main, _ := e.Attr("main_page"); main != 0 {
				name += " (main page)"
			}
			return name
		}
	}
	return prefix + string(e.Kind)
}
