package formatter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/robert-at-pretension-io/rxyfmt/internal/config"
	"github.com/robert-at-pretension-io/rxyfmt/internal/descriptor"
	"github.com/robert-at-pretension-io/rxyfmt/internal/extractor"
)

// Identifier boundaries. Member accesses may index the instance:
// RemoteXY.x, RemoteXY[0].x, RemoteXY [i] . x
const (
	notBefore = `(?<![A-Za-z0-9_.])`
	notAfter  = `(?![A-Za-z0-9_])`
	index     = `(?:\s*\[[^\]\n]*\])?`
)

// lineRule rewrites one line; it reports whether the line must be
// commented out instead
type lineRule func(line string) (string, bool)

// rewriter holds every line rewrite derived from the bound pairs
type rewriter struct {
	cfg       *config.Config
	boolType  descriptor.FieldType
	rules     []lineRule
	pins      []pinName
	commented []string
}

type pinName struct {
	macro, constant string
}

func newRewriter(cfg *config.Config, boolType descriptor.FieldType) *rewriter {
	return &rewriter{cfg: cfg, boolType: boolType}
}

// member returns the pattern of an access to field name of instance obj,
// capturing everything up to the field name in group 1
func member(obj, name string) string {
	return `(` + notBefore + regexp2.Escape(obj) + index + `\s*\.\s*)` + regexp2.Escape(name)
}

func mustCompile(pattern string) *regexp2.Regexp {
	return regexp2.MustCompile(pattern, regexp2.None)
}

// addPair registers the rewrites for one rendered pair
func (w *rewriter) addPair(p *descriptor.BoundPair) {
	obj := p.Struct.ObjectName

	for _, e := range p.Array.Elements {
		if !e.Bound() {
			continue
		}
		b := e.Binding
		if obj != "" && len(b.Names) > 1 {
			if w.cfg.Struct.CollapseArrays {
				w.collapse(obj, b)
			} else {
				w.expand(obj, b)
			}
		}
		if obj != "" && e.Kind.BoolLike() {
			w.boolLiteral(obj, b.Name)
		}
		w.pins = append(w.pins, pinNames(b)...)
	}

	if m := p.Struct.Marker(); obj != "" && m != nil && m.Type == w.boolType {
		w.boolLiteral(obj, m.Name)
	}
}

// collapse rewrites obj.led_r to obj.led[0]
func (w *rewriter) collapse(obj string, b *descriptor.Binding) {
	for i, n := range b.Names {
		re := mustCompile(member(obj, n) + notAfter + `(?!\s*\[)`)
		repl := fmt.Sprintf("%s[%d]", b.Name, i)
		w.rules = append(w.rules, func(line string) (string, bool) {
			out, err := re.ReplaceFunc(line, func(m regexp2.Match) string {
				return m.GroupByNumber(1).String() + repl
			}, -1, -1)
			if err != nil {
				return line, false
			}
			return out, false
		})
	}
}

// expand rewrites obj.led[0] to obj.led_r. An index without a slot name
// comments the line out.
func (w *rewriter) expand(obj string, b *descriptor.Binding) {
	re := mustCompile(member(obj, b.Name) + `\s*\[\s*(\d+)\s*\]`)
	names := b.Names
	w.rules = append(w.rules, func(line string) (string, bool) {
		invalid := false
		out, err := re.ReplaceFunc(line, func(m regexp2.Match) string {
			var i int
			if _, err := fmt.Sscanf(m.GroupByNumber(2).String(), "%d", &i); err != nil || i >= len(names) {
				invalid = true
				return m.String()
			}
			return m.GroupByNumber(1).String() + names[i]
		}, -1, -1)
		if err != nil {
			return line, false
		}
		return out, invalid
	})
}

// boolLiteral rewrites the literal assigned to or compared with a
// boolean-like field so it matches the chosen type
func (w *rewriter) boolLiteral(obj, name string) {
	from, to := [2]string{"0", "1"}, [2]string{"false", "true"}
	if w.boolType != descriptor.TypeBool {
		from, to = to, from
	}
	re := mustCompile(`(` + member(obj, name) + `\s*={1,2}\s*)(` + from[0] + `|` + from[1] + `)(?![A-Za-z0-9_.])`)
	w.rules = append(w.rules, func(line string) (string, bool) {
		out, err := re.ReplaceFunc(line, func(m regexp2.Match) string {
			v := to[0]
			if m.GroupByNumber(3).String() == from[1] {
				v = to[1]
			}
			return m.GroupByNumber(1).String() + v
		}, -1, -1)
		if err != nil {
			return line, false
		}
		return out, false
	})
}

// pinNames returns the pin identifiers that may belong to a binding
func pinNames(b *descriptor.Binding) []pinName {
	names := append([]string{b.Name}, b.Names...)
	out := make([]pinName, 0, len(names))
	seen := map[string]bool{}
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, pinName{
			macro:    "PIN_" + strings.ToUpper(n),
			constant: "pin_" + strings.ToLower(n),
		})
	}
	return out
}

// isComment reports whether a line is a line comment
func isComment(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "//")
}

// apply runs every rule over the code of text. Comments and string or
// char literals are never rewritten and never comment a line out.
func (w *rewriter) apply(text string) string {
	mask := newCodeMask(text)
	lines := strings.Split(text, "\n")
	off := 0
	for i, line := range lines {
		start := off
		off += len(line) + 1
		if isComment(line) {
			continue
		}
		invalid := false
		out := mask.mapLine(line, start, func(code string) string {
			for _, rule := range w.rules {
				var bad bool
				code, bad = rule(code)
				if bad {
					invalid = true
				}
			}
			return code
		})
		if invalid {
			w.commented = append(w.commented, strings.TrimSpace(line))
			trimmed := strings.TrimLeft(line, " \t")
			out = line[:len(line)-len(trimmed)] + "// " + trimmed
		}
		lines[i] = out
	}
	text = strings.Join(lines, "\n")

	if w.cfg.Source.PinStyle != config.PinKeep {
		text = w.rewritePins(text)
	}
	return text
}

// codeMask holds the byte ranges of comments and literals in a text, in
// source order
type codeMask struct {
	spans [][2]int
	next  int
}

func newCodeMask(text string) *codeMask {
	m := &codeMask{}
	for _, t := range extractor.Lex([]byte(text)) {
		switch t.Kind {
		case extractor.TokComment, extractor.TokString, extractor.TokChar:
			m.spans = append(m.spans, [2]int{t.Start, t.End})
		}
	}
	return m
}

// mapLine applies fn to every piece of line that lies outside the masked
// ranges. start is the offset of line in the text; lines must be visited
// in order.
func (m *codeMask) mapLine(line string, start int, fn func(string) string) string {
	for m.next < len(m.spans) && m.spans[m.next][1] <= start {
		m.next++
	}
	end := start + len(line)
	if m.next == len(m.spans) || m.spans[m.next][0] >= end {
		return fn(line)
	}

	var b strings.Builder
	pos := 0
	for k := m.next; k < len(m.spans) && m.spans[k][0] < end; k++ {
		lo := max(m.spans[k][0]-start, pos)
		hi := min(m.spans[k][1]-start, len(line))
		if lo > pos {
			b.WriteString(fn(line[pos:lo]))
		}
		b.WriteString(line[lo:hi])
		pos = hi
	}
	if pos < len(line) {
		b.WriteString(fn(line[pos:]))
	}
	return b.String()
}

var (
	macroDecl = regexp2.MustCompile(`^([ \t]*)#define[ \t]+([A-Za-z_][A-Za-z0-9_]*)[ \t]+([^\s/]+)(.*)$`, regexp2.None)
	constDecl = regexp2.MustCompile(`^([ \t]*)(?:static[ \t]+)?const[ \t]+uint8_t[ \t]+([A-Za-z_][A-Za-z0-9_]*)[ \t]*=[ \t]*([^\s;]+)[ \t]*;(.*)$`, regexp2.None)
)

// rewritePins converts pin declarations of bound fields to the configured
// idiom and renames their uses
func (w *rewriter) rewritePins(text string) string {
	lines := strings.Split(text, "\n")

	declared := map[string]pinName{}
	for _, line := range lines {
		for _, re := range []*regexp2.Regexp{macroDecl, constDecl} {
			m, err := re.FindStringMatch(line)
			if err != nil || m == nil {
				continue
			}
			id := m.GroupByNumber(2).String()
			for _, p := range w.pins {
				if id == p.macro || id == p.constant {
					declared[id] = p
				}
			}
		}
	}
	if len(declared) == 0 {
		return text
	}

	toMacro := w.cfg.Source.PinStyle == config.PinMacro
	var renames []*regexp2.Regexp
	var targets []string
	for id, p := range declared {
		target := p.constant
		if toMacro {
			target = p.macro
		}
		if id == target {
			continue
		}
		renames = append(renames, mustCompile(`(?<![A-Za-z0-9_])`+regexp2.Escape(id)+notAfter))
		targets = append(targets, target)
	}

	mask := newCodeMask(text)
	off := 0
	for i, line := range lines {
		start := off
		off += len(line) + 1
		if isComment(line) {
			continue
		}
		line = mask.mapLine(line, start, func(code string) string {
			for k, re := range renames {
				if out, err := re.Replace(code, targets[k], -1, -1); err == nil {
					code = out
				}
			}
			return code
		})
		lines[i] = convertDecl(line, declared, toMacro)
	}
	return strings.Join(lines, "\n")
}

// convertDecl rewrites a single pin declaration line to the target idiom
func convertDecl(line string, declared map[string]pinName, toMacro bool) string {
	re := macroDecl
	if toMacro {
		re = constDecl
	}
	m, err := re.FindStringMatch(line)
	if err != nil || m == nil {
		return line
	}
	id := m.GroupByNumber(2).String()
	var p *pinName
	for _, d := range declared {
		if id == d.macro || id == d.constant {
			d := d
			p = &d
			break
		}
	}
	if p == nil {
		return line
	}
	indent := m.GroupByNumber(1).String()
	value := m.GroupByNumber(3).String()
	rest := m.GroupByNumber(4).String()
	if toMacro {
		return indent + "#define " + p.macro + " " + value + rest
	}
	return indent + "const uint8_t " + p.constant + " = " + value + ";" + rest
}

// -----------------------------------------------------------------------------
// Generator boilerplate
// -----------------------------------------------------------------------------

var (
	bannerComment  = regexp.MustCompile(`/\*\s*-- .* --[\s\S]*?\*/\s*`)
	includeMarkers = regexp.MustCompile(`/+\s*/+\s*(?:RemoteXY include library|END RemoteXY include)\s*/+\s*/+\s*`)
	stockComments  = regexp.MustCompile(`(?m)^[ \t]*//[ \t]*(?:RemoteXY select connection mode and include library|RemoteXY connection settings|RemoteXY configurate|this structure defines all the variables and events of your control interface)[ \t]*(?:\n|$)`)
	generatorCalls = regexp.MustCompile(`(?m)^[ \t]*RemoteXY_(Init|Handler)[ \t]*\([ \t]*\)`)
)

// removeBoilerplate drops the generator's stock comments and normalises its
// call sites to indent + RemoteXY_Init()
func removeBoilerplate(text, indent string) string {
	if loc := bannerComment.FindStringIndex(text); loc != nil {
		text = text[:loc[0]] + text[loc[1]:]
	}
	text = includeMarkers.ReplaceAllString(text, "")
	text = stockComments.ReplaceAllString(text, "")
	return generatorCalls.ReplaceAllString(text, indent+"RemoteXY_${1}()")
}
