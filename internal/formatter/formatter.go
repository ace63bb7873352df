package formatter

// =============================================================================
// FORMATTER
// =============================================================================
//
// Format renders every bound pair of a decoded model and writes the result
// back into the source:
//
//   1. the struct and array spans are replaced by their canonical rendering
//   2. member accesses, boolean literals and pin idioms that refer to the
//      re-typed or renamed fields are rewritten line by line
//   3. generator boilerplate is optionally dropped
//   4. line endings, trailing whitespace and surrounding blank lines are
//      normalised
//
// Format never touches the model it is given. It renders a Clone, so the
// same decode can be formatted again under another configuration.
// =============================================================================

import (
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/rxyfmt/internal/config"
	"github.com/robert-at-pretension-io/rxyfmt/internal/descriptor"
	"github.com/robert-at-pretension-io/rxyfmt/internal/diag"
)

// Formatter renders decoded models under one configuration
type Formatter struct {
	cfg *config.Config
	log *diag.Logger
}

// Result is the formatted text of one unit
type Result struct {
	Text string
	// LineEnding is the sequence the output uses ("\n" or "\r\n")
	LineEnding string
	// Pairs is the number of bound pairs rendered
	Pairs int
	// Commented counts references that were commented out because their
	// index has no field
	Commented int
}

// New creates a Formatter. A nil cfg means DefaultConfig, a nil log
// discards entries.
func New(cfg *config.Config, log *diag.Logger) *Formatter {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = diag.Discard()
	}
	return &Formatter{cfg: cfg, log: log}
}

// Format renders model's bound pairs into text. A model without pairs
// returns text unchanged.
func (f *Formatter) Format(text string, model *descriptor.Model) *Result {
	if model == nil || len(model.Pairs) == 0 {
		return &Result{Text: text, LineEnding: detectLineEnding(text)}
	}

	m := model.Clone()
	r := newRenderer(f.cfg)
	le := f.lineEnding(text)

	type splice struct {
		span descriptor.Span
		text string
	}
	var splices []splice
	for _, p := range m.Pairs {
		r.retype(p)
		splices = append(splices,
			splice{p.Struct.Span, r.renderStruct(p)},
			splice{p.Array.Span, r.renderArray(p.Array)},
		)
		f.log.Debugf(diag.CatFormat, "rendered %s with %s", p.Array.Name, p.Struct.Label())
	}

	// Replace from the end so earlier offsets stay valid
	sort.Slice(splices, func(i, j int) bool { return splices[i].span.Start > splices[j].span.Start })
	out := text
	for _, s := range splices {
		out = out[:s.span.Start] + s.text + out[s.span.End:]
	}

	out = normalizeLineEndings(out)

	rw := newRewriter(f.cfg, r.boolType)
	for _, p := range m.Pairs {
		rw.addPair(p)
	}
	out = rw.apply(out)
	for _, w := range rw.commented {
		f.log.Warnf(diag.CatFormat, "commented out %s: no field for this index", w)
	}

	if f.cfg.Source.RemoveBoilerplate {
		out = removeBoilerplate(out, f.cfg.IndentUnit())
	}

	return &Result{
		Text:       cleanup(out, le),
		LineEnding: le,
		Pairs:      len(m.Pairs),
		Commented:  len(rw.commented),
	}
}

// lineEnding resolves the configured line ending for text
func (f *Formatter) lineEnding(text string) string {
	switch f.cfg.LineEnding {
	case config.LineEndingLF:
		return "\n"
	case config.LineEndingCRLF:
		return "\r\n"
	}
	return detectLineEnding(text)
}

// detectLineEnding returns the most frequent of "\r\n", "\r" and "\n" in
// text. Ties and text without line breaks resolve to "\n".
func detectLineEnding(text string) string {
	var crlf, cr, lf int
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				crlf++
				i++
			} else {
				cr++
			}
		case '\n':
			lf++
		}
	}
	switch {
	case crlf > lf && crlf >= cr:
		return "\r\n"
	case cr > lf && cr > crlf:
		return "\r"
	}
	return "\n"
}

func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// cleanup strips trailing whitespace, drops leading and trailing blank
// lines and joins the lines with le, ending with exactly one le
func cleanup(text, le string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	start, end := 0, len(lines)
	for start < end && lines[start] == "" {
		start++
	}
	for end > start && lines[end-1] == "" {
		end--
	}
	if start == end {
		return ""
	}
	return strings.Join(lines[start:end], le) + le
}
