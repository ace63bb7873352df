package extractor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"github.com/robert-at-pretension-io/rxyfmt/internal/descriptor"
)

// Extractor locates comments with Tree-sitter and the two descriptor
// shapes with a small lexer
type Extractor struct {
	mu     sync.Mutex
	parser *sitter.Parser
	lang   *sitter.Language
}

// Scan is the result of scanning one text unit
type Scan struct {
	// Text is the source with every comment replaced by spaces. Offsets
	// into Text are offsets into the original.
	Text     string
	Comments []descriptor.Span
	Structs  []StructRegion
	Arrays   []ArrayRegion
}

// New creates an Extractor with the C grammar loaded
func New() *Extractor {
	e := &Extractor{parser: sitter.NewParser()}
	e.SetLanguage(c.GetLanguage())
	return e
}

// NewSimple creates an Extractor that finds comments with the lexer only
func NewSimple() *Extractor {
	return &Extractor{parser: sitter.NewParser()}
}

// SetLanguage sets the Tree-sitter language used to locate comments
func (e *Extractor) SetLanguage(lang *sitter.Language) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lang = lang
	e.parser.SetLanguage(lang)
}

// Scan blanks comments and collects struct and array regions
func (e *Extractor) Scan(ctx context.Context, src []byte) (*Scan, error) {
	var comments []descriptor.Span

	e.mu.Lock()
	lang := e.lang
	e.mu.Unlock()

	if lang == nil {
		for _, t := range Lex(src) {
			if t.Kind == TokComment {
				comments = append(comments, descriptor.Span{Start: t.Start, End: t.End})
			}
		}
	} else {
		spans, err := e.commentSpans(ctx, src)
		if err != nil {
			return nil, err
		}
		comments = spans
	}

	text := blank(src, comments)
	structs, arrays := findRegions(text, Lex([]byte(text)))

	return &Scan{
		Text:     text,
		Comments: comments,
		Structs:  structs,
		Arrays:   arrays,
	}, nil
}

// commentSpans parses src with Tree-sitter and returns every comment node.
// Macro bodies are opaque to the grammar, so comments trailing a
// preprocessor argument are found by lexing the argument.
func (e *Extractor) commentSpans(ctx context.Context, src []byte) ([]descriptor.Span, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tree, err := e.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	defer tree.Close()

	var spans []descriptor.Span
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "comment":
			spans = append(spans, descriptor.Span{Start: int(n.StartByte()), End: int(n.EndByte())})
			return
		case "preproc_arg":
			start := int(n.StartByte())
			for _, t := range Lex(src[start:n.EndByte()]) {
				if t.Kind == TokComment {
					spans = append(spans, descriptor.Span{Start: start + t.Start, End: start + t.End})
				}
			}
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())

	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans, nil
}

// blank replaces comment bytes with spaces, keeping line breaks
func blank(src []byte, spans []descriptor.Span) string {
	out := make([]byte, len(src))
	copy(out, src)
	for _, s := range spans {
		for i := s.Start; i < s.End && i < len(out); i++ {
			if out[i] != '\n' && out[i] != '\r' {
				out[i] = ' '
			}
		}
	}
	return string(out)
}
