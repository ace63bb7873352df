package extractor

import (
	"strings"

	"github.com/robert-at-pretension-io/rxyfmt/internal/descriptor"
)

// StructRegion is a struct-shaped declaration:
//
//	struct [type name] { field list } [object name] [[size]] ;
type StructRegion struct {
	Span       descriptor.Span
	TypeName   string
	ObjectName string
	ObjectSize string
	Body       string
	BodySpan   descriptor.Span
}

// ArrayRegion is a byte-array initializer:
//
//	uint8_t [qualifiers] name [ [length] ] = { literal list } ;
type ArrayRegion struct {
	Span       descriptor.Span
	Qualifiers []string
	Name       string
	SizeText   string
	Body       string
	BodySpan   descriptor.Span
}

// findRegions walks the token stream of comment-free text and collects every
// struct and array region. Regions of one kind never overlap; a token that
// fails to open a region is skipped and the walk resumes after it.
func findRegions(text string, toks []Token) ([]StructRegion, []ArrayRegion) {
	var (
		structs []StructRegion
		arrays  []ArrayRegion
	)

	code := make([]Token, 0, len(toks))
	for _, t := range toks {
		if t.Kind != TokComment {
			code = append(code, t)
		}
	}

	for i := 0; i < len(code); i++ {
		if !code[i].Is("struct") {
			continue
		}
		if r, next, ok := matchStruct(text, code, i); ok {
			structs = append(structs, r)
			i = next - 1
		}
	}

	for i := 0; i < len(code); i++ {
		if code[i].Kind != TokIdent {
			continue
		}
		if r, next, ok := matchArray(text, code, i); ok {
			arrays = append(arrays, r)
			i = next - 1
		}
	}

	return structs, arrays
}

// matchStruct tries to read a struct region starting at code[i]. It returns
// the region and the index of the first token after it.
func matchStruct(text string, code []Token, i int) (StructRegion, int, bool) {
	r := StructRegion{}
	j := i + 1

	// Type name: identifiers and balanced attribute groups up to '{'
	depth := 0
	nameStart, nameEnd := -1, -1
	for ; j < len(code); j++ {
		t := code[j]
		if depth == 0 && t.Is("{") {
			break
		}
		switch {
		case t.Is("("):
			depth++
		case t.Is(")"):
			depth--
			if depth < 0 {
				return r, 0, false
			}
		case depth == 0 && (t.Is(";") || t.Is("=") || t.Is(",") || t.Is("*") || t.Is("}") || t.Is("{")):
			return r, 0, false
		}
		if nameStart < 0 {
			nameStart = t.Start
		}
		nameEnd = t.End
	}
	if j >= len(code) || depth != 0 {
		return r, 0, false
	}
	if nameStart >= 0 {
		r.TypeName = text[nameStart:nameEnd]
	}

	open := j
	end := matchBrace(code, open)
	if end < 0 {
		return r, 0, false
	}
	r.BodySpan = descriptor.Span{Start: code[open].End, End: code[end].Start}
	r.Body = text[r.BodySpan.Start:r.BodySpan.End]

	j = end + 1
	if j < len(code) && code[j].Kind == TokIdent {
		r.ObjectName = code[j].Text
		j++
	}
	if j < len(code) && code[j].Is("[") {
		k := j + 1
		for k < len(code) && !code[k].Is("]") && !code[k].Is(";") {
			k++
		}
		if k >= len(code) || !code[k].Is("]") {
			return r, 0, false
		}
		r.ObjectSize = strings.TrimSpace(text[code[j].End:code[k].Start])
		j = k + 1
	}
	if j >= len(code) || !code[j].Is(";") {
		return r, 0, false
	}

	r.Span = descriptor.Span{Start: code[i].Start, End: code[j].End}
	return r, j + 1, true
}

// matchBrace returns the index of the '}' closing code[open], or -1
func matchBrace(code []Token, open int) int {
	depth := 0
	for k := open; k < len(code); k++ {
		switch {
		case code[k].Is("{"):
			depth++
		case code[k].Is("}"):
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return -1
}

// matchArray tries to read an array region starting at code[i]
func matchArray(text string, code []Token, i int) (ArrayRegion, int, bool) {
	r := ArrayRegion{}
	j := i
	switch {
	case code[j].Is("uint8_t"):
		j++
	case code[j].Is("unsigned") && j+1 < len(code) && code[j+1].Is("char"):
		j += 2
	default:
		return r, 0, false
	}

	// Qualifiers followed by the name, all identifiers
	var idents []string
	for j < len(code) && code[j].Kind == TokIdent {
		idents = append(idents, code[j].Text)
		j++
	}
	if len(idents) == 0 {
		return r, 0, false
	}
	r.Name = idents[len(idents)-1]
	r.Qualifiers = idents[:len(idents)-1]

	if j >= len(code) || !code[j].Is("[") {
		return r, 0, false
	}
	j++
	if j < len(code) && code[j].Kind == TokNumber {
		r.SizeText = code[j].Text
		j++
	}
	if j+2 >= len(code) || !code[j].Is("]") || !code[j+1].Is("=") || !code[j+2].Is("{") {
		return r, 0, false
	}
	open := j + 2

	k := open + 1
	for ; k < len(code); k++ {
		if code[k].Is("}") {
			break
		}
		if code[k].Is("{") || code[k].Is(";") {
			return r, 0, false
		}
	}
	if k+1 >= len(code) || !code[k+1].Is(";") {
		return r, 0, false
	}

	r.BodySpan = descriptor.Span{Start: code[open].End, End: code[k].Start}
	r.Body = text[r.BodySpan.Start:r.BodySpan.End]
	r.Span = descriptor.Span{Start: code[i].Start, End: code[k+1].End}
	return r, k + 2, true
}
