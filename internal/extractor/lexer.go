package extractor

import "fmt"

// TokenKind classifies a lexer token
type TokenKind int

const (
	TokIdent TokenKind = iota
	TokNumber
	TokChar
	TokString
	TokPunct
	TokComment
)

func (k TokenKind) String() string {
	switch k {
	case TokIdent:
		return "ident"
	case TokNumber:
		return "number"
	case TokChar:
		return "char"
	case TokString:
		return "string"
	case TokPunct:
		return "punct"
	case TokComment:
		return "comment"
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// Token is one lexeme with its byte range [Start, End) in the source
type Token struct {
	Kind  TokenKind
	Start int
	End   int
	Text  string
}

// Is reports whether the token is the given punctuation or identifier
func (t Token) Is(text string) bool {
	return (t.Kind == TokPunct || t.Kind == TokIdent) && t.Text == text
}

type lexState int

const (
	stateCode lexState = iota
	stateLineComment
	stateBlockComment
	stateString
	stateChar
)

// Lex splits C-like source into tokens. Whitespace is dropped; comments are
// returned as TokComment so callers can blank them. String and char
// literals end at their closing quote or at an unescaped newline, so an
// unbalanced quote never swallows the rest of the file.
func Lex(src []byte) []Token {
	var (
		toks  []Token
		state = stateCode
		start int
	)

	emit := func(kind TokenKind, end int) {
		toks = append(toks, Token{Kind: kind, Start: start, End: end, Text: string(src[start:end])})
	}

	n := len(src)
	for i := 0; i < n; {
		c := src[i]
		switch state {
		case stateCode:
			start = i
			switch {
			case c == '/' && i+1 < n && src[i+1] == '/':
				state = stateLineComment
				i += 2
			case c == '/' && i+1 < n && src[i+1] == '*':
				state = stateBlockComment
				i += 2
			case c == '"':
				state = stateString
				i++
			case c == '\'':
				state = stateChar
				i++
			case isIdentStart(c):
				j := i + 1
				for j < n && isIdentPart(src[j]) {
					j++
				}
				emit(TokIdent, j)
				i = j
			case isDigit(c):
				j := i + 1
				for j < n && (isIdentPart(src[j]) || src[j] == '.') {
					j++
				}
				emit(TokNumber, j)
				i = j
			case isSpace(c):
				i++
			default:
				emit(TokPunct, i+1)
				i++
			}

		case stateLineComment:
			if c == '\n' {
				end := i
				if end > start && src[end-1] == '\r' {
					end--
				}
				emit(TokComment, end)
				state = stateCode
				continue
			}
			i++

		case stateBlockComment:
			if c == '*' && i+1 < n && src[i+1] == '/' {
				emit(TokComment, i+2)
				state = stateCode
				i += 2
				continue
			}
			i++

		case stateString, stateChar:
			quote := byte('"')
			kind := TokString
			if state == stateChar {
				quote = '\''
				kind = TokChar
			}
			switch {
			case c == '\\' && i+1 < n && src[i+1] != '\n':
				i += 2
			case c == quote:
				emit(kind, i+1)
				state = stateCode
				i++
			case c == '\n':
				emit(kind, i)
				state = stateCode
			default:
				i++
			}
		}
	}

	// Unterminated token at end of input
	switch state {
	case stateLineComment, stateBlockComment:
		emit(TokComment, n)
	case stateString:
		emit(TokString, n)
	case stateChar:
		emit(TokChar, n)
	}
	return toks
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
