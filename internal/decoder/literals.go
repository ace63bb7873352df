package decoder

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// escapes maps the character after a backslash to its byte value
var escapes = map[byte]byte{
	'0':  0,
	'\'': '\'',
	'"':  '"',
	'?':  '?',
	'\\': '\\',
	'a':  7,
	'b':  8,
	'f':  12,
	'n':  10,
	'r':  13,
	't':  9,
	'v':  11,
}

// escapeNames is the reverse of escapes, used to render caption bytes
var escapeNames = map[byte]string{
	0:    `\0`,
	'\'': `\'`,
	'"':  `\"`,
	'?':  `\?`,
	'\\': `\\`,
	7:    `\a`,
	8:    `\b`,
	12:   `\f`,
	10:   `\n`,
	13:   `\r`,
	9:    `\t`,
	11:   `\v`,
}

// Tokenize reads the comma-separated literal list of an array initializer.
// It stops at the first literal it cannot resolve and returns what it read
// up to there. Values are returned as written, so a negative decimal stays
// negative.
func Tokenize(body string) []int {
	var out []int
	s := body
	for {
		s = strings.TrimLeft(s, " \t\r\n\f\v")
		if s == "" {
			return out
		}
		v, n, ok := readLiteral(s)
		if !ok {
			return out
		}
		out = append(out, v)
		s = strings.TrimLeft(s[n:], " \t\r\n\f\v")
		if s == "" {
			return out
		}
		if s[0] != ',' {
			return out
		}
		s = s[1:]
	}
}

// readLiteral resolves the literal at the start of s and returns its value
// and the number of bytes it spans
func readLiteral(s string) (int, int, bool) {
	switch {
	case s[0] == '\'':
		return readCharLiteral(s)
	case s[0] == '-':
		rest := strings.TrimLeft(s[1:], " \t")
		skip := len(s) - len(rest)
		if rest == "" || !isDecimal(rest[0]) {
			return 0, 0, false
		}
		v, n, ok := readDecimal(rest)
		return -v, skip + n, ok
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		return readDigits(s, 2, 2, 16)
	case strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B"):
		return readDigits(s, 2, 8, 2)
	case s[0] == 'B':
		return readDigits(s, 1, 8, 2)
	case isDecimal(s[0]):
		return readDecimal(s)
	}
	return 0, 0, false
}

// readDecimal reads 0..255 without leading zeros
func readDecimal(s string) (int, int, bool) {
	n := 0
	for n < len(s) && isDecimal(s[n]) {
		n++
	}
	if n > 3 || (n > 1 && s[0] == '0') || wordFollows(s, n) {
		return 0, 0, false
	}
	v, err := strconv.Atoi(s[:n])
	if err != nil || v > 255 {
		return 0, 0, false
	}
	return v, n, true
}

// readDigits reads 1..max digits in the given base after a prefix
func readDigits(s string, prefix, max, base int) (int, int, bool) {
	n := prefix
	for n < len(s) && n-prefix < max && isDigitIn(s[n], base) {
		n++
	}
	if n == prefix || wordFollows(s, n) {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(s[prefix:n], base, 16)
	if err != nil || v > 255 {
		return 0, 0, false
	}
	return int(v), n, true
}

// readCharLiteral reads 'c', '\c', '\ooo', '\xHH' and '\u00HH'
func readCharLiteral(s string) (int, int, bool) {
	end := strings.IndexByte(s[1:], '\'')
	// An escaped quote: '\''
	if strings.HasPrefix(s, `'\''`) {
		end = 2
	}
	if end < 1 {
		return 0, 0, false
	}
	inner := s[1 : 1+end]
	n := end + 2

	if inner[0] != '\\' {
		r, size := utf8.DecodeRuneInString(inner)
		if size != len(inner) || r == utf8.RuneError || r > 255 {
			return 0, 0, false
		}
		return int(r), n, true
	}

	esc := inner[1:]
	switch {
	case esc == "":
		return 0, 0, false
	case esc[0] == 'x' && len(esc) >= 2 && len(esc) <= 3:
		v, _, ok := readDigits(esc, 1, 2, 16)
		return v, n, ok && allDigits(esc[1:], 16)
	case strings.HasPrefix(esc, "u00") && len(esc) == 5:
		v, _, ok := readDigits(esc, 3, 2, 16)
		return v, n, ok && allDigits(esc[3:], 16)
	case isOctal(esc[0]):
		if len(esc) > 3 || !allDigits(esc, 8) {
			return 0, 0, false
		}
		v, err := strconv.ParseUint(esc, 8, 16)
		if err != nil || v > 255 {
			return 0, 0, false
		}
		return int(v), n, true
	case len(esc) == 1:
		if b, ok := escapes[esc[0]]; ok {
			return int(b), n, true
		}
		return int(esc[0]), n, true
	}
	return 0, 0, false
}

// CharForm renders a caption byte as a char literal, or as decimal when
// the byte has no printable form
func CharForm(b byte) string {
	if e, ok := escapeNames[b]; ok {
		return "'" + e + "'"
	}
	if b >= 32 && b <= 126 {
		return "'" + string(rune(b)) + "'"
	}
	return strconv.Itoa(int(b))
}

func wordFollows(s string, n int) bool {
	if n >= len(s) {
		return false
	}
	c := s[n]
	return c == '_' || c == '.' || isDecimal(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func allDigits(s string, base int) bool {
	for i := 0; i < len(s); i++ {
		if !isDigitIn(s[i], base) {
			return false
		}
	}
	return true
}

func isDigitIn(c byte, base int) bool {
	switch base {
	case 2:
		return c == '0' || c == '1'
	case 8:
		return isOctal(c)
	case 16:
		return isDecimal(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
	}
	return isDecimal(c)
}

func isDecimal(c byte) bool {
	return c >= '0' && c <= '9'
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}
