package extractor

import (
	"regexp"
	"strconv"

	"github.com/robert-at-pretension-io/rxyfmt/internal/descriptor"
)

var (
	// Pattern: <type> <name>[<count>];
	fieldPattern = regexp.MustCompile(`^\s*(bool|int8_t|uint8_t|char|int16_t|uint16_t|float)\s+([A-Za-z_]\w*)\s*(?:\[\s*(\d+)\s*\])?\s*;`)

	// Pattern: trailing whitespace after the last declaration
	residuePattern = regexp.MustCompile(`^\s*$`)

	// Legacy platform aliases, applied before field matching
	aliasPatterns = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`\bunsigned\s+char\b`), "uint8_t"},
		{regexp.MustCompile(`\bsigned\s+char\b`), "int8_t"},
	}
)

// normalizeAliases rewrites legacy type spellings to the canonical vocabulary
func normalizeAliases(body string) string {
	for _, a := range aliasPatterns {
		body = a.re.ReplaceAllString(body, a.repl)
	}
	return body
}

// matchField returns the field declared at the start of s and the number of
// bytes it spans, or nil if s does not start with a vocabulary declaration
func matchField(s string) (*descriptor.StructField, int) {
	m := fieldPattern.FindStringSubmatchIndex(s)
	if m == nil {
		return nil, 0
	}
	f := &descriptor.StructField{
		Type:  descriptor.FieldType(s[m[2]:m[3]]),
		Name:  s[m[4]:m[5]],
		Count: 1,
	}
	if m[6] >= 0 {
		n, err := strconv.Atoi(s[m[6]:m[7]])
		if err != nil {
			return nil, 0
		}
		f.Count = n
	}
	return f, m[1]
}

// isResidue reports whether s holds anything besides whitespace
func isResidue(s string) bool {
	return !residuePattern.MatchString(s)
}
