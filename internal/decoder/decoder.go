package decoder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/rxyfmt/internal/descriptor"
	"github.com/robert-at-pretension-io/rxyfmt/internal/extractor"
)

var (
	// ErrSentinel means the first literal is not 255
	ErrSentinel = errors.New("header sentinel is not 255")
	// ErrLength means the literal count disagrees with the header or the
	// declared array length, or the element loop did not end on the last byte
	ErrLength = errors.New("array length mismatch")
	// ErrByteCount means the element bindings disagree with the header totals
	ErrByteCount = errors.New("element byte count mismatch")
	// ErrTruncated means an element reads past the end of the array
	ErrTruncated = errors.New("element truncated")
	// ErrUnknownElement means an element kind or sub-kind is not recognised
	ErrUnknownElement = errors.New("unknown element")
)

// decodeContext is a read cursor over the array bytes
type decodeContext struct {
	data   []byte
	offset int
}

// remaining returns the number of unread bytes
func (c *decodeContext) remaining() int {
	return len(c.data) - c.offset
}

// next reads one byte and advances the offset
func (c *decodeContext) next() (uint8, error) {
	if c.offset >= len(c.data) {
		return 0, fmt.Errorf("%w: need 1 byte at offset %d", ErrTruncated, c.offset)
	}
	b := c.data[c.offset]
	c.offset++
	return b, nil
}

// rect reads one geometry quadruple
func (c *decodeContext) rect() (descriptor.Rect, error) {
	var v [4]uint8
	for i := range v {
		b, err := c.next()
		if err != nil {
			return descriptor.Rect{}, err
		}
		v[i] = b
	}
	return descriptor.Rect{X: v[0], Y: v[1], W: v[2], H: v[3]}, nil
}

// Decode tokenizes an array region, validates its header and decodes every
// element record. The returned error wraps one of the package sentinels.
func Decode(r extractor.ArrayRegion) (*descriptor.ArrayDef, error) {
	lits := Tokenize(r.Body)
	if len(lits) == 0 || lits[0] != descriptor.Sentinel {
		return nil, ErrSentinel
	}
	if len(lits) < descriptor.HeaderSize {
		return nil, fmt.Errorf("%w: %d literals is shorter than the header", ErrLength, len(lits))
	}

	bytes := make([]byte, len(lits))
	for i, v := range lits {
		bytes[i] = byte(v & 0xff)
	}

	a := &descriptor.ArrayDef{
		Span:         r.Span,
		Qualifiers:   r.Qualifiers,
		Name:         r.Name,
		DeclaredSize: -1,
		Literals:     lits,
		Bytes:        bytes,
		Header:       decodeHeader(bytes),
	}

	if want := a.Header.ConfigLength + 7; len(lits) != want {
		return nil, fmt.Errorf("%w: %d literals, header says %d", ErrLength, len(lits), want)
	}
	if r.SizeText != "" {
		n, err := strconv.Atoi(strings.TrimSpace(r.SizeText))
		if err != nil || n != len(lits) {
			return nil, fmt.Errorf("%w: declared [%s], found %d literals", ErrLength, r.SizeText, len(lits))
		}
		a.DeclaredSize = n
	}

	c := &decodeContext{data: bytes, offset: descriptor.HeaderSize}
	ordinals := map[descriptor.Kind]int{}
	for c.offset < len(bytes)-1 {
		e, err := decodeElement(c, a.Header)
		if err != nil {
			return nil, err
		}
		if e.Category == descriptor.CategoryDecoration {
			ordinals[e.Kind]++
			e.Ordinal = ordinals[e.Kind]
		}
		a.Elements = append(a.Elements, e)
	}
	if c.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d byte(s) after the last element", ErrLength, c.remaining())
	}

	in, out := sumBindings(a.Elements)
	if in != a.Header.TotalInputBytes || out != a.Header.TotalOutputBytes {
		return nil, fmt.Errorf("%w: elements need %d/%d input/output bytes, header says %d/%d",
			ErrByteCount, in, out, a.Header.TotalInputBytes, a.Header.TotalOutputBytes)
	}
	return a, nil
}

// decodeHeader reads the fixed header fields
func decodeHeader(b []byte) descriptor.ArrayHeader {
	return descriptor.ArrayHeader{
		TotalInputBytes:  int(b[1]) | int(b[2])<<8,
		TotalOutputBytes: int(b[3]) | int(b[4])<<8,
		ConfigLength:     int(b[5]) | int(b[6])<<8,
		Version:          b[7],
		BackgroundColor:  b[8],
		ViewOrientation:  descriptor.ViewOrientation(b[9] & 0b011),
		PagesEnabled:     b[9]&0b100 != 0,
	}
}

// decodeElement reads one element record at the cursor
func decodeElement(c *decodeContext, h descriptor.ArrayHeader) (*descriptor.Element, error) {
	start := c.offset
	id, err := c.next()
	if err != nil {
		return nil, err
	}
	flags, err := c.next()
	if err != nil {
		return nil, err
	}
	e := &descriptor.Element{
		Category: descriptor.Category(id >> 6),
		TypeCode: id & 0x0F,
		ID:       id,
		Flags:    flags,
		Start:    start,
	}

	if e.Geometry, err = c.rect(); err != nil {
		return nil, err
	}
	if h.ViewOrientation == descriptor.OrientationBoth {
		r, err := c.rect()
		if err != nil {
			return nil, err
		}
		e.Secondary = &r
	}
	if h.PagesEnabled {
		p, err := c.next()
		if err != nil {
			return nil, err
		}
		e.PageID = &p
	}

	spec, ok := lookupKind(e.Category, e.TypeCode)
	if !ok {
		return nil, fmt.Errorf("%w: id %d (category %d, type %d) at offset %d",
			ErrUnknownElement, id, e.Category, e.TypeCode, start)
	}
	e.Kind = spec.kind
	if err := spec.decode(c, e); err != nil {
		return nil, fmt.Errorf("%s at offset %d: %w", spec.kind, start, err)
	}
	e.End = c.offset - 1
	return e, nil
}

// sumBindings returns the input and output byte totals of all bindings
func sumBindings(elements []*descriptor.Element) (int, int) {
	var in, out int
	for _, e := range elements {
		if e.Binding == nil {
			continue
		}
		switch e.Category {
		case descriptor.CategoryInput:
			in += e.Binding.Size()
		case descriptor.CategoryOutput:
			out += e.Binding.Size()
		}
	}
	return in, out
}
