package descriptor

// =============================================================================
// DESCRIPTOR MODEL
// =============================================================================
//
// A descriptor is one generated UI screen: a packed uint8_t array that lists
// every control, and a struct whose fields hold the controls' live values.
// The extractor produces StructDefs, the decoder produces ArrayDefs, the
// correlator binds the two into BoundPairs, and the formatter renders them.
//
// Every entity is rebuilt on each parse of a text unit. The formatter only
// ever works on a Clone of the Model, never on the parsed original.
// =============================================================================

import "fmt"

// FieldType is one of the scalar types a descriptor struct may declare
type FieldType string

const (
	TypeBool   FieldType = "bool"
	TypeInt8   FieldType = "int8_t"
	TypeUint8  FieldType = "uint8_t"
	TypeChar   FieldType = "char"
	TypeInt16  FieldType = "int16_t"
	TypeUint16 FieldType = "uint16_t"
	TypeFloat  FieldType = "float"
)

// Width returns the storage size of the type in bytes, or 0 if unknown
func (t FieldType) Width() int {
	switch t {
	case TypeBool, TypeInt8, TypeUint8, TypeChar:
		return 1
	case TypeInt16, TypeUint16:
		return 2
	case TypeFloat:
		return 4
	}
	return 0
}

// Valid reports whether t belongs to the closed field vocabulary
func (t FieldType) Valid() bool {
	return t.Width() > 0
}

// Span is a half-open byte range [Start, End) into the original text
type Span struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Len returns the span length in bytes
func (s Span) Len() int {
	return s.End - s.Start
}

// StructField is one declaration inside a descriptor struct
type StructField struct {
	Type  FieldType `json:"type" yaml:"type"`
	Name  string    `json:"name" yaml:"name"`
	Count int       `json:"count" yaml:"count"`
}

// Size returns the field's byte size
func (f *StructField) Size() int {
	return f.Count * f.Type.Width()
}

// StructDef is a struct-shaped region found in the source
type StructDef struct {
	Span       Span           `json:"span" yaml:"span"`
	TypeName   string         `json:"type_name" yaml:"type_name"`
	ObjectName string         `json:"object_name" yaml:"object_name"`
	ObjectSize string         `json:"object_size,omitempty" yaml:"object_size,omitempty"`
	Fields     []*StructField `json:"fields" yaml:"fields"`
	TotalSize  int            `json:"total_size_bytes" yaml:"total_size_bytes"`

	// Opaque is set when the field list holds declarations outside the
	// vocabulary. Such a struct is never bound.
	Opaque bool `json:"opaque,omitempty" yaml:"opaque,omitempty"`

	// OtherFieldsStart is the index of the first field not bound to an
	// element, or -1 while the struct is unbound.
	OtherFieldsStart int `json:"other_fields_start" yaml:"other_fields_start"`
}

// OtherFields returns the fields left for application state
func (s *StructDef) OtherFields() []*StructField {
	if s.OtherFieldsStart < 0 || s.OtherFieldsStart > len(s.Fields) {
		return nil
	}
	return s.Fields[s.OtherFieldsStart:]
}

// Marker returns the reserved field that follows the UI-bound fields
func (s *StructDef) Marker() *StructField {
	other := s.OtherFields()
	if len(other) == 0 {
		return nil
	}
	return other[0]
}

// Label names the struct for diagnostics
func (s *StructDef) Label() string {
	switch {
	case s.ObjectName != "":
		return s.ObjectName
	case s.TypeName != "":
		return "struct " + s.TypeName
	}
	return fmt.Sprintf("anonymous struct at %d", s.Span.Start)
}

// ViewOrientation selects how many geometry quadruples each element carries
type ViewOrientation uint8

const (
	OrientationHorizontal ViewOrientation = 0
	OrientationVertical   ViewOrientation = 1
	OrientationBoth       ViewOrientation = 2
)

func (o ViewOrientation) String() string {
	switch o {
	case OrientationHorizontal:
		return "horizontal"
	case OrientationVertical:
		return "vertical"
	case OrientationBoth:
		return "both"
	}
	return fmt.Sprintf("orientation(%d)", uint8(o))
}

// MarshalText renders the orientation by name in dumps
func (o ViewOrientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText reads an orientation written by MarshalText
func (o *ViewOrientation) UnmarshalText(text []byte) error {
	switch s := string(text); s {
	case "horizontal":
		*o = OrientationHorizontal
	case "vertical":
		*o = OrientationVertical
	case "both":
		*o = OrientationBoth
	default:
		var n uint8
		if _, err := fmt.Sscanf(s, "orientation(%d)", &n); err != nil {
			return fmt.Errorf("unknown view orientation %q", s)
		}
		*o = ViewOrientation(n)
	}
	return nil
}

// HeaderSize is the fixed length of an array header in bytes
const HeaderSize = 10

// Sentinel is the value every descriptor array starts with
const Sentinel = 255

// ArrayHeader is decoded from the first HeaderSize bytes of an array
type ArrayHeader struct {
	TotalInputBytes  int             `json:"total_input_bytes" yaml:"total_input_bytes"`
	TotalOutputBytes int             `json:"total_output_bytes" yaml:"total_output_bytes"`
	ConfigLength     int             `json:"config_length" yaml:"config_length"`
	Version          uint8           `json:"version" yaml:"version"`
	BackgroundColor  uint8           `json:"background_color" yaml:"background_color"`
	ViewOrientation  ViewOrientation `json:"view_orientation" yaml:"view_orientation"`
	PagesEnabled     bool            `json:"pages_enabled" yaml:"pages_enabled"`
}

// PairSize is the struct size an array needs: inputs, outputs and the
// reserved marker byte.
func (h ArrayHeader) PairSize() int {
	return h.TotalInputBytes + h.TotalOutputBytes + 1
}

// ArrayDef is an accepted descriptor array
type ArrayDef struct {
	Span       Span     `json:"span" yaml:"span"`
	Qualifiers []string `json:"qualifiers,omitempty" yaml:"qualifiers,omitempty"`
	Name       string   `json:"name" yaml:"name"`

	// DeclaredSize is the bracket length as written, or -1 for "[]".
	DeclaredSize int `json:"declared_size" yaml:"declared_size"`

	// Literals holds every value as written, negatives included.
	Literals []int `json:"-" yaml:"-"`
	// Bytes holds the two's-complement byte of every literal.
	Bytes []byte `json:"-" yaml:"-"`

	Header   ArrayHeader `json:"header" yaml:"header"`
	Elements []*Element  `json:"elements" yaml:"elements"`
}

// Inputs returns the input elements in array order
func (a *ArrayDef) Inputs() []*Element {
	return a.byCategory(CategoryInput)
}

// Outputs returns the output elements in array order
func (a *ArrayDef) Outputs() []*Element {
	return a.byCategory(CategoryOutput)
}

func (a *ArrayDef) byCategory(c Category) []*Element {
	var out []*Element
	for _, e := range a.Elements {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

// BoundPair is an array bound to the struct that stores its values
type BoundPair struct {
	Array  *ArrayDef  `json:"array" yaml:"array"`
	Struct *StructDef `json:"struct" yaml:"struct"`
}

// Model is everything decoded from one text unit
type Model struct {
	Structs []*StructDef `json:"structs" yaml:"structs"`
	Arrays  []*ArrayDef  `json:"arrays" yaml:"arrays"`
	Pairs   []*BoundPair `json:"pairs" yaml:"pairs"`
}
