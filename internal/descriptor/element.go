package descriptor

import "fmt"

// Category is encoded in the top two bits of an element's id byte
type Category uint8

const (
	CategoryInput      Category = 0
	CategoryOutput     Category = 1
	CategoryDecoration Category = 2
)

func (c Category) String() string {
	switch c {
	case CategoryInput:
		return "input"
	case CategoryOutput:
		return "output"
	case CategoryDecoration:
		return "decoration"
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// MarshalText renders the category by name in dumps
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText reads a category written by MarshalText
func (c *Category) UnmarshalText(text []byte) error {
	switch s := string(text); s {
	case "input":
		*c = CategoryInput
	case "output":
		*c = CategoryOutput
	case "decoration":
		*c = CategoryDecoration
	default:
		var n uint8
		if _, err := fmt.Sscanf(s, "category(%d)", &n); err != nil {
			return fmt.Errorf("unknown category %q", s)
		}
		*c = Category(n)
	}
	return nil
}

// Title is the capitalised form used in element comments
func (c Category) Title() string {
	switch c {
	case CategoryInput:
		return "Input"
	case CategoryOutput:
		return "Output"
	case CategoryDecoration:
		return "Decoration"
	}
	return "Unknown"
}

// Kind names a concrete element type
type Kind string

const (
	KindButton      Kind = "button"
	KindSwitch      Kind = "switch"
	KindSelect      Kind = "select"
	KindSlider      Kind = "slider"
	KindJoystick    Kind = "joystick"
	KindColorPicker Kind = "colorPicker"
	KindEditField   Kind = "editField"
	KindLED         Kind = "led"
	KindLevel       Kind = "level"
	KindTextString  Kind = "textString"
	KindOnlineGraph Kind = "onlineGraph"
	KindSound       Kind = "sound"
	KindLabel       Kind = "label"
	KindPanel       Kind = "panel"
	KindPage        Kind = "page"
)

// BoolLike reports whether the kind's value is a plain on/off state
func (k Kind) BoolLike() bool {
	return k == KindButton || k == KindSwitch
}

// Rect is one geometry quadruple
type Rect struct {
	X uint8 `json:"x" yaml:"x"`
	Y uint8 `json:"y" yaml:"y"`
	W uint8 `json:"w" yaml:"w"`
	H uint8 `json:"h" yaml:"h"`
}

// Attr is one decoded kind-specific property, kept in read order
type Attr struct {
	Name  string `json:"name" yaml:"name"`
	Value int    `json:"value" yaml:"value"`
}

// TextRun is a null-terminated caption inside an element's bytes.
// Start and End are absolute byte offsets; End is the terminator's offset.
type TextRun struct {
	Start int      `json:"start" yaml:"start"`
	End   int      `json:"end" yaml:"end"`
	Text  string   `json:"text" yaml:"text"`
	Chars []string `json:"chars" yaml:"chars"`
}

// Binding describes the struct storage an element needs and, once
// correlated, the fields it was bound to.
type Binding struct {
	Type  FieldType `json:"type" yaml:"type"`
	Alt   FieldType `json:"alt,omitempty" yaml:"alt,omitempty"`
	Count int       `json:"count" yaml:"count"`

	// Name is the single field name, or the base name of a split binding.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Names holds one synthesized or consumed name per slot.
	Names []string `json:"names,omitempty" yaml:"names,omitempty"`
}

// Size returns the binding's byte width
func (b *Binding) Size() int {
	return b.Count * b.Type.Width()
}

// Accepts reports whether a struct field of type t may hold this binding
func (b *Binding) Accepts(t FieldType) bool {
	return t == b.Type || (b.Alt != "" && t == b.Alt)
}

// Element is one decoded control or decoration
type Element struct {
	Category  Category `json:"category" yaml:"category"`
	TypeCode  uint8    `json:"type_code" yaml:"type_code"`
	Kind      Kind     `json:"kind" yaml:"kind"`
	ID        uint8    `json:"id" yaml:"id"`
	Flags     uint8    `json:"flags" yaml:"flags"`
	Geometry  Rect     `json:"geometry" yaml:"geometry"`
	Secondary *Rect    `json:"secondary,omitempty" yaml:"secondary,omitempty"`
	PageID    *uint8   `json:"page_id,omitempty" yaml:"page_id,omitempty"`

	// Ordinal numbers labels and panels from 1 in array order.
	Ordinal int `json:"ordinal,omitempty" yaml:"ordinal,omitempty"`

	Attrs   []Attr    `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Texts   []TextRun `json:"texts,omitempty" yaml:"texts,omitempty"`
	Binding *Binding  `json:"binding,omitempty" yaml:"binding,omitempty"`

	// Start and End are absolute offsets of the element's first and last
	// byte in the array, both inclusive.
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Attr returns a decoded property by name
func (e *Element) Attr(name string) (int, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return 0, false
}

// Len returns the element's byte length
func (e *Element) Len() int {
	return e.End - e.Start + 1
}

// Bound reports whether the element holds a correlated struct binding
func (e *Element) Bound() bool {
	return e.Binding != nil && e.Binding.Name != ""
}
