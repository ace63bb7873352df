package decoder

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/robert-at-pretension-io/rxyfmt/internal/descriptor"
)

// Edit field sub-kinds, flags bits 3-4
const (
	editText    = 0
	editFloat   = 1
	editInteger = 2
)

type kindSpec struct {
	kind   descriptor.Kind
	decode func(c *decodeContext, e *descriptor.Element) error
}

var kinds = map[descriptor.Category]map[uint8]kindSpec{
	descriptor.CategoryInput: {
		1: {descriptor.KindButton, decodeButton},
		2: {descriptor.KindSwitch, decodeSwitch},
		3: {descriptor.KindSelect, decodeSelect},
		4: {descriptor.KindSlider, decodeSlider},
		5: {descriptor.KindJoystick, decodeJoystick},
		6: {descriptor.KindColorPicker, decodeColorPicker},
		7: {descriptor.KindEditField, decodeEditField},
	},
	descriptor.CategoryOutput: {
		1: {descriptor.KindLED, decodeLED},
		2: {descriptor.KindLevel, decodeLevel},
		3: {descriptor.KindTextString, decodeTextString},
		4: {descriptor.KindOnlineGraph, decodeOnlineGraph},
		5: {descriptor.KindSound, decodeSound},
	},
	descriptor.CategoryDecoration: {
		1: {descriptor.KindLabel, decodeLabel},
		2: {descriptor.KindPanel, decodePanel},
		3: {descriptor.KindPage, decodePage},
	},
}

func lookupKind(cat descriptor.Category, code uint8) (kindSpec, bool) {
	spec, ok := kinds[cat][code]
	return spec, ok
}

// flag records a bit field of the flags byte
func flag(e *descriptor.Element, name string, mask uint8) {
	v := e.Flags & mask
	v >>= uint(bits.TrailingZeros8(mask))
	e.Attrs = append(e.Attrs, descriptor.Attr{Name: name, Value: int(v)})
}

// attrs reads one byte per name and records it
func attrs(c *decodeContext, e *descriptor.Element, names ...string) error {
	for _, name := range names {
		b, err := c.next()
		if err != nil {
			return err
		}
		e.Attrs = append(e.Attrs, descriptor.Attr{Name: name, Value: int(b)})
	}
	return nil
}

// caption reads one null-terminated text run
func caption(c *decodeContext, e *descriptor.Element) error {
	start := c.offset
	end := start
	for end < len(c.data) && c.data[end] != 0 {
		end++
	}
	if end >= len(c.data) {
		return fmt.Errorf("%w: caption at offset %d has no terminator", ErrTruncated, start)
	}

	raw := c.data[start:end]
	chars := make([]string, len(raw))
	for i, b := range raw {
		chars[i] = CharForm(b)
	}
	e.Texts = append(e.Texts, descriptor.TextRun{
		Start: start,
		End:   end,
		Text:  strings.ToValidUTF8(string(raw), "�"),
		Chars: chars,
	})
	c.offset = end + 1
	return nil
}

func bind(e *descriptor.Element, t descriptor.FieldType, count int) {
	e.Binding = &descriptor.Binding{Type: t, Count: count}
}

func decodeButton(c *decodeContext, e *descriptor.Element) error {
	flag(e, "shape", 0b0000_0011)
	flag(e, "border_style", 0b0000_1100)
	if err := attrs(c, e, "background_color", "text_color"); err != nil {
		return err
	}
	if err := caption(c, e); err != nil {
		return err
	}
	e.Binding = &descriptor.Binding{Type: descriptor.TypeUint8, Alt: descriptor.TypeBool, Count: 1}
	return nil
}

func decodeSwitch(c *decodeContext, e *descriptor.Element) error {
	flag(e, "shape", 0b0000_0011)
	if err := attrs(c, e, "button_color", "background_color", "text_on_color", "text_off_color"); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		if err := caption(c, e); err != nil {
			return err
		}
	}
	e.Binding = &descriptor.Binding{Type: descriptor.TypeUint8, Alt: descriptor.TypeBool, Count: 1}
	return nil
}

func decodeSelect(c *decodeContext, e *descriptor.Element) error {
	flag(e, "options_count", 0b0000_0111)
	flag(e, "orientation", 0b1000_0000)
	if err := attrs(c, e, "button_color", "background_color"); err != nil {
		return err
	}
	bind(e, descriptor.TypeUint8, 1)
	return nil
}

func decodeSlider(c *decodeContext, e *descriptor.Element) error {
	flag(e, "always_center", 0b0001_0000)
	flag(e, "center_position", 0b0110_0000)
	flag(e, "orientation", 0b1000_0000)
	if err := attrs(c, e, "button_color", "background_color"); err != nil {
		return err
	}
	bind(e, descriptor.TypeInt8, 1)
	return nil
}

func decodeJoystick(c *decodeContext, e *descriptor.Element) error {
	flag(e, "buttons_positions", 0b0001_1111)
	flag(e, "automatic_center", 0b0010_0000)
	if err := attrs(c, e, "button_color", "background_color", "text_color"); err != nil {
		return err
	}
	bind(e, descriptor.TypeInt8, 2)
	return nil
}

func decodeColorPicker(c *decodeContext, e *descriptor.Element) error {
	if err := attrs(c, e, "button_color", "background_color"); err != nil {
		return err
	}
	bind(e, descriptor.TypeUint8, 3)
	return nil
}

func decodeEditField(c *decodeContext, e *descriptor.Element) error {
	flag(e, "alignment", 0b0000_0011)
	flag(e, "show_background", 0b0000_0100)
	flag(e, "input_type", 0b0001_1000)
	flag(e, "show_clear_button", 0b0010_0000)
	if err := attrs(c, e, "text_color", "background_color", "button_color"); err != nil {
		return err
	}

	sub, _ := e.Attr("input_type")
	switch sub {
	case editText:
		if err := attrs(c, e, "max_text_length"); err != nil {
			return err
		}
		n, _ := e.Attr("max_text_length")
		bind(e, descriptor.TypeChar, n)
	case editFloat:
		if err := attrs(c, e, "max_decimals"); err != nil {
			return err
		}
		bind(e, descriptor.TypeFloat, 1)
	case editInteger:
		bind(e, descriptor.TypeInt16, 1)
	default:
		return fmt.Errorf("%w: edit field input type %d", ErrUnknownElement, sub)
	}
	return nil
}

func decodeLED(c *decodeContext, e *descriptor.Element) error {
	flag(e, "rgb_channels", 0b0000_0111)
	flag(e, "shape", 0b0000_1000)
	flag(e, "border", 0b0011_0000)
	bind(e, descriptor.TypeUint8, bits.OnesCount8(e.Flags&0b111))
	return nil
}

func decodeLevel(c *decodeContext, e *descriptor.Element) error {
	flag(e, "level_type", 0b0000_0111)
	flag(e, "center_position", 0b0110_0000)
	flag(e, "orientation", 0b1000_0000)
	if err := attrs(c, e, "color", "background_color"); err != nil {
		return err
	}
	bind(e, descriptor.TypeInt8, 1)
	return nil
}

func decodeTextString(c *decodeContext, e *descriptor.Element) error {
	flag(e, "alignment", 0b0000_0011)
	flag(e, "show_background", 0b0000_0100)
	if err := attrs(c, e, "text_color", "background_color", "max_text_length"); err != nil {
		return err
	}
	n, _ := e.Attr("max_text_length")
	bind(e, descriptor.TypeChar, n)
	return nil
}

func decodeOnlineGraph(c *decodeContext, e *descriptor.Element) error {
	flag(e, "values_count", 0b0000_1111)
	flag(e, "show_values", 0b0001_0000)
	flag(e, "show_legends", 0b0010_0000)
	if err := attrs(c, e, "background_color"); err != nil {
		return err
	}
	n, _ := e.Attr("values_count")
	for i := 1; i <= n; i++ {
		if err := attrs(c, e, fmt.Sprintf("color_%d", i)); err != nil {
			return err
		}
	}
	if legends, _ := e.Attr("show_legends"); legends == 1 {
		for i := 0; i < n; i++ {
			if err := caption(c, e); err != nil {
				return err
			}
		}
	}
	bind(e, descriptor.TypeFloat, n)
	return nil
}

func decodeSound(c *decodeContext, e *descriptor.Element) error {
	flag(e, "hide", 0b0000_0001)
	if hide, _ := e.Attr("hide"); hide == 0 {
		if err := attrs(c, e, "color"); err != nil {
			return err
		}
	}
	bind(e, descriptor.TypeInt16, 1)
	return nil
}

func decodeLabel(c *decodeContext, e *descriptor.Element) error {
	if err := attrs(c, e, "text_color"); err != nil {
		return err
	}
	return caption(c, e)
}

func decodePanel(c *decodeContext, e *descriptor.Element) error {
	flag(e, "bevel", 0b0000_0011)
	return attrs(c, e, "color")
}

func decodePage(c *decodeContext, e *descriptor.Element) error {
	flag(e, "main_page", 0b0000_0001)
	flag(e, "border", 0b0000_0110)
	if err := attrs(c, e, "background_color", "text_color"); err != nil {
		return err
	}
	return caption(c, e)
}
