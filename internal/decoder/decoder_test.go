package decoder

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/rxyfmt/internal/descriptor"
	"github.com/robert-at-pretension-io/rxyfmt/internal/extractor"
)

// sketchConf holds one button, switch, slider, joystick, two-channel LED,
// text string and label
const sketchConf = `255,5,0,13,0,72,0,16,31,1,1,0,5,5,12,12,2,31,65,0,
  2,0,20,5,22,11,2,26,31,31,79,78,0,79,70,70,0,4,0,5,
  20,50,8,2,26,5,32,5,30,30,30,2,26,31,65,6,40,30,9,9,
  67,0,5,62,40,6,2,26,11,129,0,5,70,20,6,31,72,105,0`

// pagedConf uses both orientations and pages: a main page and a graph with
// two legends
const pagedConf = `255,0,0,8,0,36,0,16,31,6,
  131,1,0,0,100,100,0,0,100,100,1,12,31,80,0,
  68,34,5,5,50,30,5,5,30,50,1,26,8,135,97,0,98,0`

func region(body string) extractor.ArrayRegion {
	return extractor.ArrayRegion{Name: "RemoteXY_CONF", Body: body}
}

func mustDecode(t *testing.T, r extractor.ArrayRegion) *descriptor.ArrayDef {
	t.Helper()
	a, err := Decode(r)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return a
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []int
	}{
		{"all forms", `255, 0x1F, 'A', '\n', B101, 0b11, '\x41', 'A', '\101', -1,`, []int{255, 31, 65, 10, 5, 3, 65, 65, 65, -1}},
		{"escapes", `'\'', '\\', '\0', '\?', '\a', '\v', '\q'`, []int{39, 92, 0, 63, 7, 11, 'q'}},
		{"comma char", `',', 1`, []int{44, 1}},
		{"spaced negative", `- 5, 2`, []int{-5, 2}},
		{"stops at identifier", `1, 2, foo, 3`, []int{1, 2}},
		{"stops above 255", `1, 256, 3`, []int{1}},
		{"stops at leading zero", `1, 007`, []int{1}},
		{"stops at long hex", `1, 0x123`, []int{1}},
		{"stops at suffix", `1, 2u`, []int{1}},
		{"stops at missing comma", `1 2`, []int{1}},
		{"empty", ``, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Tokenize(tt.body); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Tokenize(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func TestCharForm(t *testing.T) {
	tests := map[byte]string{
		'A':  "'A'",
		' ':  "' '",
		0:    `'\0'`,
		'\'': `'\''`,
		'\\': `'\\'`,
		'\n': `'\n'`,
		200:  "200",
		127:  "127",
		1:    "1",
	}
	for b, want := range tests {
		if got := CharForm(b); got != want {
			t.Errorf("CharForm(%d) = %s, want %s", b, got, want)
		}
	}
}

func TestDecodeSketch(t *testing.T) {
	a := mustDecode(t, region(sketchConf))

	h := a.Header
	if h.TotalInputBytes != 5 || h.TotalOutputBytes != 13 || h.ConfigLength != 72 {
		t.Fatalf("unexpected header totals: %+v", h)
	}
	if h.Version != 16 || h.BackgroundColor != 31 || h.ViewOrientation != descriptor.OrientationVertical || h.PagesEnabled {
		t.Fatalf("unexpected header fields: %+v", h)
	}
	if a.DeclaredSize != -1 {
		t.Fatalf("unsized array should report -1, got %d", a.DeclaredSize)
	}

	wantKinds := []descriptor.Kind{
		descriptor.KindButton, descriptor.KindSwitch, descriptor.KindSlider, descriptor.KindJoystick,
		descriptor.KindLED, descriptor.KindTextString, descriptor.KindLabel,
	}
	if len(a.Elements) != len(wantKinds) {
		t.Fatalf("expected %d elements, got %d", len(wantKinds), len(a.Elements))
	}
	for i, e := range a.Elements {
		if e.Kind != wantKinds[i] {
			t.Errorf("element %d kind = %s, want %s", i, e.Kind, wantKinds[i])
		}
	}

	button := a.Elements[0]
	if button.Start != 10 || button.End != 19 || button.Len() != 10 {
		t.Fatalf("button span = [%d,%d]", button.Start, button.End)
	}
	if len(button.Texts) != 1 || button.Texts[0].Text != "A" || button.Texts[0].Start != 18 || button.Texts[0].End != 19 {
		t.Fatalf("unexpected button caption: %+v", button.Texts)
	}
	if b := button.Binding; b.Type != descriptor.TypeUint8 || b.Alt != descriptor.TypeBool || b.Count != 1 {
		t.Fatalf("unexpected button binding: %+v", b)
	}

	sw := a.Elements[1]
	if len(sw.Texts) != 2 || sw.Texts[0].Text != "ON" || sw.Texts[1].Text != "OFF" {
		t.Fatalf("unexpected switch captions: %+v", sw.Texts)
	}

	joy := a.Elements[3]
	if auto, _ := joy.Attr("automatic_center"); auto != 1 {
		t.Fatalf("joystick automatic_center = %d, want 1", auto)
	}
	if joy.Binding.Type != descriptor.TypeInt8 || joy.Binding.Count != 2 {
		t.Fatalf("unexpected joystick binding: %+v", joy.Binding)
	}

	led := a.Elements[4]
	if rgb, _ := led.Attr("rgb_channels"); rgb != 6 {
		t.Fatalf("rgb_channels = %d, want 6", rgb)
	}
	if led.Binding.Count != 2 {
		t.Fatalf("two enabled channels should need 2 bytes, got %d", led.Binding.Count)
	}

	text := a.Elements[5]
	if text.Binding.Type != descriptor.TypeChar || text.Binding.Count != 11 {
		t.Fatalf("unexpected text binding: %+v", text.Binding)
	}

	label := a.Elements[6]
	if label.Binding != nil || label.Ordinal != 1 || label.Texts[0].Text != "Hi" {
		t.Fatalf("unexpected label: %+v", label)
	}
}

func TestDecodePagedGraph(t *testing.T) {
	a := mustDecode(t, region(pagedConf))

	if a.Header.ViewOrientation != descriptor.OrientationBoth || !a.Header.PagesEnabled {
		t.Fatalf("unexpected header flags: %+v", a.Header)
	}
	if len(a.Elements) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(a.Elements))
	}

	page := a.Elements[0]
	if page.Kind != descriptor.KindPage || page.Secondary == nil || page.PageID == nil || *page.PageID != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if main, _ := page.Attr("main_page"); main != 1 {
		t.Fatalf("expected main page flag")
	}

	graph := a.Elements[1]
	if graph.Kind != descriptor.KindOnlineGraph {
		t.Fatalf("expected online graph, got %s", graph.Kind)
	}
	if c2, _ := graph.Attr("color_2"); c2 != 135 {
		t.Fatalf("color_2 = %d, want 135", c2)
	}
	if len(graph.Texts) != 2 || graph.Texts[0].Text != "a" || graph.Texts[1].Text != "b" {
		t.Fatalf("unexpected legends: %+v", graph.Texts)
	}
	if graph.Binding.Type != descriptor.TypeFloat || graph.Binding.Count != 2 {
		t.Fatalf("unexpected graph binding: %+v", graph.Binding)
	}
	if graph.End != 42 {
		t.Fatalf("graph should end on the last byte, got %d", graph.End)
	}
}

func TestDecodeEditFieldKinds(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		typ   descriptor.FieldType
		count int
		err   error
	}{
		// text, max length 4
		{"text", "255,4,0,0,0,13,0,16,31,0,7,0,1,1,20,8,2,26,31,4", descriptor.TypeChar, 4, nil},
		// float, 2 decimals
		{"float", "255,4,0,0,0,13,0,16,31,0,7,8,1,1,20,8,2,26,31,2", descriptor.TypeFloat, 1, nil},
		// integer reads no extra byte
		{"integer", "255,2,0,0,0,12,0,16,31,0,7,16,1,1,20,8,2,26,31", descriptor.TypeInt16, 1, nil},
		// sub-kind 3 is unknown
		{"unknown", "255,2,0,0,0,12,0,16,31,0,7,24,1,1,20,8,2,26,31", "", 0, ErrUnknownElement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Decode(region(tt.body))
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			b := a.Elements[0].Binding
			if b.Type != tt.typ || b.Count != tt.count {
				t.Fatalf("binding = %+v, want %s x%d", b, tt.typ, tt.count)
			}
		})
	}
}

func TestDecodeRejections(t *testing.T) {
	tests := []struct {
		name string
		r    extractor.ArrayRegion
		err  error
	}{
		{"sentinel zero", region("0" + sketchConf[3:]), ErrSentinel},
		{"sentinel negative", region("-1" + sketchConf[3:]), ErrSentinel},
		{"empty", region(""), ErrSentinel},
		{"short header", region("255,0,0,0,0"), ErrLength},
		{"header length", region(strings.Replace(sketchConf, "72,0", "71,0", 1)), ErrLength},
		{"declared length", extractor.ArrayRegion{Body: sketchConf, SizeText: "80"}, ErrLength},
		{"input total", region(strings.Replace(sketchConf, "255,5,0", "255,6,0", 1)), ErrByteCount},
		{"output total", region(strings.Replace(sketchConf, "13,0,72", "12,0,72", 1)), ErrByteCount},
		{"unknown kind", region("255,0,0,0,0,9,0,16,31,0,9,0,1,1,1,1"), ErrUnknownElement},
		{"truncated", region("255,1,0,0,0,8,0,16,31,0,4,0,1,1,1"), ErrTruncated},
		{"open caption", region("255,0,0,0,0,11,0,16,31,0,129,0,1,1,1,1,31,65"), ErrTruncated},
		{"tokenizer stop", region(strings.Replace(sketchConf, "79,78", "79,x", 1)), ErrLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Decode(tt.r)
			if a != nil {
				t.Fatalf("expected rejection, got %+v", a)
			}
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
		})
	}
}

func TestDecodeDeclaredSize(t *testing.T) {
	a := mustDecode(t, extractor.ArrayRegion{Body: sketchConf, SizeText: "79"})
	if a.DeclaredSize != 79 {
		t.Fatalf("declared size = %d, want 79", a.DeclaredSize)
	}
}

func TestDecodeNegativeLiterals(t *testing.T) {
	body := strings.Replace(sketchConf, "20,50,8,2,26", "20,50,8,-254,26", 1)
	a := mustDecode(t, region(body))
	slider := a.Elements[2]
	idx := slider.Start + 6
	if a.Literals[idx] != -254 || a.Bytes[idx] != 2 {
		t.Fatalf("literal %d / byte %d, want -254 / 2", a.Literals[idx], a.Bytes[idx])
	}
}

func TestConservation(t *testing.T) {
	for _, body := range []string{sketchConf, pagedConf} {
		a := mustDecode(t, region(body))
		var in, out int
		for _, e := range a.Inputs() {
			in += e.Binding.Size()
		}
		for _, e := range a.Outputs() {
			out += e.Binding.Size()
		}
		if in != a.Header.TotalInputBytes || out != a.Header.TotalOutputBytes {
			t.Fatalf("bindings %d/%d do not match header %d/%d", in, out, a.Header.TotalInputBytes, a.Header.TotalOutputBytes)
		}
	}
}
