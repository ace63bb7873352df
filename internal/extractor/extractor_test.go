package extractor

import (
	"context"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/rxyfmt/internal/descriptor"
)

const sketch = `#define REMOTEXY_MODE__HARDSERIAL

#include <RemoteXY.h>

// RemoteXY configurate
#pragma pack(push, 1)
uint8_t RemoteXY_CONF[] =   // 79 bytes
  { 255,5,0,13,0,72,0,16,31,1,1,0,5,5,12,12,2,31,65,0,
  2,0,20,5,22,11,2,26,31,31,79,78,0,79,70,70,0,4,0,5,
  20,50,8,2,26,5,32,5,30,30,30,2,26,31,65,6,40,30,9,9,
  67,0,5,62,40,6,2,26,11,129,0,5,70,20,6,31,72,105,0 };

// this structure defines all the variables and events of your control interface
struct {

    // input variables
  uint8_t button_1; // =1 if button pressed, else =0
  uint8_t switch_1; // =1 if switch ON and =0 if OFF
  int8_t slider_1; // =0..100 slider position
  int8_t joystick_1_x; // from -100 to 100
  int8_t joystick_1_y; /* from -100 to 100 */

    // output variables
  uint8_t led_1_r; // =0..255 LED Red brightness
  uint8_t led_1_g; // =0..255 LED Green brightness
  char text_1[11];  // string UTF8 end zero

    // other variable
  uint8_t connect_flag;  // =1 if wire connected, else =0

} RemoteXY;
#pragma pack(pop)

void setup()
{
  RemoteXY_Init ();
}

void loop()
{
  RemoteXY_Handler ();
  if (RemoteXY.button_1 == 1) RemoteXY.led_1_r = 255;
}
`

func extractors() map[string]*Extractor {
	return map[string]*Extractor{
		"tree-sitter": New(),
		"lexer":       NewSimple(),
	}
}

func scanText(t *testing.T, e *Extractor, src string) *Scan {
	t.Helper()
	s, err := e.Scan(context.Background(), []byte(src))
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	return s
}

func TestScanFindsSketchRegions(t *testing.T) {
	for name, e := range extractors() {
		t.Run(name, func(t *testing.T) {
			s := scanText(t, e, sketch)

			if len(s.Text) != len(sketch) {
				t.Fatalf("blanked text changed length: %d vs %d", len(s.Text), len(sketch))
			}
			if strings.Contains(s.Text, "RemoteXY configurate") || strings.Contains(s.Text, "from -100") {
				t.Fatalf("comments were not blanked")
			}
			if strings.Count(s.Text, "\n") != strings.Count(sketch, "\n") {
				t.Fatalf("blanking must keep line breaks")
			}

			if len(s.Structs) != 1 {
				t.Fatalf("expected 1 struct region, got %d", len(s.Structs))
			}
			st := s.Structs[0]
			if st.ObjectName != "RemoteXY" || st.TypeName != "" {
				t.Fatalf("unexpected struct names: type=%q object=%q", st.TypeName, st.ObjectName)
			}
			if got := sketch[st.Span.Start:st.Span.End]; !strings.HasPrefix(got, "struct {") || !strings.HasSuffix(got, "} RemoteXY;") {
				t.Fatalf("struct span does not cover the declaration: %q", got)
			}

			if len(s.Arrays) != 1 {
				t.Fatalf("expected 1 array region, got %d", len(s.Arrays))
			}
			a := s.Arrays[0]
			if a.Name != "RemoteXY_CONF" || a.SizeText != "" || len(a.Qualifiers) != 0 {
				t.Fatalf("unexpected array header: %+v", a)
			}
			if !strings.HasPrefix(strings.TrimSpace(a.Body), "255,5,0,13") {
				t.Fatalf("unexpected array body: %q", a.Body)
			}
		})
	}
}

func TestScanIgnoresBracesInLiterals(t *testing.T) {
	src := `const char *msg = "struct { not; } x;";
char open = '{';
struct Data { uint8_t a; char b[2]; } data;
`
	for name, e := range extractors() {
		t.Run(name, func(t *testing.T) {
			s := scanText(t, e, src)
			if len(s.Structs) != 1 {
				t.Fatalf("expected exactly the real struct, got %d", len(s.Structs))
			}
			if s.Structs[0].TypeName != "Data" || s.Structs[0].ObjectName != "data" {
				t.Fatalf("unexpected struct: %+v", s.Structs[0])
			}
		})
	}
}

func TestScanStructShapes(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		want       int
		typeName   string
		objectSize string
	}{
		{"anonymous", "struct { uint8_t a; } obj;", 1, "", ""},
		{"named type", "struct ui_t { uint8_t a; } obj;", 1, "ui_t", ""},
		{"attribute", "struct __attribute__((packed)) { uint8_t a; } obj;", 1, "__attribute__((packed))", ""},
		{"object array", "struct { uint8_t a; } objs[ 2 ];", 1, "", "2"},
		{"no object", "struct ui_t { uint8_t a; };", 1, "ui_t", ""},
		{"pointer return", "struct ui_t *make() { return 0; }", 0, "", ""},
		{"declaration only", "struct ui_t obj;", 0, "", ""},
		{"initializer", "struct ui_t obj = { 1 };", 0, "", ""},
		{"function body", "struct ui_t make(void) { uint8_t a; }", 0, "", ""},
		{"unterminated", "struct { uint8_t a; ", 0, "", ""},
	}
	e := NewSimple()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := scanText(t, e, tt.src)
			if len(s.Structs) != tt.want {
				t.Fatalf("expected %d struct regions, got %d", tt.want, len(s.Structs))
			}
			if tt.want == 0 {
				return
			}
			if s.Structs[0].TypeName != tt.typeName {
				t.Fatalf("type name = %q, want %q", s.Structs[0].TypeName, tt.typeName)
			}
			if s.Structs[0].ObjectSize != tt.objectSize {
				t.Fatalf("object size = %q, want %q", s.Structs[0].ObjectSize, tt.objectSize)
			}
		})
	}
}

func TestScanArrayShapes(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		want  int
		quals []string
		size  string
	}{
		{"plain", "uint8_t conf[] = { 255, 1 };", 1, nil, ""},
		{"sized", "uint8_t conf[2] = { 255, 1, };", 1, nil, "2"},
		{"legacy alias", "unsigned char conf[] = {255};", 1, nil, ""},
		{"progmem", "uint8_t const PROGMEM conf[] = {255};", 1, []string{"const", "PROGMEM"}, ""},
		{"no initializer", "uint8_t conf[4];", 0, nil, ""},
		{"scalar", "uint8_t conf = 4;", 0, nil, ""},
		{"nested braces", "uint8_t conf[] = { {1}, {2} };", 0, nil, ""},
		{"missing semicolon", "uint8_t conf[] = { 1 }", 0, nil, ""},
	}
	e := NewSimple()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := scanText(t, e, tt.src)
			if len(s.Arrays) != tt.want {
				t.Fatalf("expected %d array regions, got %d", tt.want, len(s.Arrays))
			}
			if tt.want == 0 {
				return
			}
			a := s.Arrays[0]
			if a.Name != "conf" || a.SizeText != tt.size {
				t.Fatalf("unexpected array: %+v", a)
			}
			if strings.Join(a.Qualifiers, " ") != strings.Join(tt.quals, " ") {
				t.Fatalf("qualifiers = %v, want %v", a.Qualifiers, tt.quals)
			}
			if got := tt.src[a.Span.Start:a.Span.End]; !strings.HasSuffix(got, ";") {
				t.Fatalf("span should end at the semicolon: %q", got)
			}
		})
	}
}

func TestScanCommentedOutRegions(t *testing.T) {
	src := `/* struct { uint8_t a; } old;
uint8_t conf[] = { 255 }; */
// struct { uint8_t b; } older;
struct { uint8_t c; } live;
`
	for name, e := range extractors() {
		t.Run(name, func(t *testing.T) {
			s := scanText(t, e, src)
			if len(s.Structs) != 1 || s.Structs[0].ObjectName != "live" {
				t.Fatalf("expected only the live struct, got %+v", s.Structs)
			}
			if len(s.Arrays) != 0 {
				t.Fatalf("commented array must not be found, got %d", len(s.Arrays))
			}
			if len(s.Comments) != 2 {
				t.Fatalf("expected 2 comments, got %d", len(s.Comments))
			}
		})
	}
}

func TestBuildStruct(t *testing.T) {
	s := scanText(t, NewSimple(), sketch)
	def := BuildStruct(s.Structs[0])

	if def.Opaque {
		t.Fatal("sketch struct should not be opaque")
	}
	if def.TotalSize != 19 {
		t.Fatalf("total size = %d, want 19", def.TotalSize)
	}
	if def.OtherFieldsStart != -1 {
		t.Fatalf("a freshly built struct must be unbound")
	}
	want := []descriptor.StructField{
		{Type: descriptor.TypeUint8, Name: "button_1", Count: 1},
		{Type: descriptor.TypeUint8, Name: "switch_1", Count: 1},
		{Type: descriptor.TypeInt8, Name: "slider_1", Count: 1},
		{Type: descriptor.TypeInt8, Name: "joystick_1_x", Count: 1},
		{Type: descriptor.TypeInt8, Name: "joystick_1_y", Count: 1},
		{Type: descriptor.TypeUint8, Name: "led_1_r", Count: 1},
		{Type: descriptor.TypeUint8, Name: "led_1_g", Count: 1},
		{Type: descriptor.TypeChar, Name: "text_1", Count: 11},
		{Type: descriptor.TypeUint8, Name: "connect_flag", Count: 1},
	}
	if len(def.Fields) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(def.Fields))
	}
	for i, f := range def.Fields {
		if *f != want[i] {
			t.Errorf("field %d = %+v, want %+v", i, *f, want[i])
		}
	}
}

func TestBuildStructAliasesAndOpaque(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		size   int
		opaque bool
		types  []descriptor.FieldType
	}{
		{"aliases", " unsigned char a; signed char b; ", 2, false, []descriptor.FieldType{descriptor.TypeUint8, descriptor.TypeInt8}},
		{"arrays", "float g[3];\n uint16_t w [ 2 ] ;", 16, false, []descriptor.FieldType{descriptor.TypeFloat, descriptor.TypeUint16}},
		{"unknown type", "uint8_t a; double d; uint8_t b;", 1, true, []descriptor.FieldType{descriptor.TypeUint8}},
		{"multi declarator", "uint8_t a, b;", 0, true, nil},
		{"empty", "  \n ", 0, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := BuildStruct(StructRegion{Body: tt.body})
			if def.TotalSize != tt.size || def.Opaque != tt.opaque {
				t.Fatalf("size=%d opaque=%v, want size=%d opaque=%v", def.TotalSize, def.Opaque, tt.size, tt.opaque)
			}
			if len(def.Fields) != len(tt.types) {
				t.Fatalf("expected %d fields, got %d", len(tt.types), len(def.Fields))
			}
			for i, f := range def.Fields {
				if f.Type != tt.types[i] {
					t.Errorf("field %d type = %s, want %s", i, f.Type, tt.types[i])
				}
			}
		})
	}
}

func TestLexTerminatesUnbalancedQuotes(t *testing.T) {
	toks := Lex([]byte("char c = 'x;\nstruct"))
	last := toks[len(toks)-1]
	if last.Kind != TokIdent || last.Text != "struct" {
		t.Fatalf("unbalanced quote swallowed the next line: %+v", toks)
	}
}
