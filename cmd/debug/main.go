package main

import (
	"context"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"github.com/robert-at-pretension-io/rxyfmt/internal/extractor"
)

func main() {
	source := []byte(`#pragma pack(push, 1)
uint8_t RemoteXY_CONF[] = /* 20 bytes */ { 255,1,0,0,0,13,0,16,31,1,1,0,5,5,12,12,2,31,65,0 };
struct {
  uint8_t but1; // "}" inside a comment
  uint8_t other;
} RemoteXY;
#pragma pack(pop)`)
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		source = data
	}

	parser := sitter.NewParser()
	parser.SetLanguage(c.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	root := tree.RootNode()

	fmt.Printf("translation_unit has %d children:\n", root.ChildCount())
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		fmt.Printf("  [%d] type=%s bytes=%d..%d error=%v\n", i, child.Type(), child.StartByte(), child.EndByte(), child.HasError())
	}

	scan, err := extractor.New().Scan(context.Background(), source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n%d comment(s):\n", len(scan.Comments))
	for _, s := range scan.Comments {
		fmt.Printf("  %d..%d %q\n", s.Start, s.End, source[s.Start:s.End])
	}
	fmt.Printf("\n%d struct region(s):\n", len(scan.Structs))
	for _, r := range scan.Structs {
		s := extractor.BuildStruct(r)
		fmt.Printf("  %d..%d %s: %d field(s), %d byte(s), opaque=%v\n", r.Span.Start, r.Span.End, s.Label(), len(s.Fields), s.TotalSize, s.Opaque)
	}
	fmt.Printf("\n%d array region(s):\n", len(scan.Arrays))
	for _, r := range scan.Arrays {
		fmt.Printf("  %d..%d %s[%s] qualifiers=%v\n", r.Span.Start, r.Span.End, r.Name, r.SizeText, r.Qualifiers)
	}
}
