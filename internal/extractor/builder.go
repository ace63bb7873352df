package extractor

import "github.com/robert-at-pretension-io/rxyfmt/internal/descriptor"

// BuildStruct turns a struct region into an ordered field list. Declarations
// outside the closed vocabulary leave residue and mark the struct Opaque.
func BuildStruct(r StructRegion) *descriptor.StructDef {
	s := &descriptor.StructDef{
		Span:             r.Span,
		TypeName:         r.TypeName,
		ObjectName:       r.ObjectName,
		ObjectSize:       r.ObjectSize,
		OtherFieldsStart: -1,
	}

	body := normalizeAliases(r.Body)
	for {
		f, n := matchField(body)
		if f == nil {
			break
		}
		s.Fields = append(s.Fields, f)
		s.TotalSize += f.Size()
		body = body[n:]
	}
	if isResidue(body) {
		s.Opaque = true
	}
	return s
}
