package descriptor

// Clone returns a deep copy of the model. Pairs in the copy point at the
// copied arrays and structs, so nothing reachable from the result aliases
// the receiver.
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}

	out := &Model{}
	structs := make(map[*StructDef]*StructDef, len(m.Structs))
	arrays := make(map[*ArrayDef]*ArrayDef, len(m.Arrays))

	for _, s := range m.Structs {
		c := s.Clone()
		structs[s] = c
		out.Structs = append(out.Structs, c)
	}
	for _, a := range m.Arrays {
		c := a.Clone()
		arrays[a] = c
		out.Arrays = append(out.Arrays, c)
	}
	for _, p := range m.Pairs {
		np := &BoundPair{Array: arrays[p.Array], Struct: structs[p.Struct]}
		if np.Array == nil {
			np.Array = p.Array.Clone()
		}
		if np.Struct == nil {
			np.Struct = p.Struct.Clone()
		}
		out.Pairs = append(out.Pairs, np)
	}
	return out
}

// Clone returns a deep copy of the struct definition
func (s *StructDef) Clone() *StructDef {
	if s == nil {
		return nil
	}
	c := *s
	c.Fields = make([]*StructField, len(s.Fields))
	for i, f := range s.Fields {
		nf := *f
		c.Fields[i] = &nf
	}
	return &c
}

// Clone returns a deep copy of the array definition
func (a *ArrayDef) Clone() *ArrayDef {
	if a == nil {
		return nil
	}
	c := *a
	c.Qualifiers = append([]string(nil), a.Qualifiers...)
	c.Literals = append([]int(nil), a.Literals...)
	c.Bytes = append([]byte(nil), a.Bytes...)
	c.Elements = make([]*Element, len(a.Elements))
	for i, e := range a.Elements {
		c.Elements[i] = e.Clone()
	}
	return &c
}

// Clone returns a deep copy of the element
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	c := *e
	if e.Secondary != nil {
		r := *e.Secondary
		c.Secondary = &r
	}
	if e.PageID != nil {
		p := *e.PageID
		c.PageID = &p
	}
	c.Attrs = append([]Attr(nil), e.Attrs...)
	if e.Texts != nil {
		c.Texts = make([]TextRun, len(e.Texts))
		for i, t := range e.Texts {
			t.Chars = append([]string(nil), t.Chars...)
			c.Texts[i] = t
		}
	}
	if e.Binding != nil {
		b := *e.Binding
		b.Names = append([]string(nil), e.Binding.Names...)
		c.Binding = &b
	}
	return &c
}
