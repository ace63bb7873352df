package correlator

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/robert-at-pretension-io/rxyfmt/internal/descriptor"
)

// ErrMismatch means a struct's fields do not line up with an array's
// elements. It aborts only the current (array, struct) attempt.
var ErrMismatch = errors.New("field binding mismatch")

// Pattern: <base>_x | <base>_r | <base>_g | <base>_b | <base>_var<N>
var suffixPattern = regexp.MustCompile(`^(.+)(?:_x|_r|_g|_b|_var\d+)$`)

// Attempt records one (array, struct) pairing that was tried and failed
type Attempt struct {
	Array  int
	Struct int
	Err    error
}

// Result is the outcome of correlating every array against every struct
type Result struct {
	Pairs []*descriptor.BoundPair
	// Unbound lists arrays no struct could hold, by index
	Unbound []int
	// Failed lists size-compatible attempts that were rejected
	Failed []Attempt
}

// Correlate binds arrays to structs in discovery order. An array is tried
// against every unclaimed, non-opaque struct whose size is
// inputs + outputs + 1; the first full match claims both. There is no
// backtracking, so two structs of equal size resolve to the earlier one.
func Correlate(structs []*descriptor.StructDef, arrays []*descriptor.ArrayDef) *Result {
	res := &Result{}
	claimed := make([]bool, len(structs))

	for ai, a := range arrays {
		bound := false
		for si, s := range structs {
			if claimed[si] || s.Opaque || s.TotalSize != a.Header.PairSize() {
				continue
			}
			if err := Bind(a, s); err != nil {
				res.Failed = append(res.Failed, Attempt{Array: ai, Struct: si, Err: err})
				continue
			}
			claimed[si] = true
			bound = true
			res.Pairs = append(res.Pairs, &descriptor.BoundPair{Array: a, Struct: s})
			break
		}
		if !bound {
			res.Unbound = append(res.Unbound, ai)
		}
	}
	return res
}

// slot is the binding one element will receive if the whole walk succeeds
type slot struct {
	binding *descriptor.Binding
	name    string
	names   []string
}

// Bind walks the array's input then output elements against the struct's
// fields. On success every element binding is named and the struct's
// OtherFieldsStart is set; on failure neither side is modified.
func Bind(a *descriptor.ArrayDef, s *descriptor.StructDef) error {
	elements := append(a.Inputs(), a.Outputs()...)
	slots := make([]slot, 0, len(elements))
	j := 0

	for _, e := range elements {
		b := e.Binding
		if b == nil || b.Count == 0 {
			continue
		}
		if j >= len(s.Fields) {
			return fmt.Errorf("%w: %s at offset %d has no field left", ErrMismatch, e.Kind, e.Start)
		}

		f := s.Fields[j]
		if f.Count == b.Count {
			if !b.Accepts(f.Type) {
				return fmt.Errorf("%w: %s needs %s, field %s is %s", ErrMismatch, e.Kind, b.Type, f.Name, f.Type)
			}
			slots = append(slots, slot{binding: b, name: f.Name, names: synthesize(e, f.Name)})
			j++
			continue
		}

		// Split binding: one single-slot field per value
		names := make([]string, 0, b.Count)
		for k := 0; k < b.Count; k++ {
			if j >= len(s.Fields) {
				return fmt.Errorf("%w: %s needs %d fields, struct ends after %d", ErrMismatch, e.Kind, b.Count, k)
			}
			f := s.Fields[j]
			if f.Count != 1 || !b.Accepts(f.Type) {
				return fmt.Errorf("%w: %s slot %d needs %s, field %s is %s[%d]", ErrMismatch, e.Kind, k+1, b.Type, f.Name, f.Type, f.Count)
			}
			names = append(names, f.Name)
			j++
		}
		slots = append(slots, slot{binding: b, name: baseName(names[0]), names: names})
	}

	if j >= len(s.Fields) {
		return fmt.Errorf("%w: no field left for the reserved marker", ErrMismatch)
	}

	for _, sl := range slots {
		sl.binding.Name = sl.name
		sl.binding.Names = sl.names
	}
	s.OtherFieldsStart = j
	return nil
}

// synthesize returns per-slot names for a multi-value binding held by one
// array field
func synthesize(e *descriptor.Element, base string) []string {
	if e.Binding.Count <= 1 {
		return nil
	}
	switch e.Kind {
	case descriptor.KindJoystick:
		return []string{base + "_x", base + "_y"}
	case descriptor.KindLED:
		rgb, _ := e.Attr("rgb_channels")
		var names []string
		if rgb&0b100 != 0 {
			names = append(names, base+"_r")
		}
		if rgb&0b010 != 0 {
			names = append(names, base+"_g")
		}
		if rgb&0b001 != 0 {
			names = append(names, base+"_b")
		}
		return names
	case descriptor.KindOnlineGraph:
		names := make([]string, e.Binding.Count)
		for i := range names {
			names[i] = fmt.Sprintf("%s_var%d", base, i+1)
		}
		return names
	}
	return nil
}

// baseName strips a recognised slot suffix from the first split name
func baseName(first string) string {
	if m := suffixPattern.FindStringSubmatch(first); m != nil {
		return m[1]
	}
	return first
}
