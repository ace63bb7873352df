package policy

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-policy-agent/opa/rego"

	"github.com/robert-at-pretension-io/rxyfmt/internal/descriptor"
)

//go:embed advisories.rego
var builtinPolicy string

// Query is the rule set every policy module contributes to
const Query = "data.rxyfmt.advisories.advisories"

// Engine evaluates advisory policies against a decoded model
type Engine struct {
	query rego.PreparedEvalQuery
}

// Advisory is a hint about a decoded model. Advisories never change
// formatting output.
type Advisory struct {
	Rule     string `json:"rule" yaml:"rule"`
	Severity string `json:"severity" yaml:"severity"`
	Message  string `json:"message" yaml:"message"`
}

// Input is the data structure passed to OPA
type Input struct {
	Structs []Struct `json:"structs"`
	Arrays  []Array  `json:"arrays"`
	Pairs   []Pair   `json:"pairs"`
}

// Simplified types for OPA input (indices refer to Input slices)
type Struct struct {
	Index      int    `json:"index"`
	Label      string `json:"label"`
	TotalSize  int    `json:"total_size"`
	Fields     int    `json:"fields"`
	Opaque     bool   `json:"opaque"`
	MarkerType string `json:"marker_type,omitempty"`
	MarkerName string `json:"marker_name,omitempty"`
}

type Array struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	PairSize int    `json:"pair_size"`
	Elements int    `json:"elements"`
	Bound    bool   `json:"bound"`
}

type Pair struct {
	Array  int `json:"array"`
	Struct int `json:"struct"`
}

// New creates a policy engine from the built-in rules plus every .rego
// file in policyDir. An empty policyDir loads only the built-in rules.
func New(policyDir string) (*Engine, error) {
	modules := []func(*rego.Rego){rego.Module("advisories.rego", builtinPolicy)}

	if policyDir != "" {
		files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
		if err != nil {
			return nil, fmt.Errorf("finding policy files: %w", err)
		}
		sort.Strings(files)
		for _, f := range files {
			content, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", f, err)
			}
			modules = append(modules, rego.Module(f, string(content)))
		}
	}

	opts := append(modules, rego.Query(Query))
	query, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("preparing advisories query: %w", err)
	}
	return &Engine{query: query}, nil
}

// NewInput flattens a model into the policy input document
func NewInput(m *descriptor.Model) Input {
	in := Input{Structs: []Struct{}, Arrays: []Array{}, Pairs: []Pair{}}

	structIndex := make(map[*descriptor.StructDef]int, len(m.Structs))
	for i, s := range m.Structs {
		structIndex[s] = i
		in.Structs = append(in.Structs, Struct{
			Index:     i,
			Label:     s.Label(),
			TotalSize: s.TotalSize,
			Fields:    len(s.Fields),
			Opaque:    s.Opaque,
		})
	}

	arrayIndex := make(map[*descriptor.ArrayDef]int, len(m.Arrays))
	for i, a := range m.Arrays {
		arrayIndex[a] = i
		in.Arrays = append(in.Arrays, Array{
			Index:    i,
			Name:     a.Name,
			PairSize: a.Header.PairSize(),
			Elements: len(a.Elements),
		})
	}

	for _, p := range m.Pairs {
		ai, aok := arrayIndex[p.Array]
		si, sok := structIndex[p.Struct]
		if !aok || !sok {
			continue
		}
		in.Arrays[ai].Bound = true
		if marker := p.Struct.Marker(); marker != nil {
			in.Structs[si].MarkerType = string(marker.Type)
			in.Structs[si].MarkerName = marker.Name
		}
		in.Pairs = append(in.Pairs, Pair{Array: ai, Struct: si})
	}
	return in
}

// Evaluate runs the policies against the model and returns advisories
// sorted by rule then message
func (e *Engine) Evaluate(ctx context.Context, m *descriptor.Model) ([]Advisory, error) {
	inputMap, err := structToMap(NewInput(m))
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	rs, err := e.query.Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating advisories: %w", err)
	}

	advisories := []Advisory{}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		items, ok := rs[0].Expressions[0].Value.([]interface{})
		if ok {
			for _, v := range items {
				vmap, ok := v.(map[string]interface{})
				if !ok {
					continue
				}
				advisories = append(advisories, Advisory{
					Rule:     getString(vmap, "rule"),
					Severity: getString(vmap, "severity"),
					Message:  getString(vmap, "message"),
				})
			}
		}
	}

	sort.Slice(advisories, func(i, j int) bool {
		if advisories[i].Rule != advisories[j].Rule {
			return advisories[i].Rule < advisories[j].Rule
		}
		return advisories[i].Message < advisories[j].Message
	})
	return advisories, nil
}

// Helper functions
func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	return result, err
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
