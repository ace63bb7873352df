package validator

// =============================================================================
// VALIDATOR: CONTRACT GUARD FOR CONFIG FILES AND DUMPS
// =============================================================================
//
// Two documents cross the tool's boundary and are checked against embedded
// CUE definitions:
//
//   - #Config: a user's formatting configuration, checked as written (before
//     defaults are applied) so a misspelt option is reported instead of being
//     silently ignored.
//   - #Dump: the decoded model emitted by -dump and rxy-dump, checked before
//     it is written so downstream tools never see a malformed document.
//
// A validation failure is a bug report, not a warning: either the input is
// wrong or the model drifted from the schema.
// =============================================================================

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed config.cue dump.cue
var schemaFS embed.FS

// Validator checks documents against one definition of an embedded schema
type Validator struct {
	ctx  *cue.Context
	def  cue.Value
	path string
}

// NewConfigValidator creates a validator for formatting configuration
func NewConfigValidator() (*Validator, error) {
	return newValidator("config.cue", "#Config")
}

// NewDumpValidator creates a validator for model dumps
func NewDumpValidator() (*Validator, error) {
	return newValidator("dump.cue", "#Dump")
}

func newValidator(file, path string) (*Validator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema %s: %w", file, err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", file, schema.Err())
	}

	def := schema.LookupPath(cue.ParsePath(path))
	if def.Err() != nil {
		return nil, fmt.Errorf("looking up %s definition: %w", path, def.Err())
	}

	return &Validator{ctx: ctx, def: def, path: path}, nil
}

// Validate marshals data to JSON and checks it against the definition
func (v *Validator) Validate(data any) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return v.ValidateJSON(jsonBytes)
}

// ValidateJSON validates JSON bytes directly against the definition
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	unified, err := v.unify(jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("%s validation failed: %w", v.path, err)
	}
	return nil
}

// ValidationErrors returns one message per violation, or nil if data is valid
func (v *Validator) ValidationErrors(data any) []string {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return []string{fmt.Sprintf("marshal error: %v", err)}
	}

	unified, err := v.unify(jsonBytes)
	if err != nil {
		return []string{err.Error()}
	}
	err = unified.Validate()
	if err == nil {
		return nil
	}

	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

func (v *Validator) unify(jsonBytes []byte) (cue.Value, error) {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}
	return v.def.Unify(dataValue), nil
}
