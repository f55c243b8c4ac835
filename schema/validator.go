// Package schema validates decoded configuration documents against a JSON
// Schema.
package schema

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/grovetools/uireload/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Violation is one failed schema keyword.
type Violation struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

func (v Violation) String() string {
	loc := v.Location
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + v.Message
}

// Validator holds a compiled schema.
type Validator struct {
	name   string
	schema *jsonschema.Schema
}

// NewValidator compiles schemaData, registered under name.
func NewValidator(name string, schemaData []byte) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(schemaData)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Validator{name: name, schema: compiled}, nil
}

// Validate checks doc, typically a map decoded from YAML or TOML. Values are
// normalized through JSON first so TOML integers and YAML maps compare the
// way the schema expects. Failures are CONFIG_INVALID with the sorted
// violations attached under "violations".
func (v *Validator) Validate(doc interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "configuration is not representable as JSON")
	}
	var normalized interface{}
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "configuration is not representable as JSON")
	}

	err = v.schema.Validate(normalized)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !stderrors.As(err, &verr) {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed")
	}

	violations := Violations(verr)
	lines := make([]string, len(violations))
	for i, vi := range violations {
		lines[i] = "  " + vi.String()
	}
	return errors.New(errors.ErrCodeConfigInvalid,
		fmt.Sprintf("configuration does not match %s:\n%s", v.name, strings.Join(lines, "\n"))).
		WithDetail("violations", violations)
}

// Violations flattens a validation error tree into its leaves, sorted by
// location.
func Violations(err *jsonschema.ValidationError) []Violation {
	var out []Violation
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, Violation{Location: e.InstanceLocation, Message: e.Message})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(err)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}
