package config

import (
	"sync"

	"github.com/grovetools/uireload/schema"
)

var (
	compiledOnce sync.Once
	compiled     *schema.Validator
	compileErr   error
)

// SchemaValidator validates raw configuration documents against the schema
// generated from Config.
type SchemaValidator struct {
	validator *schema.Validator
}

// NewSchemaValidator returns a validator for the generated schema. The schema
// is compiled once per process.
func NewSchemaValidator() (*SchemaValidator, error) {
	compiledOnce.Do(func() {
		var data []byte
		data, compileErr = GenerateSchema()
		if compileErr != nil {
			return
		}
		compiled, compileErr = schema.NewValidator("uireload.json", data)
	})
	if compileErr != nil {
		return nil, compileErr
	}
	return &SchemaValidator{validator: compiled}, nil
}

// Validate validates configuration data against the schema.
func (v *SchemaValidator) Validate(configData interface{}) error {
	return v.validator.Validate(configData)
}
