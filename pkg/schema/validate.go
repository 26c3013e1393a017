package schema

import (
	"bytes"
	"fmt"
	"sync"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// RequestValidator checks raw request documents against the generated
// request schema before they are decoded.
type RequestValidator struct {
	once sync.Once
	sch  *sjsonschema.Schema
	err  error
}

// NewRequestValidator returns a validator; the schema is compiled on first use.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{}
}

func (v *RequestValidator) compile() {
	schemaJSON, err := GenerateRequestJSONSchema()
	if err != nil {
		v.err = fmt.Errorf("generate schema: %w", err)
		return
	}
	schemaDoc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		v.err = fmt.Errorf("unmarshal schema: %w", err)
		return
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource(requestSchemaID, schemaDoc); err != nil {
		v.err = fmt.Errorf("add schema resource: %w", err)
		return
	}
	sch, err := c.Compile(requestSchemaID)
	if err != nil {
		v.err = fmt.Errorf("compile schema: %w", err)
		return
	}
	v.sch = sch
}

// Validate reports the first schema violation in data, or nil.
func (v *RequestValidator) Validate(data []byte) error {
	v.once.Do(v.compile)
	if v.err != nil {
		return v.err
	}
	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse request: %w", err)
	}
	if err := v.sch.Validate(doc); err != nil {
		return fmt.Errorf("request does not match schema: %w", err)
	}
	return nil
}
