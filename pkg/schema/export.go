package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

const (
	requestSchemaID  = "https://github.com/ormasoftchile/steprunner/schemas/request-v1.json"
	responseSchemaID = "https://github.com/ormasoftchile/steprunner/schemas/response-v1.json"
)

// GenerateRequestJSONSchema produces a JSON Schema Draft 2020-12 document
// from the Request Go types.
func GenerateRequestJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&Request{})
	s.ID = requestSchemaID
	s.Title = "Step runner request"
	s.Description = "Inbound orchestrator message (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal request schema: %w", err)
	}
	return data, nil
}

// GenerateResponseJSONSchema produces a JSON Schema Draft 2020-12 document
// from the Response Go types.
func GenerateResponseJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&Response{})
	s.ID = responseSchemaID
	s.Title = "Step runner response"
	s.Description = "Outbound runner message (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal response schema: %w", err)
	}
	return data, nil
}
