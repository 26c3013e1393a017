package schema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGenerateRequestJSONSchema(t *testing.T) {
	data, err := GenerateRequestJSONSchema()
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if doc["$id"] != requestSchemaID {
		t.Errorf("$id = %v", doc["$id"])
	}
	if !strings.Contains(string(data), "hook_execution") {
		t.Error("expected request kinds in schema")
	}
}

func TestGenerateResponseJSONSchema(t *testing.T) {
	data, err := GenerateResponseJSONSchema()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "elapsedTimeMs") {
		t.Error("expected execution result fields in response schema")
	}
}

func TestRequestValidator(t *testing.T) {
	v := NewRequestValidator()

	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"step execution", `{"kind":"step_execution","stepExecution":{"stepText":"Say {}","arguments":[{"kind":"plain","value":"hi"}]}}`, false},
		{"hook execution", `{"kind":"hook_execution","hookExecution":{"hookKind":"after_scenario","activeTags":["a"]}}`, false},
		{"kill", `{"kind":"kill"}`, false},
		{"unknown kind", `{"kind":"dance"}`, true},
		{"missing kind", `{"id":"1"}`, true},
		{"bad hook kind", `{"kind":"hook_execution","hookExecution":{"hookKind":"during_step"}}`, true},
		{"bad argument kind", `{"kind":"step_execution","stepExecution":{"stepText":"x","arguments":[{"kind":"blob"}]}}`, true},
		{"not json", `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate([]byte(tt.doc))
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
