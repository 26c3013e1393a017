package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ormasoftchile/steprunner/pkg/processor"
	"github.com/ormasoftchile/steprunner/pkg/registry"
	"github.com/ormasoftchile/steprunner/pkg/sandbox"
	"github.com/ormasoftchile/steprunner/pkg/schema"
)

func newHandler() *processor.Processor {
	steps := registry.NewStepRegistry()
	steps.AddStep("Say {}", &schema.StepImplementation{
		ID: "say", Aliases: []string{"Say <word>"}, ParameterCount: 1, Fn: func(word string) {},
	})
	return processor.New(steps, nil, sandbox.New(nil, nil, nil, sandbox.Options{}), processor.Options{})
}

func serve(t *testing.T, h Handler, input string) []Message {
	t.Helper()
	var out bytes.Buffer
	srv := NewServer(strings.NewReader(input), &out, h, "test", nil)
	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var msgs []Message
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var m Message
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("bad output line %q: %v", scanner.Text(), err)
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func TestServer_Protocol(t *testing.T) {
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","id":2,"method":"process","params":{"kind":"step_execution","stepExecution":{"stepText":"Say {}","arguments":[{"kind":"plain","value":"hi"}]}}}`,
		`{"jsonrpc":"2.0","id":"three","method":"process","params":{"kind":"step_names"}}`,
		`{"jsonrpc":"2.0","id":4,"method":"shutdown"}`,
		`{"jsonrpc":"2.0","id":5,"method":"initialize"}`,
	}, "\n")
	msgs := serve(t, newHandler(), input)
	if len(msgs) != 4 {
		t.Fatalf("responses = %d, want 4 (nothing after shutdown)", len(msgs))
	}

	var init InitializeResult
	if err := json.Unmarshal(msgs[0].Result, &init); err != nil || init.Name != "steprunner" {
		t.Errorf("initialize = %s (%v)", msgs[0].Result, err)
	}

	var resp schema.Response
	if err := json.Unmarshal(msgs[1].Result, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ExecutionResult == nil || !resp.ExecutionResult.Success {
		t.Errorf("step response = %s", msgs[1].Result)
	}

	if string(msgs[2].ID) != `"three"` {
		t.Errorf("id = %s, want \"three\"", msgs[2].ID)
	}
	resp = schema.Response{}
	json.Unmarshal(msgs[2].Result, &resp)
	if len(resp.StepNames) != 1 || resp.StepNames[0] != "Say <word>" {
		t.Errorf("step names = %v", resp.StepNames)
	}
}

func TestServer_Errors(t *testing.T) {
	input := strings.Join([]string{
		`not json`,
		`{"jsonrpc":"1.0","id":1,"method":"process"}`,
		`{"jsonrpc":"2.0","id":2,"method":"nope"}`,
		`{"jsonrpc":"2.0","id":3,"method":"process","params":{"kind":"explode"}}`,
		`{"jsonrpc":"2.0","method":"nope"}`,
	}, "\n")
	msgs := serve(t, newHandler(), input)
	want := []int{CodeParseError, CodeInvalidRequest, CodeMethodNotFound, CodeInvalidParams}
	if len(msgs) != len(want) {
		t.Fatalf("responses = %d, want %d (notifications get no reply)", len(msgs), len(want))
	}
	for i, code := range want {
		if msgs[i].Error == nil || msgs[i].Error.Code != code {
			t.Errorf("msg %d error = %+v, want code %d", i, msgs[i].Error, code)
		}
	}
	if string(msgs[0].ID) != "null" {
		t.Errorf("parse error id = %s, want null", msgs[0].ID)
	}
}

func TestServer_KillStops(t *testing.T) {
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"process","params":{"kind":"kill"}}`,
		`{"jsonrpc":"2.0","id":2,"method":"initialize"}`,
	}, "\n")
	msgs := serve(t, newHandler(), input)
	if len(msgs) != 1 {
		t.Errorf("responses = %d, want 1", len(msgs))
	}
}
