package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ormasoftchile/steprunner/pkg/discovery"
	"github.com/ormasoftchile/steprunner/pkg/schema"
)

type page struct{ title string }

func newPage() *page { return &page{} }

func (p *page) Open(title string) { p.title = title }

func (p *page) TitleIs(want string) error {
	if p.title != want {
		return errors.New("title is " + p.title)
	}
	return nil
}

func testCatalog(hookCalls *[]string) *discovery.Catalog {
	c := discovery.NewCatalog()
	c.Scope(newPage)
	c.Step("Open <title>", (*page).Open)
	c.Step("Title is <title>", (*page).TitleIs, discovery.Alias("Title should be <title>"))
	c.Hook(schema.BeforeScenario, func() { *hookCalls = append(*hookCalls, "before") })
	c.Hook(schema.AfterScenario, func() { *hookCalls = append(*hookCalls, "after:ui") }, discovery.Tags("ui"))
	return c
}

func execute(t *testing.T, c *discovery.Catalog, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd(c, "1.2.3")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, discovery.NewCatalog(), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != "steprunner 1.2.3" {
		t.Errorf("output = %q", out)
	}
}

func TestSchemaExport(t *testing.T) {
	for _, sub := range []string{"request", "response"} {
		out, err := execute(t, discovery.NewCatalog(), "schema", sub)
		if err != nil {
			t.Fatalf("schema %s: %v", sub, err)
		}
		if !strings.Contains(out, `"$schema"`) {
			t.Errorf("schema %s output is not a JSON Schema: %.80s", sub, out)
		}
	}
}

func TestStepsYAML(t *testing.T) {
	var calls []string
	out, err := execute(t, testCatalog(&calls), "steps", "--format", "yaml")
	if err != nil {
		t.Fatalf("steps: %v", err)
	}
	for _, want := range []string{"Open <title>", "Title should be <title>", "before_scenario", "after_scenario"} {
		if !strings.Contains(out, want) {
			t.Errorf("yaml output missing %q:\n%s", want, out)
		}
	}
}

func TestStepsText(t *testing.T) {
	var calls []string
	out, err := execute(t, testCatalog(&calls), "steps")
	if err != nil {
		t.Fatalf("steps: %v", err)
	}
	for _, want := range []string{"Steps (2)", "Open <title>", "alias", "Hooks (2)"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestStepsUnknownFormat(t *testing.T) {
	if _, err := execute(t, discovery.NewCatalog(), "steps", "--format", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRunScenario(t *testing.T) {
	var calls []string
	out, err := execute(t, testCatalog(&calls), "run", `Open "Home"`, `Title should be "Home"`, "--tags", "ui")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if strings.Join(calls, ",") != "before,after:ui" {
		t.Errorf("hooks = %v, want [before after:ui]", calls)
	}
	if strings.Count(out, "✓") < 3 {
		t.Errorf("output = %s", out)
	}
}

func TestRunScenarioSkipsAfterFailure(t *testing.T) {
	var calls []string
	out, err := execute(t, testCatalog(&calls), "run", `Title is "Home"`, `Open "Home"`)
	if !errors.Is(err, errScenarioFailed) {
		t.Fatalf("run error = %v, want errScenarioFailed", err)
	}
	if !strings.Contains(out, "skipped") {
		t.Errorf("second step should be skipped:\n%s", out)
	}
	if strings.Join(calls, ",") != "before" {
		t.Errorf("hooks = %v, want only the untagged before hook", calls)
	}
}

func TestServeRejectsUnknownTransport(t *testing.T) {
	var calls []string
	if _, err := execute(t, testCatalog(&calls), "serve", "--transport", "carrier-pigeon"); err == nil {
		t.Error("expected error for unknown transport")
	}
}
