package registry

import (
	"testing"

	"github.com/ormasoftchile/steprunner/pkg/schema"
)

func TestHookRegistry(t *testing.T) {
	r := NewHookRegistry()
	r.AddHook(&schema.HookHandle{ID: "h1", Kind: schema.BeforeScenario, Source: "a.go"})
	r.AddHook(&schema.HookHandle{ID: "h2", Kind: schema.BeforeScenario, Source: "b.go"})
	r.AddHook(&schema.HookHandle{ID: "h3", Kind: schema.AfterSuite, Source: "a.go"})

	got := r.Hooks(schema.BeforeScenario)
	if len(got) != 2 || got[0].ID != "h1" || got[1].ID != "h2" {
		t.Fatalf("Hooks(before_scenario) = %v", got)
	}
	if len(r.Hooks(schema.BeforeStep)) != 0 {
		t.Error("expected no before_step hooks")
	}

	if n := r.RemoveBySource("a.go"); n != 2 {
		t.Errorf("RemoveBySource = %d, want 2", n)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	r.Replace([]*schema.HookHandle{{ID: "h4", Kind: schema.AfterStep}})
	if len(r.Hooks(schema.BeforeScenario)) != 0 || len(r.Hooks(schema.AfterStep)) != 1 {
		t.Error("Replace did not swap hooks")
	}
	r.Clear()
	if r.Len() != 0 {
		t.Error("Clear left hooks behind")
	}
}
