package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "test")

	if err := SetLevel(l, "debug"); err != nil {
		t.Fatalf("SetLevel(debug): %v", err)
	}
	if l.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", l.GetLevel())
	}
	l.Debug("hook failed", "hook", "h1")
	if !strings.Contains(buf.String(), "hook failed") {
		t.Errorf("output = %q, want debug line", buf.String())
	}

	if err := SetLevel(l, "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
	if l.GetLevel() != log.InfoLevel {
		t.Errorf("level = %v, want info after bad level", l.GetLevel())
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error("nothing happens")
}
