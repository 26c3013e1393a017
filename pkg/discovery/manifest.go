package discovery

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// Manifest is a YAML description of everything a scanner discovered.
type Manifest struct {
	Steps   []ManifestStep `yaml:"steps"`
	Hooks   []ManifestHook `yaml:"hooks,omitempty"`
	Scopes  []string       `yaml:"scopes,omitempty"`
	Capture bool           `yaml:"capture"`
}

// ManifestStep describes one step implementation.
type ManifestStep struct {
	ID                string   `yaml:"id"`
	Texts             []string `yaml:"texts"`
	Parameters        int      `yaml:"parameters"`
	ContinueOnFailure bool     `yaml:"continue_on_failure,omitempty"`
	Scope             string   `yaml:"scope,omitempty"`
	Source            string   `yaml:"source"`
	Line              int      `yaml:"line"`
}

// ManifestHook describes one hook.
type ManifestHook struct {
	ID          string   `yaml:"id"`
	Kind        string   `yaml:"kind"`
	Tags        []string `yaml:"tags,omitempty"`
	Aggregation string   `yaml:"aggregation,omitempty"`
	When        string   `yaml:"when,omitempty"`
	Source      string   `yaml:"source"`
	Line        int      `yaml:"line"`
}

// BuildManifest scans s. Each implementation appears once with all its texts.
func BuildManifest(s Scanner) *Manifest {
	m := &Manifest{}
	index := make(map[string]int)
	for _, e := range s.ScanForSteps() {
		impl := e.Implementation
		if _, ok := index[impl.ID]; ok {
			continue
		}
		index[impl.ID] = len(m.Steps)
		m.Steps = append(m.Steps, ManifestStep{
			ID:                impl.ID,
			Texts:             impl.Aliases,
			Parameters:        impl.ParameterCount,
			ContinueOnFailure: impl.ContinueOnFailure,
			Scope:             impl.Scope,
			Source:            impl.Source,
			Line:              impl.Line,
		})
	}
	for _, h := range s.ScanForHooks() {
		mh := ManifestHook{
			ID:     h.ID,
			Kind:   string(h.Kind),
			Tags:   h.FilterTags,
			When:   h.Expression,
			Source: h.Source,
			Line:   h.Line,
		}
		if len(h.FilterTags) > 0 {
			mh.Aggregation = string(h.AggregationMode())
		}
		m.Hooks = append(m.Hooks, mh)
	}
	for name := range s.ScanForScopes() {
		m.Scopes = append(m.Scopes, name)
	}
	sort.Strings(m.Scopes)
	m.Capture = s.ScanForCaptureCapability() != nil
	return m
}

// WriteManifest encodes m as YAML.
func WriteManifest(w io.Writer, m *Manifest) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return enc.Close()
}
