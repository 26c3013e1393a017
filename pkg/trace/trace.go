// Package trace writes the runner's append-only JSONL execution trace.
package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates trace event types.
type EventType string

const (
	EventRunStart       EventType = "run_start"
	EventRunComplete    EventType = "run_complete"
	EventRequestStart   EventType = "request_start"
	EventStepComplete   EventType = "step_complete"
	EventHookComplete   EventType = "hook_complete"
	EventScopeStart     EventType = "scope_start"
	EventScopeClose     EventType = "scope_close"
	EventCacheCleared   EventType = "cache_cleared"
	EventRegistryReload EventType = "registry_reload"
)

// Event is a single trace event written to the JSONL stream.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Writer writes trace events to an append-only JSONL stream. A nil *Writer
// discards every event.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	runID  string
	enc    *json.Encoder
	closer io.Closer
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NewWriter creates a trace writer that writes to the given io.Writer.
func NewWriter(w io.Writer, runID string) *Writer {
	return &Writer{
		w:     w,
		runID: runID,
		enc:   json.NewEncoder(w),
	}
}

// NewFileWriter creates a trace writer that appends to a JSONL file.
func NewFileWriter(path, runID string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	tw := NewWriter(f, runID)
	tw.closer = f
	return tw, nil
}

// RunID returns the run identifier stamped on every event.
func (tw *Writer) RunID() string {
	if tw == nil {
		return ""
	}
	return tw.runID
}

// Emit writes a single trace event.
func (tw *Writer) Emit(eventType EventType, data map[string]any) error {
	if tw == nil {
		return nil
	}
	tw.mu.Lock()
	defer tw.mu.Unlock()

	evt := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     tw.runID,
		Data:      data,
	}
	return tw.enc.Encode(evt)
}

// EmitRequestStart emits a request_start event.
func (tw *Writer) EmitRequestStart(requestID, kind string) error {
	return tw.Emit(EventRequestStart, map[string]any{
		"request_id": requestID,
		"kind":       kind,
	})
}

// EmitStepComplete emits a step_complete event.
func (tw *Writer) EmitStepComplete(stepText string, success, recoverable bool, elapsed time.Duration, message string) error {
	data := map[string]any{
		"step_text": stepText,
		"success":   success,
		"duration":  elapsed.String(),
	}
	if !success {
		data["recoverable"] = recoverable
		data["error"] = message
	}
	return tw.Emit(EventStepComplete, data)
}

// EmitHookComplete emits a hook_complete event.
func (tw *Writer) EmitHookComplete(kind string, tags []string, success bool, elapsed time.Duration, message string) error {
	data := map[string]any{
		"hook_kind": kind,
		"success":   success,
		"duration":  elapsed.String(),
	}
	if len(tags) > 0 {
		data["tags"] = tags
	}
	if !success {
		data["error"] = message
	}
	return tw.Emit(EventHookComplete, data)
}

// Close closes the underlying file when the writer owns one.
func (tw *Writer) Close() error {
	if tw == nil || tw.closer == nil {
		return nil
	}
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.closer.Close()
}
