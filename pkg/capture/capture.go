// Package capture produces screenshots attached to failed execution results.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCaptureUnavailable is returned by capturers that cannot produce an image.
var ErrCaptureUnavailable = errors.New("screenshot capture unavailable")

// Capturer produces the bytes of a screenshot.
type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
}

// CapturerFunc adapts a plain function to Capturer.
type CapturerFunc func(ctx context.Context) ([]byte, error)

// Capture implements Capturer.
func (f CapturerFunc) Capture(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// Noop never captures anything.
type Noop struct{}

// Capture implements Capturer.
func (Noop) Capture(context.Context) ([]byte, error) {
	return nil, ErrCaptureUnavailable
}

type timeoutCapturer struct {
	inner   Capturer
	timeout time.Duration
}

// WithTimeout bounds every capture by d. A zero d returns c unchanged.
func WithTimeout(c Capturer, d time.Duration) Capturer {
	if d <= 0 || c == nil {
		return c
	}
	return &timeoutCapturer{inner: c, timeout: d}
}

func (t *timeoutCapturer) Capture(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("capture panicked: %v", r)}
			}
		}()
		data, err := t.inner.Capture(ctx)
		done <- result{data, err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("capture timed out after %s: %w", t.timeout, ctx.Err())
	}
}

// Try runs c and reports whether it produced a non-empty image. Errors and
// panics from the capturer are swallowed.
func Try(ctx context.Context, c Capturer) (data []byte, ok bool) {
	if c == nil {
		return nil, false
	}
	defer func() {
		if r := recover(); r != nil {
			data, ok = nil, false
		}
	}()
	data, err := c.Capture(ctx)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}
