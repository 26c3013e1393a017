// Package strategy selects which lifecycle hooks apply to an execution context.
package strategy

import (
	"fmt"
	"slices"

	"github.com/ormasoftchile/steprunner/pkg/schema"
)

// Strategy computes the ordered subset of hooks to run for the active tags.
// Implementations are stateless; callers pass the tags fresh on every call.
type Strategy interface {
	SelectApplicable(kind schema.HookKind, contextTags []string, handles []*schema.HookHandle) []*schema.HookHandle
}

// Hook order names accepted by New.
const (
	OrderDiscovery     = "discovery"
	OrderUntaggedFirst = "untagged-first"
	OrderTaggedFirst   = "tagged-first"
)

// New returns the strategy registered under order.
func New(order string) (Strategy, error) {
	switch order {
	case "", OrderDiscovery:
		return Ordered{}, nil
	case OrderUntaggedFirst:
		return UntaggedFirst{}, nil
	case OrderTaggedFirst:
		return TaggedFirst{}, nil
	default:
		return nil, fmt.Errorf("unknown hook order %q", order)
	}
}

// Ordered keeps matching hooks in discovery order.
type Ordered struct{}

// SelectApplicable implements Strategy.
func (Ordered) SelectApplicable(_ schema.HookKind, contextTags []string, handles []*schema.HookHandle) []*schema.HookHandle {
	var selected []*schema.HookHandle
	for _, h := range handles {
		if Matches(h, contextTags) {
			selected = append(selected, h)
		}
	}
	return selected
}

// UntaggedFirst runs unfiltered hooks before filtered ones, each group in
// discovery order.
type UntaggedFirst struct{}

// SelectApplicable implements Strategy.
func (UntaggedFirst) SelectApplicable(kind schema.HookKind, contextTags []string, handles []*schema.HookHandle) []*schema.HookHandle {
	untagged, tagged := partition(Ordered{}.SelectApplicable(kind, contextTags, handles))
	return append(untagged, tagged...)
}

// TaggedFirst runs filtered hooks before unfiltered ones, each group in
// discovery order.
type TaggedFirst struct{}

// SelectApplicable implements Strategy.
func (TaggedFirst) SelectApplicable(kind schema.HookKind, contextTags []string, handles []*schema.HookHandle) []*schema.HookHandle {
	untagged, tagged := partition(Ordered{}.SelectApplicable(kind, contextTags, handles))
	return append(tagged, untagged...)
}

func partition(handles []*schema.HookHandle) (untagged, tagged []*schema.HookHandle) {
	for _, h := range handles {
		if h.IsTagged() {
			tagged = append(tagged, h)
		} else {
			untagged = append(untagged, h)
		}
	}
	return untagged, tagged
}

// Matches reports whether h applies to contextTags. A hook with no filter
// tags and no expression always matches.
func Matches(h *schema.HookHandle, contextTags []string) bool {
	if len(h.FilterTags) > 0 && !matchTags(h.FilterTags, h.AggregationMode(), contextTags) {
		return false
	}
	if h.Expression != "" {
		ok, err := EvalExpression(h.Expression, contextTags)
		if err != nil {
			return false
		}
		return ok
	}
	return true
}

func matchTags(filter []string, mode schema.TagAggregation, contextTags []string) bool {
	if mode == schema.AggregateOr {
		for _, tag := range filter {
			if slices.Contains(contextTags, tag) {
				return true
			}
		}
		return false
	}
	for _, tag := range filter {
		if !slices.Contains(contextTags, tag) {
			return false
		}
	}
	return true
}
