package kineticlink

import (
	"context"
	"errors"
	"io"
	"testing"

	"kinetic/modules/contentcache"
	"kinetic/modules/transition"
	"kinetic/pkg/kinetic"
)

type stubOverlay struct {
	requests []kinetic.OpenRequest
	openErr  error
}

func (o *stubOverlay) Open(_ context.Context, request kinetic.OpenRequest) error {
	o.requests = append(o.requests, request)

	return o.openErr
}

func (o *stubOverlay) Close(context.Context) error { return nil }

func (o *stubOverlay) State() kinetic.OverlayState { return kinetic.OverlayState{} }

func (o *stubOverlay) Render(context.Context, io.Writer) error { return nil }

func newResolver(overlay *stubOverlay) (*Module, *transition.Module) {
	cache := contentcache.New()
	cache.HydrateContent([]kinetic.ContentDocument{
		{Slug: "hades-review", Type: kinetic.ContentTypeReview},
	})
	transitions := transition.New()

	module := New()
	module.cache = cache
	module.transitions = transitions
	module.overlay = overlay

	return module, transitions
}

func TestResolveDecisions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		intent kinetic.ClickIntent
		want   kinetic.DecisionKind
	}{
		{
			name: "modifier click bypasses",
			intent: kinetic.ClickIntent{
				Slug: "hades-review", Type: kinetic.ContentTypeReview, Modifier: true,
			},
			want: kinetic.DecisionBypass,
		},
		{
			name: "nested interactive bypasses",
			intent: kinetic.ClickIntent{
				Slug: "hades-review", Type: kinetic.ContentTypeReview, NestedInteractive: true,
			},
			want: kinetic.DecisionBypass,
		},
		{
			name:   "missing slug falls through",
			intent: kinetic.ClickIntent{Type: kinetic.ContentTypeReview},
			want:   kinetic.DecisionFallthrough,
		},
		{
			name:   "unknown type falls through",
			intent: kinetic.ClickIntent{Slug: "hades-review", Type: kinetic.ContentType("podcast")},
			want:   kinetic.DecisionFallthrough,
		},
		{
			name:   "cache miss falls through",
			intent: kinetic.ClickIntent{Slug: "not-cached", Type: kinetic.ContentTypeReview},
			want:   kinetic.DecisionFallthrough,
		},
		{
			name:   "cache hit intercepts",
			intent: kinetic.ClickIntent{Slug: "hades-review", Type: kinetic.ContentTypeReview},
			want:   kinetic.DecisionIntercept,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			module, _ := newResolver(&stubOverlay{})
			decision, err := module.Resolve(context.Background(), test.intent)
			if err != nil {
				t.Fatalf("resolve failed: %v", err)
			}
			if decision.Kind != test.want {
				t.Fatalf("decision = %s (%s), want %s", decision.Kind, decision.Reason, test.want)
			}
		})
	}
}

func TestResolveInterceptOpensOverlayWithScope(t *testing.T) {
	t.Parallel()

	overlay := &stubOverlay{}
	module, transitions := newResolver(overlay)

	decision, err := module.Resolve(context.Background(), kinetic.ClickIntent{
		Slug:  "hades-review",
		Type:  kinetic.ContentTypeReview,
		Href:  "/review/hades-review",
		Scope: kinetic.Scope("card-hades"),
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if decision.Kind != kinetic.DecisionIntercept {
		t.Fatalf("decision = %s, want intercept", decision.Kind)
	}
	if got := transitions.Get(); got != kinetic.Scope("card-hades") {
		t.Fatalf("scope = %q, want card-hades", got)
	}
	if len(overlay.requests) != 1 {
		t.Fatalf("open calls = %d, want 1", len(overlay.requests))
	}
	request := overlay.requests[0]
	if request.Slug != "hades-review" || request.VirtualURL != "/review/hades-review" {
		t.Fatalf("open request = %+v", request)
	}
}

func TestResolveScopelessInterceptResetsRegister(t *testing.T) {
	t.Parallel()

	module, transitions := newResolver(&stubOverlay{})
	transitions.Set(kinetic.Scope("stale"))

	decision, err := module.Resolve(context.Background(), kinetic.ClickIntent{
		Slug: "hades-review",
		Type: kinetic.ContentTypeReview,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if decision.Kind != kinetic.DecisionIntercept {
		t.Fatalf("decision = %s, want intercept", decision.Kind)
	}
	if got := transitions.Get(); got != kinetic.ScopeNone {
		t.Fatalf("scope = %q, want ScopeNone", got)
	}
}

func TestResolveOverlayFailureFallsThrough(t *testing.T) {
	t.Parallel()

	overlay := &stubOverlay{openErr: errors.New("document evicted")}
	module, transitions := newResolver(overlay)

	decision, err := module.Resolve(context.Background(), kinetic.ClickIntent{
		Slug:  "hades-review",
		Type:  kinetic.ContentTypeReview,
		Scope: kinetic.Scope("card-hades"),
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if decision.Kind != kinetic.DecisionFallthrough {
		t.Fatalf("decision = %s, want fallthrough", decision.Kind)
	}
	if got := transitions.Get(); got != kinetic.ScopeNone {
		t.Fatalf("scope = %q, want reset after failed open", got)
	}
}
