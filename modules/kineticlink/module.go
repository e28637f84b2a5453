// Package kineticlink resolves clicks on content links into navigation
// decisions.
//
// The resolver sits inside a single click handler, so it reads only local
// state: modifier clicks and nested interactive targets bypass untouched,
// cached targets open in place, everything else falls through to a real
// navigation. No fetch ever runs on this path.
package kineticlink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kinetic/pkg/kinetic"
)

// Option mutates link resolver configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(module *Module) {
		if logger != nil {
			module.logger = logger
		}
	}
}

// Module is the navigation intent resolver for one session.
type Module struct {
	logger      *slog.Logger
	cache       kinetic.ContentCache
	transitions kinetic.TransitionRegister
	overlay     kinetic.OverlayController
}

// New creates a link resolver module.
func New(options ...Option) *Module {
	module := &Module{
		logger: slog.Default(),
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "kinetic-link"
}

// Spec declares the module's capabilities. Resolution is synchronous; the
// resolver consumes no events.
func (m *Module) Spec() kinetic.ModuleSpec {
	return kinetic.ModuleSpec{
		AdditionalCapabilities: []kinetic.Capability{
			{
				Name:        "navigation-intent",
				Description: "classifies content link clicks as bypass, intercept, or fallthrough",
				RequiredServices: []string{
					kinetic.ServiceContentCache,
					kinetic.ServiceTransitionRegister,
					kinetic.ServiceOverlayController,
				},
			},
		},
	}
}

// OnRegister resolves collaborators and registers the LinkResolver service.
func (m *Module) OnRegister(_ context.Context, runtime kinetic.ModuleRuntime) error {
	logger, err := kinetic.ResolveAs[*slog.Logger](runtime.Services(), kinetic.ServiceLogger)
	switch {
	case err == nil:
		m.logger = logger
	case errors.Is(err, kinetic.ErrServiceNotFound):
	default:
		return fmt.Errorf("kinetic link resolve logger: %w", err)
	}

	cache, err := kinetic.ResolveAs[kinetic.ContentCache](runtime.Services(), kinetic.ServiceContentCache)
	if err != nil {
		return fmt.Errorf("kinetic link resolve content cache: %w", err)
	}
	m.cache = cache

	transitions, err := kinetic.ResolveAs[kinetic.TransitionRegister](runtime.Services(), kinetic.ServiceTransitionRegister)
	if err != nil {
		return fmt.Errorf("kinetic link resolve transition register: %w", err)
	}
	m.transitions = transitions

	overlay, err := kinetic.ResolveAs[kinetic.OverlayController](runtime.Services(), kinetic.ServiceOverlayController)
	if err != nil {
		return fmt.Errorf("kinetic link resolve overlay controller: %w", err)
	}
	m.overlay = overlay

	if err := runtime.Services().Register(kinetic.ServiceLinkResolver, m); err != nil {
		return fmt.Errorf("kinetic link register service %s: %w", kinetic.ServiceLinkResolver, err)
	}

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(ctx context.Context) error {
	m.logger.InfoContext(ctx, "kinetic link module started", "module", m.Name())

	return nil
}

// OnShutdown stops the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

// Resolve classifies one click.
//
// The platform keeps modifier clicks and nested interactive targets. A cached
// target opens in place; anything the cache misses falls through to a real
// navigation rather than waiting on a fetch.
func (m *Module) Resolve(ctx context.Context, intent kinetic.ClickIntent) (kinetic.Decision, error) {
	if intent.Modifier {
		return kinetic.Decision{Kind: kinetic.DecisionBypass, Reason: "modifier click"}, nil
	}
	if intent.NestedInteractive {
		return kinetic.Decision{Kind: kinetic.DecisionBypass, Reason: "nested interactive target"}, nil
	}
	if intent.Slug == "" {
		return kinetic.Decision{Kind: kinetic.DecisionFallthrough, Reason: "missing slug"}, nil
	}
	if !intent.Type.Valid() {
		return kinetic.Decision{Kind: kinetic.DecisionFallthrough, Reason: "unknown content type"}, nil
	}
	if !m.cache.Contains(intent.Slug) {
		m.logger.DebugContext(ctx, "link target not cached, falling through",
			"slug", intent.Slug,
			"type", intent.Type,
		)
		return kinetic.Decision{Kind: kinetic.DecisionFallthrough, Reason: "cache miss"}, nil
	}

	if intent.Scope != kinetic.ScopeNone {
		m.transitions.Set(intent.Scope)
	} else {
		m.transitions.Reset()
	}

	err := m.overlay.Open(ctx, kinetic.OpenRequest{
		Slug:       intent.Slug,
		Type:       intent.Type,
		Scope:      intent.Scope,
		VirtualURL: intent.Href,
	})
	if err != nil {
		m.transitions.Reset()
		m.logger.WarnContext(ctx, "overlay open failed, falling through",
			"slug", intent.Slug,
			"error", err,
		)
		return kinetic.Decision{Kind: kinetic.DecisionFallthrough, Reason: "overlay open failed"}, nil
	}

	return kinetic.Decision{Kind: kinetic.DecisionIntercept, Reason: "cache hit"}, nil
}

var (
	_ kinetic.Module       = (*Module)(nil)
	_ kinetic.LinkResolver = (*Module)(nil)
)
