// Package transition holds the single active shared-element transition scope.
//
// A card that launches an overlay and the overlay that opens from it agree on
// a scope value so the motion layer can pair their elements. Only one pairing
// can be live at a time; setting a new scope replaces the previous one.
package transition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"kinetic/pkg/kinetic"
)

// Option mutates transition module configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(module *Module) {
		if logger != nil {
			module.logger = logger
		}
	}
}

// Module is the session-wide transition scope register.
type Module struct {
	logger *slog.Logger

	mu    sync.RWMutex
	scope kinetic.Scope
}

// New creates a register holding the ScopeNone sentinel.
func New(options ...Option) *Module {
	module := &Module{
		logger: slog.Default(),
		scope:  kinetic.ScopeNone,
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "transition-register"
}

// Spec declares the module's capabilities.
func (m *Module) Spec() kinetic.ModuleSpec {
	return kinetic.ModuleSpec{
		AdditionalCapabilities: []kinetic.Capability{
			{
				Name:        "transition-scope",
				Description: "tracks the single active shared-element transition pairing",
			},
		},
	}
}

// OnRegister registers this module as the shared TransitionRegister service.
func (m *Module) OnRegister(_ context.Context, runtime kinetic.ModuleRuntime) error {
	logger, err := kinetic.ResolveAs[*slog.Logger](runtime.Services(), kinetic.ServiceLogger)
	switch {
	case err == nil:
		m.logger = logger
	case errors.Is(err, kinetic.ErrServiceNotFound):
	default:
		return fmt.Errorf("transition register resolve logger: %w", err)
	}

	if err := runtime.Services().Register(kinetic.ServiceTransitionRegister, m); err != nil {
		return fmt.Errorf("transition register register service %s: %w", kinetic.ServiceTransitionRegister, err)
	}

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(ctx context.Context) error {
	m.logger.InfoContext(ctx, "transition register started", "module", m.Name())

	return nil
}

// OnShutdown resets the register.
func (m *Module) OnShutdown(_ context.Context) error {
	m.Reset()

	return nil
}

// Get returns the active scope.
func (m *Module) Get() kinetic.Scope {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.scope
}

// Set makes scope the active pairing, replacing any previous value.
func (m *Module) Set(scope kinetic.Scope) {
	m.mu.Lock()
	m.scope = scope
	m.mu.Unlock()
}

// Reset restores the ScopeNone sentinel.
func (m *Module) Reset() {
	m.Set(kinetic.ScopeNone)
}

var (
	_ kinetic.Module             = (*Module)(nil)
	_ kinetic.TransitionRegister = (*Module)(nil)
)
