// Package bootstrap decides, once per session, how the content cache gets its
// baseline: inline from the home route's universal payload, or from a deferred
// background fetch when the session starts anywhere else.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kinetic/pkg/kinetic"
)

const (
	defaultDeferDelay   = 2 * time.Second
	defaultFetchTimeout = 10 * time.Second
)

// Scheduler defers a task and returns a stop func that cancels it if it has
// not run yet.
type Scheduler func(delay time.Duration, task func()) (stop func())

// Option mutates bootstrap module configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(module *Module) {
		if logger != nil {
			module.logger = logger
		}
	}
}

// WithScheduler overrides how the deferred fetch is scheduled.
func WithScheduler(scheduler Scheduler) Option {
	return func(module *Module) {
		if scheduler != nil {
			module.scheduler = scheduler
		}
	}
}

// WithDeferDelay sets how long after the first render the background fetch
// waits. The delay keeps the fetch off the initial render path.
func WithDeferDelay(delay time.Duration) Option {
	return func(module *Module) {
		if delay > 0 {
			module.deferDelay = delay
		}
	}
}

// WithFetchTimeout bounds the deferred bootstrap fetch.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(module *Module) {
		if timeout > 0 {
			module.fetchTimeout = timeout
		}
	}
}

// Module is the session bootstrap loader.
type Module struct {
	logger       *slog.Logger
	cache        kinetic.ContentCache
	fetcher      kinetic.ContentFetcher
	hydrator     kinetic.Hydrator
	scheduler    Scheduler
	deferDelay   time.Duration
	fetchTimeout time.Duration

	session sync.Once

	mu    sync.Mutex
	ready bool
	stop  func()
}

// New creates a bootstrap module.
func New(options ...Option) *Module {
	module := &Module{
		logger:       slog.Default(),
		deferDelay:   defaultDeferDelay,
		fetchTimeout: defaultFetchTimeout,
	}
	module.scheduler = func(delay time.Duration, task func()) func() {
		timer := time.AfterFunc(delay, task)
		return func() { timer.Stop() }
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "bootstrap"
}

// Spec declares the first-render trigger.
func (m *Module) Spec() kinetic.ModuleSpec {
	return kinetic.ModuleSpec{
		Handlers: []kinetic.ModuleHandler{
			{
				Capability: kinetic.Capability{
					Name:        "session-bootstrap",
					Description: "establishes the session content baseline from the first rendered page",
					Interest: kinetic.InterestSet{
						Kinds:       []kinetic.EventKind{kinetic.EventKindPageRendered},
						RequirePage: true,
					},
					RequiredServices: []string{
						kinetic.ServiceContentCache,
						kinetic.ServiceContentFetcher,
						kinetic.ServiceHydrator,
					},
				},
				Subscription: kinetic.NewDefaultSubscriptionSpec("session-bootstrap"),
				Handler:      m.handlePageRendered,
			},
		},
	}
}

// OnRegister resolves collaborators and registers the BootstrapLoader service.
func (m *Module) OnRegister(_ context.Context, runtime kinetic.ModuleRuntime) error {
	logger, err := kinetic.ResolveAs[*slog.Logger](runtime.Services(), kinetic.ServiceLogger)
	switch {
	case err == nil:
		m.logger = logger
	case errors.Is(err, kinetic.ErrServiceNotFound):
	default:
		return fmt.Errorf("bootstrap resolve logger: %w", err)
	}

	cache, err := kinetic.ResolveAs[kinetic.ContentCache](runtime.Services(), kinetic.ServiceContentCache)
	if err != nil {
		return fmt.Errorf("bootstrap resolve content cache: %w", err)
	}
	m.cache = cache

	fetcher, err := kinetic.ResolveAs[kinetic.ContentFetcher](runtime.Services(), kinetic.ServiceContentFetcher)
	if err != nil {
		return fmt.Errorf("bootstrap resolve content fetcher: %w", err)
	}
	m.fetcher = fetcher

	hydrator, err := kinetic.ResolveAs[kinetic.Hydrator](runtime.Services(), kinetic.ServiceHydrator)
	if err != nil {
		return fmt.Errorf("bootstrap resolve hydrator: %w", err)
	}
	m.hydrator = hydrator

	if err := runtime.Services().Register(kinetic.ServiceBootstrapLoader, m); err != nil {
		return fmt.Errorf("bootstrap register service %s: %w", kinetic.ServiceBootstrapLoader, err)
	}

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(ctx context.Context) error {
	m.logger.InfoContext(ctx, "bootstrap module started", "module", m.Name())

	return nil
}

// OnShutdown cancels any still-pending deferred fetch.
func (m *Module) OnShutdown(_ context.Context) error {
	m.mu.Lock()
	stop := m.stop
	m.stop = nil
	m.mu.Unlock()

	if stop != nil {
		stop()
	}

	return nil
}

// Ready reports whether the bootstrap decision for this session was made.
func (m *Module) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.ready
}

// handlePageRendered makes the one-shot bootstrap decision on the first
// rendered page. Later renders are ignored regardless of route.
func (m *Module) handlePageRendered(ctx context.Context, event *kinetic.Event) error {
	m.session.Do(func() {
		page := event.Page
		if page.Route == kinetic.RouteKindHome && page.Bootstrap != nil && !page.Bootstrap.Empty() {
			m.hydrator.HydrateUniversal(ctx, *page.Bootstrap)
			m.markReady()
			m.logger.InfoContext(ctx, "session bootstrapped inline",
				"documents", len(page.Bootstrap.Documents),
				"snapshots", len(page.Bootstrap.Snapshots),
			)
			return
		}

		// Non-home entry: the page is already interactive, so readiness does
		// not wait for the warm-up fetch.
		m.markReady()
		stop := m.scheduler(m.deferDelay, m.runDeferredFetch)
		m.mu.Lock()
		m.stop = stop
		m.mu.Unlock()
		m.logger.InfoContext(ctx, "session bootstrap deferred",
			"route", page.Route,
			"delay", m.deferDelay,
		)
	})

	return nil
}

// runDeferredFetch warms the cache in the background. A session whose cache
// already holds documents skips the fetch; hydration that beat the timer
// covered it.
func (m *Module) runDeferredFetch() {
	ctx, cancel := context.WithTimeout(context.Background(), m.fetchTimeout)
	defer cancel()

	if stats := m.cache.Stats(); stats.Documents > 0 {
		m.logger.DebugContext(ctx, "deferred bootstrap skipped, cache already warm",
			"documents", stats.Documents,
		)
		return
	}

	payload, err := m.fetcher.FetchBootstrap(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "deferred bootstrap fetch failed", "error", err)
		return
	}
	m.hydrator.HydrateUniversal(ctx, payload)
}

func (m *Module) markReady() {
	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()
}

var (
	_ kinetic.Module          = (*Module)(nil)
	_ kinetic.BootstrapLoader = (*Module)(nil)
)
