// Package session assembles one full client session: the kernel, the history
// driver, and every navigation module, wired in dependency order. One Session
// models one browser tab.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"kinetic/internal/driver/memhistory"
	"kinetic/internal/kernel"
	"kinetic/internal/render"
	"kinetic/modules/bootstrap"
	"kinetic/modules/contentcache"
	"kinetic/modules/hydrate"
	"kinetic/modules/kineticlink"
	"kinetic/modules/overlay"
	"kinetic/modules/transition"
	"kinetic/pkg/kinetic"
)

// Option mutates session construction configuration.
type Option func(*config)

type config struct {
	logger     *slog.Logger
	startURL   string
	deferDelay time.Duration
	scheduler  bootstrap.Scheduler
	registerer prometheus.Registerer
}

// WithLogger sets the logger shared by every component in the session.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithStartURL sets the session's initial address.
func WithStartURL(url string) Option {
	return func(cfg *config) {
		if url != "" {
			cfg.startURL = url
		}
	}
}

// WithBootstrapDeferDelay sets the background bootstrap fetch delay.
func WithBootstrapDeferDelay(delay time.Duration) Option {
	return func(cfg *config) {
		if delay > 0 {
			cfg.deferDelay = delay
		}
	}
}

// WithBootstrapScheduler overrides how the deferred bootstrap fetch is
// scheduled.
func WithBootstrapScheduler(scheduler bootstrap.Scheduler) Option {
	return func(cfg *config) {
		if scheduler != nil {
			cfg.scheduler = scheduler
		}
	}
}

// WithMetricsRegistry exports the session's lifecycle counters through a host
// scrape registry.
func WithMetricsRegistry(registerer prometheus.Registerer) Option {
	return func(cfg *config) {
		if registerer != nil {
			cfg.registerer = registerer
		}
	}
}

// Session is one fully wired client session.
type Session struct {
	logger  *slog.Logger
	kernel  *kernel.Kernel
	history *memhistory.Driver

	cache       *contentcache.Module
	transitions *transition.Module
	hydrator    *hydrate.Module
	overlay     *overlay.Module
	resolver    *kineticlink.Module
	loader      *bootstrap.Module

	clock func() time.Time
	newID func() string
}

// New wires a session against the given upstream fetcher.
func New(ctx context.Context, fetcher kinetic.ContentFetcher, options ...Option) (*Session, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("new session: nil fetcher")
	}

	cfg := config{
		logger:   slog.Default(),
		startURL: "/",
	}
	for _, option := range options {
		option(&cfg)
	}

	core := kernel.New(kernel.WithLogger(cfg.logger))
	if err := core.RegisterService(kinetic.ServiceLogger, cfg.logger); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	if err := core.RegisterService(kinetic.ServiceContentFetcher, fetcher); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	history := memhistory.New("history",
		memhistory.WithLogger(cfg.logger),
		memhistory.WithStartURL(cfg.startURL),
	)
	if err := core.RegisterService(kinetic.ServiceNavigationPort, history); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	if err := core.RegisterService(kinetic.ServiceScrollPort, history); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	if err := core.RegisterDriver(history); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	renderer, err := render.New(render.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	if err := core.RegisterService(kinetic.ServiceDetailRenderer, renderer); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	overlayOptions := []overlay.Option{overlay.WithLogger(cfg.logger)}
	if cfg.registerer != nil {
		overlayOptions = append(overlayOptions, overlay.WithMetricsRegistry(cfg.registerer))
	}

	s := &Session{
		logger:      cfg.logger,
		kernel:      core,
		history:     history,
		cache:       contentcache.New(contentcache.WithLogger(cfg.logger)),
		transitions: transition.New(),
		hydrator:    hydrate.New(hydrate.WithLogger(cfg.logger)),
		overlay:     overlay.New(overlayOptions...),
		resolver:    kineticlink.New(kineticlink.WithLogger(cfg.logger)),
		clock:       time.Now,
		newID:       uuid.NewString,
	}

	loaderOptions := []bootstrap.Option{bootstrap.WithLogger(cfg.logger)}
	if cfg.deferDelay > 0 {
		loaderOptions = append(loaderOptions, bootstrap.WithDeferDelay(cfg.deferDelay))
	}
	if cfg.scheduler != nil {
		loaderOptions = append(loaderOptions, bootstrap.WithScheduler(cfg.scheduler))
	}
	s.loader = bootstrap.New(loaderOptions...)

	// Registration order is dependency order: each module's OnRegister
	// publishes the service the next one resolves.
	modules := []kinetic.Module{
		s.cache,
		s.transitions,
		s.hydrator,
		s.overlay,
		s.resolver,
		s.loader,
	}
	for _, module := range modules {
		if err := core.RegisterModule(ctx, module); err != nil {
			return nil, fmt.Errorf("new session: %w", err)
		}
	}

	return s, nil
}

// Run starts the session and blocks until context cancellation.
func (s *Session) Run(ctx context.Context) error {
	if err := s.kernel.Run(ctx); err != nil {
		return fmt.Errorf("session run: %w", err)
	}

	return nil
}

// RenderPage publishes a page.rendered event on behalf of a page mount.
func (s *Session) RenderPage(ctx context.Context, page kinetic.PageRender) error {
	event := &kinetic.Event{
		ID:         s.newID(),
		Kind:       kinetic.EventKindPageRendered,
		OccurredAt: s.clock(),
		Page:       &page,
	}
	if err := s.kernel.EventBus().Publish(ctx, event); err != nil {
		return fmt.Errorf("render page %s: %w", page.MountID, err)
	}

	return nil
}

// Click resolves one content link click.
func (s *Session) Click(ctx context.Context, intent kinetic.ClickIntent) (kinetic.Decision, error) {
	return s.resolver.Resolve(ctx, intent)
}

// Cache exposes the session content cache.
func (s *Session) Cache() kinetic.ContentCache {
	return s.cache
}

// Overlay exposes the overlay controller.
func (s *Session) Overlay() kinetic.OverlayController {
	return s.overlay
}

// Transitions exposes the transition scope register.
func (s *Session) Transitions() kinetic.TransitionRegister {
	return s.transitions
}

// History exposes the in-memory history driver.
func (s *Session) History() *memhistory.Driver {
	return s.history
}

// Ready reports whether the session bootstrap decision was made.
func (s *Session) Ready() bool {
	return s.loader.Ready()
}

// EventBus exposes the kernel event bus.
func (s *Session) EventBus() kinetic.EventBus {
	return s.kernel.EventBus()
}
