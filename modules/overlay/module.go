package overlay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"kinetic/pkg/kinetic"
)

// Option mutates overlay module configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(module *Module) {
		if logger != nil {
			module.logger = logger
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(module *Module) {
		if clock != nil {
			module.clock = clock
		}
	}
}

// WithIDGenerator overrides the event ID source.
func WithIDGenerator(generator func() string) Option {
	return func(module *Module) {
		if generator != nil {
			module.newID = generator
		}
	}
}

// WithMetricsRegistry registers the overlay lifecycle counters with a host
// scrape registry. Without it the counters still count but are not exported.
func WithMetricsRegistry(registerer prometheus.Registerer) Option {
	return func(module *Module) {
		if registerer != nil {
			registerer.MustRegister(module.opens, module.closes)
		}
	}
}

// Module owns the overlay presentation lifecycle for one session.
type Module struct {
	logger      *slog.Logger
	cache       kinetic.ContentCache
	nav         kinetic.NavigationPort
	scroll      kinetic.ScrollPort
	transitions kinetic.TransitionRegister
	renderer    kinetic.DetailRenderer
	sink        kinetic.EventSink
	clock       func() time.Time
	newID       func() string
	opens       *prometheus.CounterVec
	closes      *prometheus.CounterVec

	mu          sync.Mutex
	open        bool
	slug        string
	contentType kinetic.ContentType
	virtualURL  string
	savedURL    string
	savedOffset int
	release     func()
}

// New creates an overlay module.
func New(options ...Option) *Module {
	module := &Module{
		logger: slog.Default(),
		clock:  time.Now,
		newID:  uuid.NewString,
		opens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kinetic_overlay_opens_total",
			Help: "Overlay presentations by content type.",
		}, []string{"type"}),
		closes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kinetic_overlay_closes_total",
			Help: "Overlay dismissals by cause.",
		}, []string{"cause"}),
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "overlay"
}

// Spec declares which navigation events the controller reacts to.
func (m *Module) Spec() kinetic.ModuleSpec {
	return kinetic.ModuleSpec{
		Handlers: []kinetic.ModuleHandler{
			{
				Capability: kinetic.Capability{
					Name:        "overlay-history-close",
					Description: "dismisses the open overlay when the platform pops its synthetic history entry",
					Interest: kinetic.InterestSet{
						Kinds:          []kinetic.EventKind{kinetic.EventKindHistoryPopped},
						RequireHistory: true,
					},
					RequiredServices: []string{
						kinetic.ServiceContentCache,
						kinetic.ServiceNavigationPort,
						kinetic.ServiceScrollPort,
						kinetic.ServiceTransitionRegister,
						kinetic.ServiceDetailRenderer,
					},
				},
				Subscription: kinetic.NewDefaultSubscriptionSpec("overlay-history-close"),
				Handler:      m.handleHistoryPopped,
			},
			{
				Capability: kinetic.Capability{
					Name:        "overlay-route-cleanup",
					Description: "clears overlay state when a real navigation replaces the page underneath it",
					Interest: kinetic.InterestSet{
						Kinds: []kinetic.EventKind{kinetic.EventKindRouteChanged},
					},
				},
				Subscription: kinetic.NewDefaultSubscriptionSpec("overlay-route-cleanup"),
				Handler:      m.handleRouteChanged,
			},
		},
	}
}

// OnRegister resolves collaborators and registers the OverlayController service.
func (m *Module) OnRegister(_ context.Context, runtime kinetic.ModuleRuntime) error {
	logger, err := kinetic.ResolveAs[*slog.Logger](runtime.Services(), kinetic.ServiceLogger)
	switch {
	case err == nil:
		m.logger = logger
	case errors.Is(err, kinetic.ErrServiceNotFound):
	default:
		return fmt.Errorf("overlay resolve logger: %w", err)
	}

	cache, err := kinetic.ResolveAs[kinetic.ContentCache](runtime.Services(), kinetic.ServiceContentCache)
	if err != nil {
		return fmt.Errorf("overlay resolve content cache: %w", err)
	}
	m.cache = cache

	nav, err := kinetic.ResolveAs[kinetic.NavigationPort](runtime.Services(), kinetic.ServiceNavigationPort)
	if err != nil {
		return fmt.Errorf("overlay resolve navigation port: %w", err)
	}
	m.nav = nav

	scroll, err := kinetic.ResolveAs[kinetic.ScrollPort](runtime.Services(), kinetic.ServiceScrollPort)
	if err != nil {
		return fmt.Errorf("overlay resolve scroll port: %w", err)
	}
	m.scroll = scroll

	transitions, err := kinetic.ResolveAs[kinetic.TransitionRegister](runtime.Services(), kinetic.ServiceTransitionRegister)
	if err != nil {
		return fmt.Errorf("overlay resolve transition register: %w", err)
	}
	m.transitions = transitions

	renderer, err := kinetic.ResolveAs[kinetic.DetailRenderer](runtime.Services(), kinetic.ServiceDetailRenderer)
	if err != nil {
		return fmt.Errorf("overlay resolve detail renderer: %w", err)
	}
	m.renderer = renderer

	sink, err := kinetic.ResolveAs[kinetic.EventSink](runtime.Services(), kinetic.ServiceEventSink)
	switch {
	case err == nil:
		m.sink = sink
	case errors.Is(err, kinetic.ErrServiceNotFound):
	default:
		return fmt.Errorf("overlay resolve event sink: %w", err)
	}

	if err := runtime.Services().Register(kinetic.ServiceOverlayController, m); err != nil {
		return fmt.Errorf("overlay register service %s: %w", kinetic.ServiceOverlayController, err)
	}

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(ctx context.Context) error {
	m.logger.InfoContext(ctx, "overlay module started", "module", m.Name())

	return nil
}

// OnShutdown tears down any open overlay without touching history.
func (m *Module) OnShutdown(ctx context.Context) error {
	m.dismiss(ctx, "shutdown", false, false)

	return nil
}

// Open presents the overlay for a cached document.
//
// Opening while already open retargets the presented document and replaces
// the synthetic history entry in place, so the back button still needs only
// one press.
func (m *Module) Open(ctx context.Context, request kinetic.OpenRequest) error {
	if request.Slug == "" {
		return errors.New("overlay open: empty slug")
	}
	if !request.Type.Valid() {
		return fmt.Errorf("overlay open: unknown content type %q", request.Type)
	}
	if !m.cache.Contains(request.Slug) {
		return fmt.Errorf("overlay open %s: %w", request.Slug, kinetic.ErrCacheMiss)
	}

	virtualURL := request.VirtualURL
	if virtualURL == "" {
		virtualURL = "/" + string(request.Type) + "/" + request.Slug
	}
	entry := kinetic.HistoryEntry{
		URL: virtualURL,
		State: kinetic.EntryState{
			Overlay: true,
			Slug:    request.Slug,
			Type:    request.Type,
		},
	}

	m.mu.Lock()
	wasOpen := m.open
	m.open = true
	m.slug = request.Slug
	m.contentType = request.Type
	m.virtualURL = virtualURL
	if !wasOpen {
		m.savedURL = m.nav.CurrentURL()
		m.savedOffset = m.scroll.Offset()
		m.release = m.scroll.Lock()
	}
	m.mu.Unlock()

	if wasOpen {
		m.nav.Replace(entry)
	} else {
		m.nav.Push(entry)
	}

	m.opens.WithLabelValues(string(request.Type)).Inc()
	m.publish(ctx, kinetic.EventKindOverlayOpened, kinetic.OverlayChange{
		Slug:       request.Slug,
		Type:       request.Type,
		VirtualURL: virtualURL,
	})
	m.logger.DebugContext(ctx, "overlay opened",
		"slug", request.Slug,
		"type", request.Type,
		"retarget", wasOpen,
	)

	return nil
}

// Close dismisses the overlay and restores the saved address and scroll
// position. Closing while closed is a no-op.
func (m *Module) Close(ctx context.Context) error {
	m.dismiss(ctx, "close", true, true)

	return nil
}

// State returns a snapshot of the controller state.
func (m *Module) State() kinetic.OverlayState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return kinetic.OverlayState{
		IsOpen:            m.open,
		TargetSlug:        m.slug,
		TargetType:        m.contentType,
		SavedURL:          m.savedURL,
		SavedScrollOffset: m.savedOffset,
	}
}

// Render writes the presented document's detail view to w.
func (m *Module) Render(ctx context.Context, w io.Writer) error {
	m.mu.Lock()
	open := m.open
	slug := m.slug
	m.mu.Unlock()

	if !open {
		return kinetic.ErrOverlayNotOpen
	}

	document, found := m.cache.GetBySlug(slug)
	if !found {
		return fmt.Errorf("overlay render %s: %w", slug, kinetic.ErrCacheMiss)
	}

	return m.renderer.RenderDetail(ctx, w, document, m.transitions.Get())
}

// handleHistoryPopped closes the overlay after the platform already moved
// history back to the saved entry.
func (m *Module) handleHistoryPopped(ctx context.Context, event *kinetic.Event) error {
	m.mu.Lock()
	open := m.open
	m.mu.Unlock()
	if !open {
		return nil
	}

	m.logger.DebugContext(ctx, "overlay closed by history pop", "url", event.History.Entry.URL)
	m.dismiss(ctx, "history_pop", true, true)

	return nil
}

// handleRouteChanged clears overlay state when a real navigation replaces the
// page. The new route owns history and scroll, so neither is touched.
func (m *Module) handleRouteChanged(ctx context.Context, event *kinetic.Event) error {
	m.mu.Lock()
	open := m.open
	m.mu.Unlock()
	if !open {
		return nil
	}

	m.logger.DebugContext(ctx, "overlay cleared by route change", "url", event.Route.URL)
	m.dismiss(ctx, "route_change", false, false)

	return nil
}

// dismiss is the single teardown path every close route converges on.
//
// The saved address is only written back when the current entry still shows
// the synthetic URL; after a history pop the platform has restored it already
// and a second write would clobber the pop target.
func (m *Module) dismiss(ctx context.Context, cause string, restoreHistory, restoreScroll bool) {
	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return
	}

	slug := m.slug
	contentType := m.contentType
	savedURL := m.savedURL
	savedOffset := m.savedOffset
	release := m.release

	m.open = false
	m.slug = ""
	m.contentType = ""
	m.virtualURL = ""
	m.savedURL = ""
	m.savedOffset = 0
	m.release = nil
	m.mu.Unlock()

	if release != nil {
		release()
	}
	if restoreHistory && m.nav.CurrentURL() != savedURL {
		m.nav.Replace(kinetic.HistoryEntry{URL: savedURL})
	}
	if restoreScroll {
		m.scroll.ScrollTo(savedOffset)
	}
	m.transitions.Reset()

	m.closes.WithLabelValues(cause).Inc()
	m.publish(ctx, kinetic.EventKindOverlayClosed, kinetic.OverlayChange{
		Slug: slug,
		Type: contentType,
	})
}

// publish emits an overlay lifecycle event. Publish failures never propagate.
func (m *Module) publish(ctx context.Context, kind kinetic.EventKind, change kinetic.OverlayChange) {
	if m.sink == nil {
		return
	}

	event := &kinetic.Event{
		ID:         m.newID(),
		Kind:       kind,
		OccurredAt: m.clock(),
		Overlay:    &change,
	}
	if err := m.sink.Publish(ctx, event); err != nil {
		m.logger.DebugContext(ctx, "overlay event publish failed",
			"kind", kind,
			"error", err,
		)
	}
}

var (
	_ kinetic.Module            = (*Module)(nil)
	_ kinetic.OverlayController = (*Module)(nil)
)
