package hydrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"kinetic/pkg/kinetic"
)

const (
	sourceDirect    = "direct"
	sourceBatch     = "batch"
	sourceIndex     = "index"
	sourceUniversal = "universal"
	sourceLinked    = "linked"
)

// Option mutates hydrate module configuration.
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

// Module owns the four hydration agents for one session.
type Module struct {
	logger  *slog.Logger
	cache   kinetic.ContentCache
	fetcher kinetic.ContentFetcher
	sink    kinetic.EventSink
	clock   func() time.Time
	newID   func() string

	mu     sync.Mutex
	mounts map[string]*sync.Once
}

// New creates a hydrate module.
func New(options ...Option) *Module {
	module := &Module{
		logger: slog.Default(),
		clock:  time.Now,
		newID:  uuid.NewString,
		mounts: make(map[string]*sync.Once),
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "hydrate"
}

// Spec declares which events trigger hydration.
func (m *Module) Spec() kinetic.ModuleSpec {
	return kinetic.ModuleSpec{
		Handlers: []kinetic.ModuleHandler{
			{
				Capability: kinetic.Capability{
					Name:        "render-hydrator",
					Description: "applies page render payloads to the content cache: direct documents, batched stub backfill, listing snapshots",
					Interest: kinetic.InterestSet{
						Kinds:       []kinetic.EventKind{kinetic.EventKindPageRendered},
						RequirePage: true,
					},
					RequiredServices: []string{
						kinetic.ServiceContentCache,
						kinetic.ServiceContentFetcher,
					},
				},
				Subscription: kinetic.NewDefaultSubscriptionSpec("render-hydrator"),
				Handler:      m.handlePageRendered,
			},
			{
				Capability: kinetic.Capability{
					Name:        "linked-content-hydrator",
					Description: "lazily backfills coverage linked to a release when its overlay opens",
					Interest: kinetic.InterestSet{
						Kinds:          []kinetic.EventKind{kinetic.EventKindOverlayOpened},
						RequireOverlay: true,
					},
				},
				Subscription: kinetic.NewDefaultSubscriptionSpec("linked-content-hydrator"),
				Handler:      m.handleOverlayOpened,
			},
		},
	}
}

// OnRegister resolves collaborators and registers the Hydrator service.
func (m *Module) OnRegister(_ context.Context, runtime kinetic.ModuleRuntime) error {
	logger, err := kinetic.ResolveAs[*slog.Logger](runtime.Services(), kinetic.ServiceLogger)
	switch {
	case err == nil:
		m.logger = logger
	case errors.Is(err, kinetic.ErrServiceNotFound):
	default:
		return fmt.Errorf("hydrate resolve logger: %w", err)
	}

	cache, err := kinetic.ResolveAs[kinetic.ContentCache](runtime.Services(), kinetic.ServiceContentCache)
	if err != nil {
		return fmt.Errorf("hydrate resolve content cache: %w", err)
	}
	m.cache = cache

	fetcher, err := kinetic.ResolveAs[kinetic.ContentFetcher](runtime.Services(), kinetic.ServiceContentFetcher)
	if err != nil {
		return fmt.Errorf("hydrate resolve content fetcher: %w", err)
	}
	m.fetcher = fetcher

	sink, err := kinetic.ResolveAs[kinetic.EventSink](runtime.Services(), kinetic.ServiceEventSink)
	switch {
	case err == nil:
		m.sink = sink
	case errors.Is(err, kinetic.ErrServiceNotFound):
	default:
		return fmt.Errorf("hydrate resolve event sink: %w", err)
	}

	if err := runtime.Services().Register(kinetic.ServiceHydrator, m); err != nil {
		return fmt.Errorf("hydrate register service %s: %w", kinetic.ServiceHydrator, err)
	}

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(ctx context.Context) error {
	m.logger.InfoContext(ctx, "hydrate module started", "module", m.Name())

	return nil
}

// OnShutdown clears per-mount state.
func (m *Module) OnShutdown(_ context.Context) error {
	m.mu.Lock()
	m.mounts = make(map[string]*sync.Once)
	m.mu.Unlock()

	return nil
}

// handlePageRendered runs the direct, index, and batch agents for one mount.
func (m *Module) handlePageRendered(ctx context.Context, event *kinetic.Event) error {
	page := event.Page
	m.HydrateDirect(ctx, page.MountID, page.Documents)
	for _, snapshot := range page.Snapshots {
		m.HydrateIndex(ctx, page.MountID, snapshot)
	}
	m.HydrateBatch(ctx, page.MountID, page.Stubs)

	return nil
}

// handleOverlayOpened backfills documents linked to a release.
func (m *Module) handleOverlayOpened(ctx context.Context, event *kinetic.Event) error {
	if event.Overlay.Type != kinetic.ContentTypeRelease {
		return nil
	}

	document, found := m.cache.GetBySlug(event.Overlay.Slug)
	if !found {
		return nil
	}

	missing := make([]string, 0, len(document.LinkedSlugs))
	for _, slug := range document.LinkedSlugs {
		if !m.cache.Contains(slug) {
			missing = append(missing, slug)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	documents, err := m.fetcher.FetchDocumentsBySlugs(ctx, missing)
	if err != nil {
		m.logger.WarnContext(ctx, "linked content fetch failed",
			"release", event.Overlay.Slug,
			"missing", len(missing),
			"error", err,
		)
		return nil
	}
	m.cache.HydrateContent(documents)
	m.publishReport(ctx, kinetic.HydrationReport{
		Source:    sourceLinked,
		Documents: len(documents),
	})

	return nil
}

// HydrateDirect writes render-payload documents straight to the cache.
// It runs at most once per mount.
func (m *Module) HydrateDirect(ctx context.Context, mountID string, documents []kinetic.ContentDocument) {
	m.onceFor(sourceDirect, mountID).Do(func() {
		if len(documents) == 0 {
			return
		}
		m.cache.HydrateContent(documents)
		m.publishReport(ctx, kinetic.HydrationReport{
			Source:    sourceDirect,
			MountID:   mountID,
			Documents: len(documents),
		})
	})
}

// HydrateBatch backfills missing documents and tags for a stub list.
//
// The agent deduplicates against the cache first and issues at most one
// document fetch and one tag fetch regardless of list size. Fetch failures
// are logged and swallowed; whatever arrived is still applied.
func (m *Module) HydrateBatch(ctx context.Context, mountID string, stubs []kinetic.ContentStub) {
	m.onceFor(sourceBatch, mountID).Do(func() {
		missingIDs, missingTagSlugs := m.planBatch(stubs)
		if len(missingIDs) == 0 && len(missingTagSlugs) == 0 {
			return
		}

		report := kinetic.HydrationReport{Source: sourceBatch, MountID: mountID}
		if len(missingIDs) > 0 {
			documents, err := m.fetcher.FetchDocumentsByIDs(ctx, missingIDs)
			if err != nil {
				m.logger.WarnContext(ctx, "batch document fetch failed",
					"mount", mountID,
					"missing", len(missingIDs),
					"error", err,
				)
			} else {
				m.cache.HydrateContent(documents)
				report.Documents = len(documents)
			}
		}
		if len(missingTagSlugs) > 0 {
			tags, err := m.fetcher.FetchTagsBySlugs(ctx, missingTagSlugs)
			if err != nil {
				m.logger.WarnContext(ctx, "batch tag fetch failed",
					"mount", mountID,
					"missing", len(missingTagSlugs),
					"error", err,
				)
			} else {
				m.cache.HydrateTags(tags)
				report.Tags = len(tags)
			}
		}

		if report.Documents > 0 || report.Tags > 0 {
			m.publishReport(ctx, report)
		}
	})
}

// HydrateIndex merges a listing snapshot. It runs at most once per mount
// and hub.
func (m *Module) HydrateIndex(ctx context.Context, mountID string, snapshot kinetic.ListingSnapshot) {
	m.onceFor(sourceIndex, mountID+":"+string(snapshot.Hub)).Do(func() {
		m.cache.HydrateIndex(snapshot)
		m.publishReport(ctx, kinetic.HydrationReport{
			Source:    sourceIndex,
			MountID:   mountID,
			Snapshots: 1,
		})
	})
}

// HydrateUniversal applies a full bootstrap payload. The bootstrap loader
// owns the once-per-session guard, so this agent carries no latch.
func (m *Module) HydrateUniversal(ctx context.Context, payload kinetic.UniversalBootstrap) {
	if payload.Empty() {
		return
	}
	m.cache.HydrateUniversal(payload)
	m.publishReport(ctx, kinetic.HydrationReport{
		Source:    sourceUniversal,
		Documents: len(payload.Documents),
		Tags:      len(payload.Tags),
		Creators:  len(payload.Creators),
		Snapshots: len(payload.Snapshots),
	})
}

// planBatch computes which documents and tags the cache still misses.
func (m *Module) planBatch(stubs []kinetic.ContentStub) ([]string, []string) {
	missingIDs := make([]string, 0, len(stubs))
	seenIDs := make(map[string]struct{}, len(stubs))
	missingTagSlugs := make([]string, 0)
	seenTagSlugs := make(map[string]struct{})

	for _, stub := range stubs {
		if stub.ID != "" && stub.Slug != "" && !m.cache.Contains(stub.Slug) {
			if _, seen := seenIDs[stub.ID]; !seen {
				seenIDs[stub.ID] = struct{}{}
				missingIDs = append(missingIDs, stub.ID)
			}
		}
		for _, tagSlug := range stub.TagSlugs {
			if tagSlug == "" {
				continue
			}
			if _, cached := m.cache.GetTag(tagSlug); cached {
				continue
			}
			if _, seen := seenTagSlugs[tagSlug]; !seen {
				seenTagSlugs[tagSlug] = struct{}{}
				missingTagSlugs = append(missingTagSlugs, tagSlug)
			}
		}
	}

	return missingIDs, missingTagSlugs
}

// onceFor returns the one-shot guard for one agent run on one mount.
func (m *Module) onceFor(source, key string) *sync.Once {
	fullKey := source + ":" + key

	m.mu.Lock()
	defer m.mu.Unlock()

	once, exists := m.mounts[fullKey]
	if !exists {
		once = &sync.Once{}
		m.mounts[fullKey] = once
	}

	return once
}

// publishReport emits hydration telemetry. Publish failures never propagate;
// telemetry must not break hydration.
func (m *Module) publishReport(ctx context.Context, report kinetic.HydrationReport) {
	if m.sink == nil {
		return
	}

	event := &kinetic.Event{
		ID:         m.newID(),
		Kind:       kinetic.EventKindContentHydrated,
		OccurredAt: m.clock(),
		Hydration:  &report,
	}
	if err := m.sink.Publish(ctx, event); err != nil {
		m.logger.DebugContext(ctx, "hydration report publish failed",
			"source", report.Source,
			"error", err,
		)
	}
}

var (
	_ kinetic.Module   = (*Module)(nil)
	_ kinetic.Hydrator = (*Module)(nil)
)
