package contentcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"kinetic/pkg/kinetic"
)

// Option mutates content cache module configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(module *Module) {
		if logger != nil {
			module.logger = logger
		}
	}
}

// Module owns the in-memory content maps for one session.
//
// Unlike a bounded TTL cache, entries live for the whole session: an open
// overlay must never lose the document it is presenting, so nothing is
// evicted between hydration and teardown.
type Module struct {
	logger *slog.Logger

	mu        sync.RWMutex
	documents map[string]kinetic.ContentDocument
	tags      map[string]kinetic.TaxonomyEntry
	creators  map[string]kinetic.CreatorProfile
	indexes   map[kinetic.HubKey]kinetic.ListingSnapshot
	dropped   int
}

// New creates an empty content cache module.
func New(options ...Option) *Module {
	module := &Module{
		logger:    slog.Default(),
		documents: make(map[string]kinetic.ContentDocument),
		tags:      make(map[string]kinetic.TaxonomyEntry),
		creators:  make(map[string]kinetic.CreatorProfile),
		indexes:   make(map[kinetic.HubKey]kinetic.ListingSnapshot),
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "content-cache"
}

// Spec declares the module's capabilities. The cache consumes no events; it
// is driven synchronously by the hydration agents.
func (m *Module) Spec() kinetic.ModuleSpec {
	return kinetic.ModuleSpec{
		AdditionalCapabilities: []kinetic.Capability{
			{
				Name:        "content-read-model",
				Description: "holds hydrated documents, taxonomy, creators, and listing snapshots for synchronous lookup",
			},
		},
	}
}

// OnRegister registers this module as the shared ContentCache service.
func (m *Module) OnRegister(_ context.Context, runtime kinetic.ModuleRuntime) error {
	logger, err := kinetic.ResolveAs[*slog.Logger](runtime.Services(), kinetic.ServiceLogger)
	switch {
	case err == nil:
		m.logger = logger
	case errors.Is(err, kinetic.ErrServiceNotFound):
	default:
		return fmt.Errorf("content cache resolve logger: %w", err)
	}

	if err := runtime.Services().Register(kinetic.ServiceContentCache, m); err != nil {
		return fmt.Errorf("content cache register service %s: %w", kinetic.ServiceContentCache, err)
	}

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(ctx context.Context) error {
	m.logger.InfoContext(ctx, "content cache module started", "module", m.Name())

	return nil
}

// OnShutdown clears cached state.
func (m *Module) OnShutdown(ctx context.Context) error {
	m.mu.Lock()
	documentCount := len(m.documents)
	m.documents = make(map[string]kinetic.ContentDocument)
	m.tags = make(map[string]kinetic.TaxonomyEntry)
	m.creators = make(map[string]kinetic.CreatorProfile)
	m.indexes = make(map[kinetic.HubKey]kinetic.ListingSnapshot)
	m.mu.Unlock()

	m.logger.InfoContext(ctx,
		"content cache module stopped",
		"module", m.Name(),
		"documents_cleared", documentCount,
	)

	return nil
}

// HydrateContent upserts full documents by slug.
//
// Documents that fail validation are dropped silently: a slug-less document
// could never be retrieved again, so storing it would only leak memory.
func (m *Module) HydrateContent(documents []kinetic.ContentDocument) {
	if len(documents) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, document := range documents {
		if err := document.Validate(); err != nil {
			m.dropped++
			m.logger.Debug("dropping malformed document", "error", err)
			continue
		}
		m.documents[document.Slug] = document.Clone()
	}
}

// HydrateTags upserts taxonomy entries by slug.
func (m *Module) HydrateTags(entries []kinetic.TaxonomyEntry) {
	if len(entries) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			m.dropped++
			m.logger.Debug("dropping malformed taxonomy entry", "error", err)
			continue
		}
		m.tags[entry.Slug] = entry
	}
}

// HydrateCreators upserts creator profiles by ID.
func (m *Module) HydrateCreators(profiles []kinetic.CreatorProfile) {
	if len(profiles) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, profile := range profiles {
		if err := profile.Validate(); err != nil {
			m.dropped++
			m.logger.Debug("dropping malformed creator profile", "error", err)
			continue
		}
		m.creators[profile.ID] = profile
	}
}

// HydrateIndex merges a listing snapshot under the monotonic-length rule.
//
// A shorter incoming snapshot loses: the cached one already reflects more
// accumulated pagination, and truncating it would snap an expanded listing
// back to its first page.
func (m *Module) HydrateIndex(snapshot kinetic.ListingSnapshot) {
	if err := snapshot.Validate(); err != nil {
		m.mu.Lock()
		m.dropped++
		m.mu.Unlock()
		m.logger.Debug("dropping malformed listing snapshot", "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cached, exists := m.indexes[snapshot.Hub]
	if exists && len(snapshot.ItemSlugs) < len(cached.ItemSlugs) {
		m.logger.Debug("keeping longer cached snapshot",
			"hub", snapshot.Hub,
			"cached_len", len(cached.ItemSlugs),
			"incoming_len", len(snapshot.ItemSlugs),
		)
		return
	}
	m.indexes[snapshot.Hub] = snapshot.Clone()
}

// HydrateUniversal applies a full bootstrap payload in one pass.
func (m *Module) HydrateUniversal(payload kinetic.UniversalBootstrap) {
	m.HydrateContent(payload.Documents)
	m.HydrateTags(payload.Tags)
	m.HydrateCreators(payload.Creators)
	for _, snapshot := range payload.Snapshots {
		m.HydrateIndex(snapshot)
	}
}

// GetBySlug returns a clone of the cached document for a slug.
func (m *Module) GetBySlug(slug string) (kinetic.ContentDocument, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	document, exists := m.documents[slug]
	if !exists {
		return kinetic.ContentDocument{}, false
	}

	return document.Clone(), true
}

// Contains reports whether a slug is cached, without copying the document.
func (m *Module) Contains(slug string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.documents[slug]

	return exists
}

// GetTag returns the cached taxonomy entry for a slug.
func (m *Module) GetTag(slug string) (kinetic.TaxonomyEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.tags[slug]

	return entry, exists
}

// GetCreator returns the cached creator profile for an ID.
func (m *Module) GetCreator(id string) (kinetic.CreatorProfile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, exists := m.creators[id]

	return profile, exists
}

// GetIndex returns a clone of the cached listing snapshot for a hub.
func (m *Module) GetIndex(hub kinetic.HubKey) (kinetic.ListingSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot, exists := m.indexes[hub]
	if !exists {
		return kinetic.ListingSnapshot{}, false
	}

	return snapshot.Clone(), true
}

// Stats returns current population counters.
func (m *Module) Stats() kinetic.CacheStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return kinetic.CacheStats{
		Documents: len(m.documents),
		Tags:      len(m.tags),
		Creators:  len(m.creators),
		Indexes:   len(m.indexes),
		Dropped:   m.dropped,
	}
}

var (
	_ kinetic.Module       = (*Module)(nil)
	_ kinetic.ContentCache = (*Module)(nil)
)
