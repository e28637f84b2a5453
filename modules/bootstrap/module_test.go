package bootstrap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kinetic/modules/contentcache"
	"kinetic/pkg/kinetic"
)

type stubHydrator struct {
	cache      *contentcache.Module
	universals int
}

func (h *stubHydrator) HydrateDirect(context.Context, string, []kinetic.ContentDocument) {}

func (h *stubHydrator) HydrateBatch(context.Context, string, []kinetic.ContentStub) {}

func (h *stubHydrator) HydrateIndex(context.Context, string, kinetic.ListingSnapshot) {}

func (h *stubHydrator) HydrateUniversal(_ context.Context, payload kinetic.UniversalBootstrap) {
	h.universals++
	h.cache.HydrateUniversal(payload)
}

type stubFetcher struct {
	mu      sync.Mutex
	calls   int
	fail    bool
	payload kinetic.UniversalBootstrap
}

func (f *stubFetcher) FetchDocumentsByIDs(context.Context, []string) ([]kinetic.ContentDocument, error) {
	return nil, nil
}

func (f *stubFetcher) FetchDocumentsBySlugs(context.Context, []string) ([]kinetic.ContentDocument, error) {
	return nil, nil
}

func (f *stubFetcher) FetchTagsBySlugs(context.Context, []string) ([]kinetic.TaxonomyEntry, error) {
	return nil, nil
}

func (f *stubFetcher) FetchCreatorsByIDs(context.Context, []string) ([]kinetic.CreatorProfile, error) {
	return nil, nil
}

func (f *stubFetcher) FetchBootstrap(context.Context) (kinetic.UniversalBootstrap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return kinetic.UniversalBootstrap{}, errors.New("store unavailable")
	}

	return f.payload, nil
}

type manualScheduler struct {
	scheduled int
	stopped   int
	task      func()
}

func (s *manualScheduler) schedule(_ time.Duration, task func()) func() {
	s.scheduled++
	s.task = task

	return func() { s.stopped++ }
}

type fixture struct {
	module    *Module
	cache     *contentcache.Module
	fetcher   *stubFetcher
	hydrator  *stubHydrator
	scheduler *manualScheduler
}

func newFixture() *fixture {
	cache := contentcache.New()
	fetcher := &stubFetcher{
		payload: kinetic.UniversalBootstrap{
			Documents: []kinetic.ContentDocument{{Slug: "fetched", Type: kinetic.ContentTypeNews}},
		},
	}
	hydrator := &stubHydrator{cache: cache}
	scheduler := &manualScheduler{}

	module := New(WithScheduler(scheduler.schedule))
	module.cache = cache
	module.fetcher = fetcher
	module.hydrator = hydrator

	return &fixture{
		module:    module,
		cache:     cache,
		fetcher:   fetcher,
		hydrator:  hydrator,
		scheduler: scheduler,
	}
}

func renderEvent(route kinetic.RouteKind, payload *kinetic.UniversalBootstrap) *kinetic.Event {
	return &kinetic.Event{
		ID:         "e1",
		Kind:       kinetic.EventKindPageRendered,
		OccurredAt: time.Now(),
		Page: &kinetic.PageRender{
			MountID:   "mount-1",
			Route:     route,
			Bootstrap: payload,
		},
	}
}

func TestHomeRouteBootstrapsInline(t *testing.T) {
	t.Parallel()

	f := newFixture()
	payload := &kinetic.UniversalBootstrap{
		Documents: []kinetic.ContentDocument{{Slug: "inline", Type: kinetic.ContentTypeReview}},
	}
	if err := f.module.handlePageRendered(context.Background(), renderEvent(kinetic.RouteKindHome, payload)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if !f.module.Ready() {
		t.Fatal("loader should be ready after inline bootstrap")
	}
	if !f.cache.Contains("inline") {
		t.Fatal("inline payload should be hydrated")
	}
	if f.scheduler.scheduled != 0 {
		t.Fatal("inline bootstrap must not schedule a background fetch")
	}
}

func TestNonHomeRouteDefersBackgroundFetch(t *testing.T) {
	t.Parallel()

	f := newFixture()
	if err := f.module.handlePageRendered(context.Background(), renderEvent(kinetic.RouteKindHub, nil)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if !f.module.Ready() {
		t.Fatal("readiness must not wait for the deferred fetch")
	}
	if f.scheduler.scheduled != 1 {
		t.Fatalf("scheduled = %d, want 1", f.scheduler.scheduled)
	}
	if f.cache.Contains("fetched") {
		t.Fatal("fetch must not run before the timer fires")
	}

	f.scheduler.task()
	if f.fetcher.calls != 1 {
		t.Fatalf("fetch calls = %d, want 1", f.fetcher.calls)
	}
	if !f.cache.Contains("fetched") {
		t.Fatal("deferred payload should be hydrated")
	}
}

func TestDeferredFetchSkipsWarmCache(t *testing.T) {
	t.Parallel()

	f := newFixture()
	if err := f.module.handlePageRendered(context.Background(), renderEvent(kinetic.RouteKindDetail, nil)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	// Render-payload hydration beat the timer.
	f.cache.HydrateContent([]kinetic.ContentDocument{{Slug: "warm", Type: kinetic.ContentTypeArticle}})

	f.scheduler.task()
	if f.fetcher.calls != 0 {
		t.Fatalf("fetch calls = %d, warm cache should skip", f.fetcher.calls)
	}
}

func TestBootstrapDecisionIsOneShot(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	if err := f.module.handlePageRendered(ctx, renderEvent(kinetic.RouteKindHub, nil)); err != nil {
		t.Fatalf("first handle failed: %v", err)
	}

	payload := &kinetic.UniversalBootstrap{
		Documents: []kinetic.ContentDocument{{Slug: "late", Type: kinetic.ContentTypeReview}},
	}
	if err := f.module.handlePageRendered(ctx, renderEvent(kinetic.RouteKindHome, payload)); err != nil {
		t.Fatalf("second handle failed: %v", err)
	}

	if f.hydrator.universals != 0 {
		t.Fatal("a later home render must not re-bootstrap the session")
	}
	if f.scheduler.scheduled != 1 {
		t.Fatalf("scheduled = %d, want 1", f.scheduler.scheduled)
	}
}

func TestDeferredFetchFailureDegradesQuietly(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.fetcher.fail = true
	if err := f.module.handlePageRendered(context.Background(), renderEvent(kinetic.RouteKindOther, nil)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	f.scheduler.task()
	if !f.module.Ready() {
		t.Fatal("fetch failure must not revoke readiness")
	}
	if stats := f.cache.Stats(); stats.Documents != 0 {
		t.Fatalf("documents = %d, want 0 after failed fetch", stats.Documents)
	}
}

func TestShutdownStopsPendingFetch(t *testing.T) {
	t.Parallel()

	f := newFixture()
	if err := f.module.handlePageRendered(context.Background(), renderEvent(kinetic.RouteKindHub, nil)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if err := f.module.OnShutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if f.scheduler.stopped != 1 {
		t.Fatalf("stopped = %d, want 1", f.scheduler.stopped)
	}
}
