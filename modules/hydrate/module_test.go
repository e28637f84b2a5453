package hydrate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kinetic/modules/contentcache"
	"kinetic/pkg/kinetic"
)

type stubFetcher struct {
	mu            sync.Mutex
	docsByID      map[string]kinetic.ContentDocument
	docsBySlug    map[string]kinetic.ContentDocument
	tags          map[string]kinetic.TaxonomyEntry
	docCalls      int
	slugCalls     int
	tagCalls      int
	failDocuments bool
	failTags      bool
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		docsByID:   make(map[string]kinetic.ContentDocument),
		docsBySlug: make(map[string]kinetic.ContentDocument),
		tags:       make(map[string]kinetic.TaxonomyEntry),
	}
}

func (f *stubFetcher) add(document kinetic.ContentDocument) {
	f.docsByID[document.ID] = document
	f.docsBySlug[document.Slug] = document
}

func (f *stubFetcher) FetchDocumentsByIDs(_ context.Context, ids []string) ([]kinetic.ContentDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docCalls++
	if f.failDocuments {
		return nil, errors.New("store unavailable")
	}

	documents := make([]kinetic.ContentDocument, 0, len(ids))
	for _, id := range ids {
		if document, found := f.docsByID[id]; found {
			documents = append(documents, document)
		}
	}

	return documents, nil
}

func (f *stubFetcher) FetchDocumentsBySlugs(_ context.Context, slugs []string) ([]kinetic.ContentDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slugCalls++

	documents := make([]kinetic.ContentDocument, 0, len(slugs))
	for _, slug := range slugs {
		if document, found := f.docsBySlug[slug]; found {
			documents = append(documents, document)
		}
	}

	return documents, nil
}

func (f *stubFetcher) FetchTagsBySlugs(_ context.Context, slugs []string) ([]kinetic.TaxonomyEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tagCalls++
	if f.failTags {
		return nil, errors.New("store unavailable")
	}

	tags := make([]kinetic.TaxonomyEntry, 0, len(slugs))
	for _, slug := range slugs {
		if tag, found := f.tags[slug]; found {
			tags = append(tags, tag)
		}
	}

	return tags, nil
}

func (f *stubFetcher) FetchCreatorsByIDs(context.Context, []string) ([]kinetic.CreatorProfile, error) {
	return nil, nil
}

func (f *stubFetcher) FetchBootstrap(_ context.Context) (kinetic.UniversalBootstrap, error) {
	return kinetic.UniversalBootstrap{}, nil
}

type recordingSink struct {
	mu      sync.Mutex
	reports []kinetic.HydrationReport
}

func (s *recordingSink) Publish(_ context.Context, event *kinetic.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.Hydration != nil {
		s.reports = append(s.reports, *event.Hydration)
	}

	return nil
}

func (s *recordingSink) sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sources := make([]string, 0, len(s.reports))
	for _, report := range s.reports {
		sources = append(sources, report.Source)
	}

	return sources
}

func newModule(cache kinetic.ContentCache, fetcher kinetic.ContentFetcher, sink kinetic.EventSink) *Module {
	module := New()
	module.cache = cache
	module.fetcher = fetcher
	module.sink = sink

	return module
}

func TestHydrateDirectFiresOncePerMount(t *testing.T) {
	t.Parallel()

	cache := contentcache.New()
	sink := &recordingSink{}
	module := newModule(cache, newStubFetcher(), sink)

	documents := []kinetic.ContentDocument{{Slug: "d1", Type: kinetic.ContentTypeNews}}
	module.HydrateDirect(context.Background(), "mount-1", documents)
	module.HydrateDirect(context.Background(), "mount-1", documents)

	if got := len(sink.sources()); got != 1 {
		t.Fatalf("reports = %d, want 1", got)
	}

	module.HydrateDirect(context.Background(), "mount-2", documents)
	if got := len(sink.sources()); got != 2 {
		t.Fatalf("reports = %d, want 2 after second mount", got)
	}
}

func TestHydrateBatchDeduplicatesAgainstCache(t *testing.T) {
	t.Parallel()

	cache := contentcache.New()
	cache.HydrateContent([]kinetic.ContentDocument{{Slug: "cached", Type: kinetic.ContentTypeReview}})
	cache.HydrateTags([]kinetic.TaxonomyEntry{{Slug: "rpg"}})

	fetcher := newStubFetcher()
	fetcher.add(kinetic.ContentDocument{ID: "id-2", Slug: "missing", Type: kinetic.ContentTypeReview})
	fetcher.tags["roguelike"] = kinetic.TaxonomyEntry{Slug: "roguelike"}

	module := newModule(cache, fetcher, &recordingSink{})
	module.HydrateBatch(context.Background(), "mount-1", []kinetic.ContentStub{
		{ID: "id-1", Slug: "cached", Type: kinetic.ContentTypeReview, TagSlugs: []string{"rpg"}},
		{ID: "id-2", Slug: "missing", Type: kinetic.ContentTypeReview, TagSlugs: []string{"roguelike", "rpg"}},
		{ID: "id-2", Slug: "missing", Type: kinetic.ContentTypeReview},
	})

	if fetcher.docCalls != 1 {
		t.Fatalf("document fetches = %d, want 1", fetcher.docCalls)
	}
	if fetcher.tagCalls != 1 {
		t.Fatalf("tag fetches = %d, want 1", fetcher.tagCalls)
	}
	if !cache.Contains("missing") {
		t.Fatal("missing document was not backfilled")
	}
	if _, found := cache.GetTag("roguelike"); !found {
		t.Fatal("missing tag was not backfilled")
	}
}

func TestHydrateBatchFullyCachedSkipsNetwork(t *testing.T) {
	t.Parallel()

	cache := contentcache.New()
	cache.HydrateContent([]kinetic.ContentDocument{{Slug: "cached", Type: kinetic.ContentTypeReview}})

	fetcher := newStubFetcher()
	module := newModule(cache, fetcher, &recordingSink{})
	module.HydrateBatch(context.Background(), "mount-1", []kinetic.ContentStub{
		{ID: "id-1", Slug: "cached", Type: kinetic.ContentTypeReview},
	})

	if fetcher.docCalls != 0 || fetcher.tagCalls != 0 {
		t.Fatalf("fetch calls = %d/%d, want none", fetcher.docCalls, fetcher.tagCalls)
	}
}

func TestHydrateBatchSwallowsFetchFailures(t *testing.T) {
	t.Parallel()

	cache := contentcache.New()
	fetcher := newStubFetcher()
	fetcher.failDocuments = true
	fetcher.tags["rpg"] = kinetic.TaxonomyEntry{Slug: "rpg"}

	module := newModule(cache, fetcher, &recordingSink{})
	module.HydrateBatch(context.Background(), "mount-1", []kinetic.ContentStub{
		{ID: "id-1", Slug: "missing", Type: kinetic.ContentTypeReview, TagSlugs: []string{"rpg"}},
	})

	if cache.Contains("missing") {
		t.Fatal("failed fetch should leave the cache unchanged")
	}
	if _, found := cache.GetTag("rpg"); !found {
		t.Fatal("tag fetch should still apply after document fetch failure")
	}
}

func TestHydrateIndexOncePerMountAndHub(t *testing.T) {
	t.Parallel()

	cache := contentcache.New()
	module := newModule(cache, newStubFetcher(), &recordingSink{})

	module.HydrateIndex(context.Background(), "mount-1", kinetic.ListingSnapshot{
		Hub:       kinetic.HubReviews,
		ItemSlugs: []string{"a"},
	})
	module.HydrateIndex(context.Background(), "mount-1", kinetic.ListingSnapshot{
		Hub:       kinetic.HubReviews,
		ItemSlugs: []string{"a", "b"},
	})
	module.HydrateIndex(context.Background(), "mount-1", kinetic.ListingSnapshot{
		Hub:       kinetic.HubNews,
		ItemSlugs: []string{"n"},
	})

	reviews, _ := cache.GetIndex(kinetic.HubReviews)
	if len(reviews.ItemSlugs) != 1 {
		t.Fatalf("reviews slugs = %v, second merge should have been latched", reviews.ItemSlugs)
	}
	if _, found := cache.GetIndex(kinetic.HubNews); !found {
		t.Fatal("different hub on the same mount should hydrate")
	}
}

func TestHandlePageRenderedRunsAllAgents(t *testing.T) {
	t.Parallel()

	cache := contentcache.New()
	fetcher := newStubFetcher()
	fetcher.add(kinetic.ContentDocument{ID: "id-2", Slug: "stub-doc", Type: kinetic.ContentTypeArticle})
	sink := &recordingSink{}
	module := newModule(cache, fetcher, sink)

	event := &kinetic.Event{
		ID:         "e1",
		Kind:       kinetic.EventKindPageRendered,
		OccurredAt: time.Now(),
		Page: &kinetic.PageRender{
			MountID:   "mount-1",
			Route:     kinetic.RouteKindHub,
			Hub:       kinetic.HubArticles,
			Documents: []kinetic.ContentDocument{{Slug: "direct-doc", Type: kinetic.ContentTypeArticle}},
			Stubs:     []kinetic.ContentStub{{ID: "id-2", Slug: "stub-doc", Type: kinetic.ContentTypeArticle}},
			Snapshots: map[kinetic.HubKey]kinetic.ListingSnapshot{
				kinetic.HubArticles: {Hub: kinetic.HubArticles, ItemSlugs: []string{"direct-doc", "stub-doc"}},
			},
		},
	}
	if err := module.handlePageRendered(context.Background(), event); err != nil {
		t.Fatalf("handle page rendered failed: %v", err)
	}

	if !cache.Contains("direct-doc") || !cache.Contains("stub-doc") {
		t.Fatal("both direct and batched documents should be cached")
	}
	if _, found := cache.GetIndex(kinetic.HubArticles); !found {
		t.Fatal("snapshot should be cached")
	}

	// Re-delivering the same mount's payload is a no-op.
	if err := module.handlePageRendered(context.Background(), event); err != nil {
		t.Fatalf("second handle failed: %v", err)
	}
	if fetcher.docCalls != 1 {
		t.Fatalf("document fetches = %d, want 1", fetcher.docCalls)
	}
}

func TestHandleOverlayOpenedBackfillsLinkedContent(t *testing.T) {
	t.Parallel()

	cache := contentcache.New()
	cache.HydrateContent([]kinetic.ContentDocument{
		{
			Slug:        "silksong",
			Type:        kinetic.ContentTypeRelease,
			LinkedSlugs: []string{"silksong-review", "silksong-news"},
		},
		{Slug: "silksong-news", Type: kinetic.ContentTypeNews},
	})
	fetcher := newStubFetcher()
	fetcher.add(kinetic.ContentDocument{ID: "id-r", Slug: "silksong-review", Type: kinetic.ContentTypeReview})

	module := newModule(cache, fetcher, &recordingSink{})
	event := &kinetic.Event{
		ID:         "e1",
		Kind:       kinetic.EventKindOverlayOpened,
		OccurredAt: time.Now(),
		Overlay:    &kinetic.OverlayChange{Slug: "silksong", Type: kinetic.ContentTypeRelease},
	}
	if err := module.handleOverlayOpened(context.Background(), event); err != nil {
		t.Fatalf("handle overlay opened failed: %v", err)
	}

	if !cache.Contains("silksong-review") {
		t.Fatal("linked review should be backfilled")
	}
	if fetcher.slugCalls != 1 {
		t.Fatalf("slug fetches = %d, want 1", fetcher.slugCalls)
	}
}

func TestHandleOverlayOpenedIgnoresNonReleases(t *testing.T) {
	t.Parallel()

	cache := contentcache.New()
	fetcher := newStubFetcher()
	module := newModule(cache, fetcher, &recordingSink{})

	event := &kinetic.Event{
		ID:         "e1",
		Kind:       kinetic.EventKindOverlayOpened,
		OccurredAt: time.Now(),
		Overlay:    &kinetic.OverlayChange{Slug: "hades-review", Type: kinetic.ContentTypeReview},
	}
	if err := module.handleOverlayOpened(context.Background(), event); err != nil {
		t.Fatalf("handle overlay opened failed: %v", err)
	}
	if fetcher.slugCalls != 0 {
		t.Fatalf("slug fetches = %d, want 0", fetcher.slugCalls)
	}
}

func TestHydrateUniversalReportsCounts(t *testing.T) {
	t.Parallel()

	cache := contentcache.New()
	sink := &recordingSink{}
	module := newModule(cache, newStubFetcher(), sink)

	module.HydrateUniversal(context.Background(), kinetic.UniversalBootstrap{
		Documents: []kinetic.ContentDocument{{Slug: "d1", Type: kinetic.ContentTypeNews}},
		Tags:      []kinetic.TaxonomyEntry{{Slug: "rpg"}},
		Snapshots: map[kinetic.HubKey]kinetic.ListingSnapshot{
			kinetic.HubNews: {Hub: kinetic.HubNews, ItemSlugs: []string{"d1"}},
		},
	})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(sink.reports))
	}
	report := sink.reports[0]
	if report.Source != sourceUniversal || report.Documents != 1 || report.Tags != 1 || report.Snapshots != 1 {
		t.Fatalf("report = %+v", report)
	}

	// An empty payload publishes nothing.
	module.HydrateUniversal(context.Background(), kinetic.UniversalBootstrap{})
	if len(sink.reports) != 1 {
		t.Fatalf("reports = %d after empty payload, want 1", len(sink.reports))
	}
}
