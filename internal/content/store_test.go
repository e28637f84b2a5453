package content

import (
	"context"
	"strings"
	"testing"
	"time"

	"kinetic/pkg/kinetic"
)

func openTestStore(t *testing.T, options ...Option) *Store {
	t.Helper()

	store, err := Open(context.Background(), ":memory:", options...)
	if err != nil {
		t.Fatalf("open store failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store failed: %v", err)
		}
	})

	return store
}

func seedDocuments(t *testing.T, store *Store, documents ...kinetic.ContentDocument) {
	t.Helper()

	if err := store.UpsertDocuments(context.Background(), documents); err != nil {
		t.Fatalf("seed documents failed: %v", err)
	}
}

func TestFetchDocumentsRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	published := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	seedDocuments(t, store, kinetic.ContentDocument{
		ID:          "doc-1",
		Slug:        "hades-review",
		Type:        kinetic.ContentTypeReview,
		Title:       "Hades Review",
		Summary:     "Still great",
		BodyHTML:    "<p>Body</p>",
		Score:       9.5,
		PublishedAt: published,
		MainImage:   &kinetic.MediaRef{URL: "https://img.example/hades.jpg", Alt: "Hades", Width: 1280, Height: 720},
		TagSlugs:    []string{"roguelike"},
		CreatorIDs:  []string{"creator-1"},
	})

	documents, err := store.FetchDocumentsByIDs(context.Background(), []string{"doc-1", "doc-missing"})
	if err != nil {
		t.Fatalf("fetch by ids failed: %v", err)
	}
	if len(documents) != 1 {
		t.Fatalf("documents = %d, want 1 (unknown ids omitted)", len(documents))
	}

	document := documents[0]
	if document.Slug != "hades-review" || document.Score != 9.5 {
		t.Fatalf("document = %+v", document)
	}
	if !document.PublishedAt.Equal(published) {
		t.Fatalf("published_at = %v, want %v", document.PublishedAt, published)
	}
	if document.MainImage == nil || document.MainImage.Width != 1280 {
		t.Fatalf("main image = %+v", document.MainImage)
	}
	if len(document.TagSlugs) != 1 || document.TagSlugs[0] != "roguelike" {
		t.Fatalf("tag slugs = %v", document.TagSlugs)
	}

	bySlug, err := store.FetchDocumentsBySlugs(context.Background(), []string{"hades-review"})
	if err != nil {
		t.Fatalf("fetch by slugs failed: %v", err)
	}
	if len(bySlug) != 1 || bySlug[0].ID != "doc-1" {
		t.Fatalf("by slug = %+v", bySlug)
	}
}

func TestUpsertSanitizesBody(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	seedDocuments(t, store, kinetic.ContentDocument{
		ID:       "doc-1",
		Slug:     "sketchy",
		Type:     kinetic.ContentTypeNews,
		BodyHTML: `<p>ok</p><script>alert("x")</script>`,
	})

	documents, err := store.FetchDocumentsBySlugs(context.Background(), []string{"sketchy"})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if strings.Contains(documents[0].BodyHTML, "<script>") {
		t.Fatalf("body not sanitized: %q", documents[0].BodyHTML)
	}
	if !strings.Contains(documents[0].BodyHTML, "<p>ok</p>") {
		t.Fatalf("benign markup stripped: %q", documents[0].BodyHTML)
	}
}

func TestUpsertReplacesExistingDocument(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	seedDocuments(t, store, kinetic.ContentDocument{
		ID: "doc-1", Slug: "hades-review", Type: kinetic.ContentTypeReview, Title: "First",
	})
	seedDocuments(t, store, kinetic.ContentDocument{
		ID: "doc-1", Slug: "hades-review", Type: kinetic.ContentTypeReview, Title: "Updated",
	})

	documents, err := store.FetchDocumentsByIDs(context.Background(), []string{"doc-1"})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(documents) != 1 || documents[0].Title != "Updated" {
		t.Fatalf("documents = %+v", documents)
	}
}

func TestFetchTagsAndCreators(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	if err := store.UpsertTags(ctx, []kinetic.TaxonomyEntry{
		{Slug: "roguelike", Title: "Roguelike", Kind: "tag"},
	}); err != nil {
		t.Fatalf("upsert tags failed: %v", err)
	}
	if err := store.UpsertCreators(ctx, []kinetic.CreatorProfile{
		{ID: "creator-1", Username: "sam", DisplayName: "Sam"},
	}); err != nil {
		t.Fatalf("upsert creators failed: %v", err)
	}

	tags, err := store.FetchTagsBySlugs(ctx, []string{"roguelike", "missing"})
	if err != nil {
		t.Fatalf("fetch tags failed: %v", err)
	}
	if len(tags) != 1 || tags[0].Title != "Roguelike" {
		t.Fatalf("tags = %+v", tags)
	}

	creators, err := store.FetchCreatorsByIDs(ctx, []string{"creator-1"})
	if err != nil {
		t.Fatalf("fetch creators failed: %v", err)
	}
	if len(creators) != 1 || creators[0].Username != "sam" {
		t.Fatalf("creators = %+v", creators)
	}
}

func TestFetchEmptyKeyListsSkipQueries(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	documents, err := store.FetchDocumentsByIDs(ctx, nil)
	if err != nil || documents != nil {
		t.Fatalf("documents = %v, err = %v", documents, err)
	}
	tags, err := store.FetchTagsBySlugs(ctx, nil)
	if err != nil || tags != nil {
		t.Fatalf("tags = %v, err = %v", tags, err)
	}
}

func TestFetchBootstrapAssemblesPayload(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, WithBootstrapLimit(2))
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seedDocuments(t, store,
		kinetic.ContentDocument{
			ID: "r1", Slug: "review-old", Type: kinetic.ContentTypeReview,
			PublishedAt: base, TagSlugs: []string{"roguelike"}, CreatorIDs: []string{"creator-1"},
		},
		kinetic.ContentDocument{
			ID: "r2", Slug: "review-mid", Type: kinetic.ContentTypeReview,
			PublishedAt: base.AddDate(0, 0, 1),
		},
		kinetic.ContentDocument{
			ID: "r3", Slug: "review-new", Type: kinetic.ContentTypeReview,
			PublishedAt: base.AddDate(0, 0, 2),
		},
		kinetic.ContentDocument{
			ID: "n1", Slug: "news-1", Type: kinetic.ContentTypeNews,
			PublishedAt: base,
		},
	)
	if err := store.UpsertTags(ctx, []kinetic.TaxonomyEntry{{Slug: "roguelike"}}); err != nil {
		t.Fatalf("upsert tags failed: %v", err)
	}
	if err := store.UpsertCreators(ctx, []kinetic.CreatorProfile{{ID: "creator-1"}}); err != nil {
		t.Fatalf("upsert creators failed: %v", err)
	}

	payload, err := store.FetchBootstrap(ctx)
	if err != nil {
		t.Fatalf("fetch bootstrap failed: %v", err)
	}

	reviews, found := payload.Snapshots[kinetic.HubReviews]
	if !found {
		t.Fatal("reviews snapshot missing")
	}
	if len(reviews.ItemSlugs) != 2 || reviews.ItemSlugs[0] != "review-new" {
		t.Fatalf("reviews slugs = %v, want 2 newest first", reviews.ItemSlugs)
	}
	if reviews.NextOffset != 2 {
		t.Fatalf("next offset = %d, want 2", reviews.NextOffset)
	}
	if _, found := payload.Snapshots[kinetic.HubNews]; !found {
		t.Fatal("news snapshot missing")
	}
	if _, found := payload.Snapshots[kinetic.HubArticles]; found {
		t.Fatal("empty hub must not produce a snapshot")
	}
	if len(payload.Documents) != 3 {
		t.Fatalf("documents = %d, want 3", len(payload.Documents))
	}
}

func TestFetchBootstrapIncludesReferencedTagsAndCreators(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	seedDocuments(t, store, kinetic.ContentDocument{
		ID: "r1", Slug: "review-1", Type: kinetic.ContentTypeReview,
		PublishedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		TagSlugs:    []string{"roguelike"},
		CreatorIDs:  []string{"creator-1"},
	})
	if err := store.UpsertTags(ctx, []kinetic.TaxonomyEntry{{Slug: "roguelike", Title: "Roguelike"}}); err != nil {
		t.Fatalf("upsert tags failed: %v", err)
	}
	if err := store.UpsertCreators(ctx, []kinetic.CreatorProfile{{ID: "creator-1", Username: "sam"}}); err != nil {
		t.Fatalf("upsert creators failed: %v", err)
	}

	payload, err := store.FetchBootstrap(ctx)
	if err != nil {
		t.Fatalf("fetch bootstrap failed: %v", err)
	}
	if len(payload.Tags) != 1 || payload.Tags[0].Slug != "roguelike" {
		t.Fatalf("tags = %+v", payload.Tags)
	}
	if len(payload.Creators) != 1 || payload.Creators[0].ID != "creator-1" {
		t.Fatalf("creators = %+v", payload.Creators)
	}
}

func TestUpsertRejectsInvalidDocuments(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	err := store.UpsertDocuments(context.Background(), []kinetic.ContentDocument{
		{Slug: "no-id", Type: kinetic.ContentTypeNews},
	})
	if err == nil {
		t.Fatal("document without id should be rejected")
	}
}
