package kinetic

// CacheStats summarizes the cache's current population.
type CacheStats struct {
	Documents int
	Tags      int
	Creators  int
	Indexes   int
	Dropped   int
}

// ContentCache is the shared read model for content documents, taxonomy
// entries, creator profiles, and per-hub listing snapshots.
//
// All operations are synchronous and non-blocking; the cache never performs
// I/O. Writers are the hydration agents, readers are everyone else. Reads
// return defensive clones, so callers hold no mutation rights over cached
// state.
type ContentCache interface {
	// HydrateContent upserts full documents by slug. Documents without a slug
	// are silently dropped.
	HydrateContent(documents []ContentDocument)
	// HydrateTags upserts taxonomy entries by slug.
	HydrateTags(entries []TaxonomyEntry)
	// HydrateCreators upserts creator profiles by ID.
	HydrateCreators(profiles []CreatorProfile)
	// HydrateIndex merges a listing snapshot under the monotonic-length rule:
	// an incoming snapshot wins only when its item sequence is at least as
	// long as the cached one.
	HydrateIndex(snapshot ListingSnapshot)
	// HydrateUniversal applies a full bootstrap payload in one pass.
	HydrateUniversal(payload UniversalBootstrap)
	// GetBySlug returns the cached document for a slug.
	GetBySlug(slug string) (ContentDocument, bool)
	// Contains reports whether a slug is cached, without copying the document.
	Contains(slug string) bool
	// GetTag returns the cached taxonomy entry for a slug.
	GetTag(slug string) (TaxonomyEntry, bool)
	// GetCreator returns the cached creator profile for an ID.
	GetCreator(id string) (CreatorProfile, bool)
	// GetIndex returns the cached listing snapshot for a hub.
	GetIndex(hub HubKey) (ListingSnapshot, bool)
	// Stats returns current population counters.
	Stats() CacheStats
}
