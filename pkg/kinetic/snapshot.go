package kinetic

import "fmt"

// ListingSnapshot is one hub's cached listing state: an ordered item sequence
// plus pagination and facet metadata.
//
// Snapshots obey the monotonic-length merge rule: an incoming snapshot only
// replaces a cached one when its item sequence is at least as long. This keeps
// an infinite-scroll-expanded list from being truncated by a late first-page
// response.
type ListingSnapshot struct {
	// Hub identifies the owning listing page.
	Hub HubKey `json:"hub"`
	// ItemSlugs is the ordered item sequence.
	ItemSlugs []string `json:"item_slugs"`
	// NextOffset is the pagination cursor for the next fetch.
	NextOffset int `json:"next_offset"`
	// AvailableGames is the hub's game facet values.
	AvailableGames []string `json:"available_games,omitempty"`
	// AvailableTags is the hub's tag facet values.
	AvailableTags []string `json:"available_tags,omitempty"`
}

// Validate checks that the snapshot targets a known hub.
func (s ListingSnapshot) Validate() error {
	if !s.Hub.Valid() {
		return fmt.Errorf("validate listing snapshot: unsupported hub %q", s.Hub)
	}

	return nil
}

// Clone returns a deep copy safe to hand outside the cache.
func (s ListingSnapshot) Clone() ListingSnapshot {
	cloned := s
	cloned.ItemSlugs = cloneStrings(s.ItemSlugs)
	cloned.AvailableGames = cloneStrings(s.AvailableGames)
	cloned.AvailableTags = cloneStrings(s.AvailableTags)

	return cloned
}

// UniversalBootstrap is the full warm-start payload: every map the content
// cache owns, applied in one pass at process start instead of N waterfalled
// hydration calls.
type UniversalBootstrap struct {
	// Documents is the combined document set across hubs.
	Documents []ContentDocument `json:"documents,omitempty"`
	// Tags is the referenced taxonomy set.
	Tags []TaxonomyEntry `json:"tags,omitempty"`
	// Creators is the referenced creator set.
	Creators []CreatorProfile `json:"creators,omitempty"`
	// Snapshots holds one listing snapshot per populated hub.
	Snapshots map[HubKey]ListingSnapshot `json:"snapshots,omitempty"`
}

// Clone returns a deep copy of the bootstrap payload.
func (b UniversalBootstrap) Clone() UniversalBootstrap {
	cloned := UniversalBootstrap{}
	if len(b.Documents) > 0 {
		cloned.Documents = make([]ContentDocument, len(b.Documents))
		for idx, doc := range b.Documents {
			cloned.Documents[idx] = doc.Clone()
		}
	}
	if len(b.Tags) > 0 {
		cloned.Tags = append([]TaxonomyEntry(nil), b.Tags...)
	}
	if len(b.Creators) > 0 {
		cloned.Creators = append([]CreatorProfile(nil), b.Creators...)
	}
	if len(b.Snapshots) > 0 {
		cloned.Snapshots = make(map[HubKey]ListingSnapshot, len(b.Snapshots))
		for hub, snapshot := range b.Snapshots {
			cloned.Snapshots[hub] = snapshot.Clone()
		}
	}

	return cloned
}

// Empty reports whether the payload carries no data at all.
func (b UniversalBootstrap) Empty() bool {
	return len(b.Documents) == 0 && len(b.Tags) == 0 && len(b.Creators) == 0 && len(b.Snapshots) == 0
}
