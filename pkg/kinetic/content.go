package kinetic

import (
	"fmt"
	"time"
)

// ContentType identifies one of the platform's content kinds.
type ContentType string

const (
	// ContentTypeReview is a scored game review.
	ContentTypeReview ContentType = "review"
	// ContentTypeArticle is a long-form editorial article.
	ContentTypeArticle ContentType = "article"
	// ContentTypeNews is a short news item.
	ContentTypeNews ContentType = "news"
	// ContentTypeRelease is a game release record with linked coverage.
	ContentTypeRelease ContentType = "release"
)

// Valid reports whether the content type is a member of the closed set.
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeReview, ContentTypeArticle, ContentTypeNews, ContentTypeRelease:
		return true
	default:
		return false
	}
}

// Hub returns the listing hub that carries this content type.
func (t ContentType) Hub() (HubKey, bool) {
	switch t {
	case ContentTypeReview:
		return HubReviews, true
	case ContentTypeArticle:
		return HubArticles, true
	case ContentTypeNews:
		return HubNews, true
	case ContentTypeRelease:
		return HubReleases, true
	default:
		return "", false
	}
}

// HubKey identifies one of the top-level listing pages.
type HubKey string

const (
	// HubReviews is the reviews listing page.
	HubReviews HubKey = "reviews"
	// HubArticles is the articles listing page.
	HubArticles HubKey = "articles"
	// HubNews is the news listing page.
	HubNews HubKey = "news"
	// HubReleases is the releases listing page.
	HubReleases HubKey = "releases"
)

// Valid reports whether the hub key is a member of the closed set.
func (h HubKey) Valid() bool {
	switch h {
	case HubReviews, HubArticles, HubNews, HubReleases:
		return true
	default:
		return false
	}
}

// ContentTypeForHub returns the content type carried by a hub.
func ContentTypeForHub(hub HubKey) (ContentType, bool) {
	switch hub {
	case HubReviews:
		return ContentTypeReview, true
	case HubArticles:
		return ContentTypeArticle, true
	case HubNews:
		return ContentTypeNews, true
	case HubReleases:
		return ContentTypeRelease, true
	default:
		return "", false
	}
}

// AllHubs returns the closed hub set in presentation order.
func AllHubs() []HubKey {
	return []HubKey{HubReviews, HubArticles, HubNews, HubReleases}
}

// MediaRef points at a hosted image or video asset.
type MediaRef struct {
	// URL is the retrievable asset location.
	URL string `json:"url"`
	// Alt is the accessibility description.
	Alt string `json:"alt,omitempty"`
	// Width is the intrinsic pixel width when known.
	Width int `json:"width,omitempty"`
	// Height is the intrinsic pixel height when known.
	Height int `json:"height,omitempty"`
}

// ContentDocument is the normalized representation of one content item.
//
// Documents are created by hydration agents and owned exclusively by the
// content cache; readers receive defensive clones and hold no mutation rights.
type ContentDocument struct {
	// ID is the upstream store identifier, used for batch fetches.
	ID string `json:"id"`
	// Slug is the stable routing identifier.
	Slug string `json:"slug"`
	// Type selects the detail layout and the owning hub.
	Type ContentType `json:"type"`
	// Title is the display headline.
	Title string `json:"title"`
	// Summary is the short teaser text.
	Summary string `json:"summary,omitempty"`
	// BodyHTML is the sanitized rich-text body.
	BodyHTML string `json:"body_html,omitempty"`
	// Score is the review score; zero for non-review types.
	Score float64 `json:"score,omitempty"`
	// ReleaseDate is set for release documents.
	ReleaseDate time.Time `json:"release_date,omitzero"`
	// PublishedAt is the publication timestamp.
	PublishedAt time.Time `json:"published_at,omitzero"`
	// MainImage is the hero asset when present.
	MainImage *MediaRef `json:"main_image,omitempty"`
	// TagSlugs references taxonomy entries by slug; resolution is a lookup.
	TagSlugs []string `json:"tag_slugs,omitempty"`
	// CreatorIDs references creator profiles by external key.
	CreatorIDs []string `json:"creator_ids,omitempty"`
	// RelatedSlugs references further reading by slug.
	RelatedSlugs []string `json:"related_slugs,omitempty"`
	// LinkedSlugs references coverage linked to a release; lazily backfilled.
	LinkedSlugs []string `json:"linked_slugs,omitempty"`
}

// Validate checks that the document can ever be retrieved again.
func (d ContentDocument) Validate() error {
	if d.Slug == "" {
		return fmt.Errorf("validate content document: missing slug")
	}
	if !d.Type.Valid() {
		return fmt.Errorf("validate content document %s: unsupported type %q", d.Slug, d.Type)
	}

	return nil
}

// Clone returns a deep copy safe to hand outside the cache.
func (d ContentDocument) Clone() ContentDocument {
	cloned := d
	if d.MainImage != nil {
		image := *d.MainImage
		cloned.MainImage = &image
	}
	cloned.TagSlugs = cloneStrings(d.TagSlugs)
	cloned.CreatorIDs = cloneStrings(d.CreatorIDs)
	cloned.RelatedSlugs = cloneStrings(d.RelatedSlugs)
	cloned.LinkedSlugs = cloneStrings(d.LinkedSlugs)

	return cloned
}

// TaxonomyEntry is a tag or category record with a lifecycle independent from
// the documents that reference it.
type TaxonomyEntry struct {
	// Slug is the stable taxonomy identifier.
	Slug string `json:"slug"`
	// Title is the display label.
	Title string `json:"title"`
	// Kind distinguishes tags from categories.
	Kind string `json:"kind,omitempty"`
	// Description is the optional hub intro text.
	Description string `json:"description,omitempty"`
}

// Validate checks that the entry carries its lookup key.
func (t TaxonomyEntry) Validate() error {
	if t.Slug == "" {
		return fmt.Errorf("validate taxonomy entry: missing slug")
	}

	return nil
}

// CreatorProfile resolves an author/contributor reference to display data.
type CreatorProfile struct {
	// ID is the external account identifier referenced by documents.
	ID string `json:"id"`
	// Username is the stable handle.
	Username string `json:"username"`
	// DisplayName is the human-readable name.
	DisplayName string `json:"display_name,omitempty"`
	// AvatarURL is the optional profile image location.
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Validate checks that the profile carries its lookup key.
func (c CreatorProfile) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("validate creator profile: missing id")
	}

	return nil
}

// ContentStub is the lightweight list-view shape used to plan batch hydration.
type ContentStub struct {
	// ID identifies the full document in the upstream store.
	ID string `json:"id"`
	// Slug is the routing identifier, used for cache presence checks.
	Slug string `json:"slug"`
	// Type is the stub's content type.
	Type ContentType `json:"type"`
	// TagSlugs references taxonomy entries the card displays.
	TagSlugs []string `json:"tag_slugs,omitempty"`
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	return append([]string(nil), values...)
}
