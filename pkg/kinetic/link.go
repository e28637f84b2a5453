package kinetic

import "context"

// DecisionKind classifies what a click on a kinetic link should do.
type DecisionKind string

const (
	// DecisionBypass leaves the click to the platform untouched.
	DecisionBypass DecisionKind = "bypass"
	// DecisionIntercept consumes the click and opens the overlay in place.
	DecisionIntercept DecisionKind = "intercept"
	// DecisionFallthrough consumes nothing and lets a real navigation proceed.
	DecisionFallthrough DecisionKind = "fallthrough"
)

// ClickIntent is the neutral description of a click on a content link.
type ClickIntent struct {
	// Slug is the link target document slug.
	Slug string
	// Type is the link target content type.
	Type ContentType
	// Href is the link's real destination URL.
	Href string
	// Scope is the shared-element transition pairing offered by the card.
	Scope Scope
	// Modifier reports a modifier-key or middle-button click, which must
	// keep platform semantics (new tab, download) intact.
	Modifier bool
	// NestedInteractive reports that the click landed on an interactive
	// child element inside the card rather than the card itself.
	NestedInteractive bool
}

// Decision is the resolver's verdict for one click.
type Decision struct {
	// Kind selects bypass, intercept, or fallthrough.
	Kind DecisionKind
	// Reason is a short diagnostic label for logging.
	Reason string
}

// LinkResolver turns click intents into navigation decisions.
//
// Resolution is synchronous and reads only local state: the decision window
// is one click handler, so no fetch may sit on this path.
type LinkResolver interface {
	Resolve(ctx context.Context, intent ClickIntent) (Decision, error)
}

// Hydrator is the agent set that writes upstream content into the cache.
type Hydrator interface {
	// HydrateDirect writes render-payload documents straight to the cache.
	HydrateDirect(ctx context.Context, mountID string, documents []ContentDocument)
	// HydrateBatch backfills missing documents and tags for a stub list
	// using at most one document fetch and one tag fetch.
	HydrateBatch(ctx context.Context, mountID string, stubs []ContentStub)
	// HydrateIndex merges a listing snapshot into the cached hub index.
	HydrateIndex(ctx context.Context, mountID string, snapshot ListingSnapshot)
	// HydrateUniversal applies a full bootstrap payload.
	HydrateUniversal(ctx context.Context, payload UniversalBootstrap)
}
