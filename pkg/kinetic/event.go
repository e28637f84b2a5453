package kinetic

import (
	"fmt"
	"time"
)

// EventKind identifies a neutral session event type.
type EventKind string

const (
	// EventKindPageRendered is emitted when a page mount delivers its render payload.
	EventKindPageRendered EventKind = "page.rendered"
	// EventKindRouteChanged is emitted when a real navigation commits.
	EventKindRouteChanged EventKind = "route.changed"
	// EventKindHistoryPopped is emitted when native back/forward moves the history pointer.
	EventKindHistoryPopped EventKind = "history.popped"
	// EventKindOverlayOpened is emitted after the overlay controller enters Open.
	EventKindOverlayOpened EventKind = "overlay.opened"
	// EventKindOverlayClosed is emitted after the overlay controller returns to Closed.
	EventKindOverlayClosed EventKind = "overlay.closed"
	// EventKindContentHydrated is emitted after a hydration pass applies to the cache.
	EventKindContentHydrated EventKind = "content.hydrated"
)

// RouteKind classifies a page route for bootstrap and hydration decisions.
type RouteKind string

const (
	// RouteKindHome is the homepage, which owns the freshest full picture.
	RouteKindHome RouteKind = "home"
	// RouteKindHub is one of the four listing pages.
	RouteKindHub RouteKind = "hub"
	// RouteKindDetail is a single content item page.
	RouteKindDetail RouteKind = "detail"
	// RouteKindOther is any route outside the content surfaces.
	RouteKindOther RouteKind = "other"
)

// Event is the neutral envelope that drivers publish and modules consume.
//
// Payload branches are selected by Kind so that browser-specific detail never
// leaks past the driver boundary.
type Event struct {
	// ID is a stable identifier for this event instance.
	ID string
	// Kind selects which payload branch is expected.
	Kind EventKind
	// OccurredAt is the timestamp the event was produced.
	OccurredAt time.Time
	// Page carries the render payload for page.rendered events.
	Page *PageRender
	// Route carries the committed URL for route.changed events.
	Route *RouteChange
	// History carries the now-current entry for history.popped events.
	History *HistoryChange
	// Overlay carries target metadata for overlay lifecycle events.
	Overlay *OverlayChange
	// Hydration carries counters for content.hydrated events.
	Hydration *HydrationReport
	// Metadata stores optional producer-provided key/value context.
	Metadata map[string]string
}

// PageRender is the payload a page mount hands to the hydration module.
//
// A mount publishes exactly one page.rendered event; the MountID is the
// fire-once key that makes re-renders free.
type PageRender struct {
	// MountID uniquely identifies one page mount.
	MountID string
	// Route classifies the page for bootstrap decisions.
	Route RouteKind
	// Hub is set for hub routes.
	Hub HubKey
	// Documents are full documents already present in the render payload,
	// written straight to the cache with zero network cost.
	Documents []ContentDocument
	// Stubs are lightweight items that may need a batched backfill.
	Stubs []ContentStub
	// Snapshots are server-rendered listing snapshots, one per hub.
	Snapshots map[HubKey]ListingSnapshot
	// Bootstrap is the universal payload delivered by the home route.
	Bootstrap *UniversalBootstrap
}

// RouteChange reports a committed real navigation.
type RouteChange struct {
	// URL is the address-bar value after the navigation.
	URL string
}

// HistoryChange reports a popstate transition.
type HistoryChange struct {
	// Entry is the history entry that became current after the pop.
	Entry HistoryEntry
}

// OverlayChange reports an overlay lifecycle transition.
type OverlayChange struct {
	// Slug is the overlay target document.
	Slug string
	// Type is the overlay target content type.
	Type ContentType
	// VirtualURL is the synthetic address shown while the overlay is open.
	VirtualURL string
}

// HydrationReport counts what one hydration pass applied to the cache.
type HydrationReport struct {
	// Source names the hydration path (direct, batch, index, universal).
	Source string
	// MountID is the owning page mount when applicable.
	MountID string
	// Documents is the count of documents upserted.
	Documents int
	// Tags is the count of taxonomy entries upserted.
	Tags int
	// Creators is the count of creator profiles upserted.
	Creators int
	// Snapshots is the count of listing snapshots accepted.
	Snapshots int
}

// Validate checks event envelope and payload coherence.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if e.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidEvent)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing occurred_at", ErrInvalidEvent)
	}

	return validatePayloadByKind(e)
}

// validatePayloadByKind enforces payload branch requirements for each event kind.
func validatePayloadByKind(e *Event) error {
	switch e.Kind {
	case EventKindPageRendered:
		if e.Page == nil {
			return fmt.Errorf("%w: page.rendered requires page payload", ErrInvalidEvent)
		}
		if e.Page.MountID == "" {
			return fmt.Errorf("%w: page.rendered requires mount id", ErrInvalidEvent)
		}
	case EventKindRouteChanged:
		if e.Route == nil {
			return fmt.Errorf("%w: route.changed requires route payload", ErrInvalidEvent)
		}
	case EventKindHistoryPopped:
		if e.History == nil {
			return fmt.Errorf("%w: history.popped requires history payload", ErrInvalidEvent)
		}
	case EventKindOverlayOpened, EventKindOverlayClosed:
		if e.Overlay == nil {
			return fmt.Errorf("%w: overlay event requires overlay payload", ErrInvalidEvent)
		}
	case EventKindContentHydrated:
		if e.Hydration == nil {
			return fmt.Errorf("%w: content.hydrated requires hydration payload", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidEvent, e.Kind)
	}

	return nil
}
