package kinetic

import (
	"context"
	"io"
)

// OverlayState is a read-only snapshot of the overlay controller.
type OverlayState struct {
	// IsOpen reports whether an overlay is currently presented.
	IsOpen bool
	// TargetSlug is the presented document's slug while open.
	TargetSlug string
	// TargetType is the presented document's content type while open.
	TargetType ContentType
	// SavedURL is the address-bar value to restore on close.
	SavedURL string
	// SavedScrollOffset is the viewport offset to restore on close.
	SavedScrollOffset int
}

// OpenRequest carries the parameters for presenting an overlay.
type OpenRequest struct {
	// Slug is the target document slug; it must already be cached.
	Slug string
	// Type is the target content type.
	Type ContentType
	// Scope is the shared-element transition pairing, ScopeNone if absent.
	Scope Scope
	// VirtualURL overrides the synthetic address shown while open.
	// When empty the controller derives "/{type}/{slug}".
	VirtualURL string
}

// OverlayController owns the in-place detail presentation lifecycle: history
// entry management, scroll locking, and close-path convergence.
type OverlayController interface {
	// Open presents the overlay for a cached document. Opening while already
	// open replaces the presented target without stacking history entries.
	Open(ctx context.Context, request OpenRequest) error
	// Close dismisses the overlay. Closing while closed is a no-op.
	Close(ctx context.Context) error
	// State returns a snapshot of the controller state.
	State() OverlayState
	// Render writes the presented document's detail view to w.
	Render(ctx context.Context, w io.Writer) error
}

// DetailRenderer produces the detail view for a document. The overlay path
// and the real-page path share one renderer so the two stay identical.
type DetailRenderer interface {
	RenderDetail(ctx context.Context, w io.Writer, document ContentDocument, scope Scope) error
}
