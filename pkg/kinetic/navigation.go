package kinetic

// EntryState is the serializable state attached to a history entry.
//
// The overlay controller tags its synthetic entries with Overlay=true so a
// later popstate can be attributed without guessing from the URL.
type EntryState struct {
	// Overlay marks an entry pushed by the overlay controller.
	Overlay bool
	// Slug is the overlay target when Overlay is true.
	Slug string
	// Type is the overlay target content type when Overlay is true.
	Type ContentType
}

// HistoryEntry is one position in the session history stack.
type HistoryEntry struct {
	// URL is the address-bar value for this entry.
	URL string
	// State is the entry's attached state payload.
	State EntryState
}

// NavigationPort abstracts the platform history primitives the overlay
// controller manipulates. Implementations must be safe for concurrent use.
type NavigationPort interface {
	// CurrentURL returns the address-bar value of the current entry.
	CurrentURL() string
	// CurrentEntry returns the current history entry.
	CurrentEntry() HistoryEntry
	// Push appends a new entry and makes it current.
	Push(entry HistoryEntry)
	// Replace overwrites the current entry in place.
	Replace(entry HistoryEntry)
}

// ScrollPort abstracts viewport scroll control.
type ScrollPort interface {
	// Lock freezes scrolling and returns an idempotent release func.
	Lock() func()
	// Offset returns the current vertical scroll offset.
	Offset() int
	// ScrollTo moves the viewport to a vertical offset.
	ScrollTo(offset int)
}
