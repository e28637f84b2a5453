package kinetic

// Scope names a shared-element transition pairing between an origin card and
// a destination view. ScopeNone means no transition is in flight.
type Scope string

// ScopeNone is the default sentinel: no active transition pairing.
const ScopeNone Scope = ""

// TransitionRegister holds the single active transition scope for a session.
//
// Setting a new scope replaces the previous one; only one transition pairing
// can be live at a time.
type TransitionRegister interface {
	// Get returns the active scope.
	Get() Scope
	// Set makes scope the active pairing, replacing any previous value.
	Set(scope Scope)
	// Reset restores the ScopeNone sentinel.
	Reset()
}
