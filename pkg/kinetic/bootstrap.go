package kinetic

// BootstrapLoader establishes the session content baseline exactly once.
//
// The home route carries the universal payload inline and is applied
// synchronously; every other entry route reports ready immediately and warms
// the cache from a deferred background fetch instead.
type BootstrapLoader interface {
	// Ready reports whether the bootstrap decision for this session was made.
	Ready() bool
}
