package kinetic

// Capability describes what a module can process and what resources it requires.
type Capability struct {
	Name             string
	Description      string
	Interest         InterestSet
	RequiredServices []string
	Metadata         map[string]string
}

// InterestSet describes event selection criteria for capability negotiation.
type InterestSet struct {
	Kinds            []EventKind
	Routes           []RouteKind
	RequirePage      bool
	RequireHistory   bool
	RequireOverlay   bool
	RequireHydration bool
}

// Matches reports whether an event satisfies the declared interest set.
func (i InterestSet) Matches(event *Event) bool {
	if event == nil {
		return false
	}
	if len(i.Kinds) > 0 && !containsKind(i.Kinds, event.Kind) {
		return false
	}
	if i.RequirePage && event.Page == nil {
		return false
	}
	if i.RequireHistory && event.History == nil {
		return false
	}
	if i.RequireOverlay && event.Overlay == nil {
		return false
	}
	if i.RequireHydration && event.Hydration == nil {
		return false
	}
	if len(i.Routes) > 0 && !eventMatchesRoute(event, i.Routes) {
		return false
	}

	return true
}

// Allows reports whether this interest set can safely satisfy another filter.
func (i InterestSet) Allows(filter InterestSet) bool {
	if len(i.Kinds) > 0 && !allKindsIncluded(filter.Kinds, i.Kinds) {
		return false
	}
	if len(i.Routes) > 0 && !allRoutesIncluded(filter.Routes, i.Routes) {
		return false
	}
	if i.RequirePage && !filter.RequirePage {
		return false
	}
	if i.RequireHistory && !filter.RequireHistory {
		return false
	}
	if i.RequireOverlay && !filter.RequireOverlay {
		return false
	}
	if i.RequireHydration && !filter.RequireHydration {
		return false
	}

	return true
}

// containsKind reports whether target is present in kinds.
func containsKind(kinds []EventKind, target EventKind) bool {
	for _, candidate := range kinds {
		if candidate == target {
			return true
		}
	}

	return false
}

// eventMatchesRoute checks the page payload route against the allowed routes.
func eventMatchesRoute(event *Event, routes []RouteKind) bool {
	if event.Page == nil {
		return false
	}

	return containsRoute(routes, event.Page.Route)
}

// allKindsIncluded reports whether subset is fully contained in allowed.
func allKindsIncluded(subset, allowed []EventKind) bool {
	for _, item := range subset {
		if !containsKind(allowed, item) {
			return false
		}
	}

	return true
}

// allRoutesIncluded reports whether subset is fully contained in allowed.
func allRoutesIncluded(subset, allowed []RouteKind) bool {
	for _, item := range subset {
		if !containsRoute(allowed, item) {
			return false
		}
	}

	return true
}

// containsRoute reports whether target is present in routes.
func containsRoute(routes []RouteKind, target RouteKind) bool {
	for _, candidate := range routes {
		if candidate == target {
			return true
		}
	}

	return false
}
