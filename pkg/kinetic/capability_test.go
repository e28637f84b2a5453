package kinetic

import (
	"testing"
	"time"
)

func TestInterestSetMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		interest InterestSet
		event    *Event
		want     bool
	}{
		{
			name: "require page matches when page is present",
			interest: InterestSet{
				Kinds:       []EventKind{EventKindPageRendered},
				RequirePage: true,
			},
			event: &Event{
				Kind: EventKindPageRendered,
				Page: &PageRender{MountID: "mount-1", Route: RouteKindHub},
			},
			want: true,
		},
		{
			name: "require page rejects missing page",
			interest: InterestSet{
				Kinds:       []EventKind{EventKindPageRendered},
				RequirePage: true,
			},
			event: &Event{Kind: EventKindPageRendered},
			want:  false,
		},
		{
			name:     "rejects nil event",
			interest: InterestSet{RequirePage: true},
			event:    nil,
			want:     false,
		},
		{
			name: "kind filter rejects other kinds",
			interest: InterestSet{
				Kinds: []EventKind{EventKindOverlayOpened},
			},
			event: &Event{Kind: EventKindRouteChanged, Route: &RouteChange{URL: "/"}},
			want:  false,
		},
		{
			name: "route filter matches page route",
			interest: InterestSet{
				Routes: []RouteKind{RouteKindHome},
			},
			event: &Event{
				Kind: EventKindPageRendered,
				Page: &PageRender{MountID: "mount-1", Route: RouteKindHome},
			},
			want: true,
		},
		{
			name: "route filter rejects other routes",
			interest: InterestSet{
				Routes: []RouteKind{RouteKindHome},
			},
			event: &Event{
				Kind: EventKindPageRendered,
				Page: &PageRender{MountID: "mount-1", Route: RouteKindDetail},
			},
			want: false,
		},
		{
			name: "require history matches popped entry",
			interest: InterestSet{
				Kinds:          []EventKind{EventKindHistoryPopped},
				RequireHistory: true,
			},
			event: &Event{
				Kind:    EventKindHistoryPopped,
				History: &HistoryChange{Entry: HistoryEntry{URL: "/reviews"}},
			},
			want: true,
		},
		{
			name:     "empty interest matches any event",
			interest: InterestSet{},
			event:    &Event{Kind: EventKindContentHydrated, OccurredAt: time.Now()},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.interest.Matches(tt.event); got != tt.want {
				t.Fatalf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInterestSetAllows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		authority InterestSet
		filter    InterestSet
		want      bool
	}{
		{
			name:      "empty authority allows anything",
			authority: InterestSet{},
			filter:    InterestSet{Kinds: []EventKind{EventKindOverlayOpened}},
			want:      true,
		},
		{
			name: "kind subset allowed",
			authority: InterestSet{
				Kinds: []EventKind{EventKindOverlayOpened, EventKindOverlayClosed},
			},
			filter: InterestSet{Kinds: []EventKind{EventKindOverlayClosed}},
			want:   true,
		},
		{
			name: "kind outside authority rejected",
			authority: InterestSet{
				Kinds: []EventKind{EventKindOverlayOpened},
			},
			filter: InterestSet{Kinds: []EventKind{EventKindRouteChanged}},
			want:   false,
		},
		{
			name:      "page requirement must be carried by filter",
			authority: InterestSet{RequirePage: true},
			filter:    InterestSet{},
			want:      false,
		},
		{
			name:      "route subset allowed",
			authority: InterestSet{Routes: []RouteKind{RouteKindHome, RouteKindHub}},
			filter:    InterestSet{Routes: []RouteKind{RouteKindHub}},
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.authority.Allows(tt.filter); got != tt.want {
				t.Fatalf("Allows() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestModuleSpecCapabilities(t *testing.T) {
	t.Parallel()

	spec := ModuleSpec{
		Handlers: []ModuleHandler{
			{Capability: Capability{Name: "writer"}},
		},
		AdditionalCapabilities: []Capability{{Name: "reader"}},
	}

	capabilities := spec.Capabilities()
	if len(capabilities) != 2 {
		t.Fatalf("Capabilities() returned %d entries, want 2", len(capabilities))
	}
	if capabilities[0].Name != "writer" || capabilities[1].Name != "reader" {
		t.Fatalf("unexpected capability order: %v", capabilities)
	}
}
