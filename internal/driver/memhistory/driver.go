// Package memhistory provides an in-memory session history driver.
//
// It stands in for the platform-native history surface: an entry stack with a
// movable pointer, pushState/replaceState-style mutation that fires no events,
// and back/forward traversal that publishes history.popped. One driver
// instance models the address bar and viewport of one session.
package memhistory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"kinetic/pkg/kinetic"
)

// DriverType is the configuration token selecting this driver.
const DriverType = "memhistory"

const defaultStartURL = "/"

// Driver is the in-memory history and viewport runtime.
type Driver struct {
	name   string
	logger *slog.Logger
	clock  func() time.Time
	newID  func() string

	mu      sync.Mutex
	entries []kinetic.HistoryEntry
	index   int
	offset  int
	locks   int
	sink    kinetic.EventSink
}

// Option configures the driver.
type Option func(*Driver)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithStartURL sets the URL of the initial history entry.
func WithStartURL(url string) Option {
	return func(d *Driver) {
		if url != "" {
			d.entries = []kinetic.HistoryEntry{{URL: url}}
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(d *Driver) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithIDGenerator overrides the event ID source.
func WithIDGenerator(generator func() string) Option {
	return func(d *Driver) {
		if generator != nil {
			d.newID = generator
		}
	}
}

// New creates a history driver with a single initial entry.
func New(name string, options ...Option) *Driver {
	driver := &Driver{
		name:    name,
		logger:  slog.Default(),
		clock:   time.Now,
		newID:   uuid.NewString,
		entries: []kinetic.HistoryEntry{{URL: defaultStartURL}},
	}
	for _, option := range options {
		option(driver)
	}

	return driver
}

// Name returns the configured driver instance identifier.
func (d *Driver) Name() string {
	return d.name
}

// Start binds the event sink and blocks until context cancellation.
func (d *Driver) Start(ctx context.Context, sink kinetic.EventSink) error {
	d.mu.Lock()
	d.sink = sink
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "history driver started", "driver", d.name)
	<-ctx.Done()

	d.mu.Lock()
	d.sink = nil
	d.mu.Unlock()

	return ctx.Err()
}

// Bound reports whether an event sink is currently attached, meaning back and
// forward traversal will be heard by subscribers.
func (d *Driver) Bound() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.sink != nil
}

// Shutdown releases driver resources.
func (d *Driver) Shutdown(ctx context.Context) error {
	d.logger.InfoContext(ctx, "history driver stopped", "driver", d.name)

	return nil
}

// CurrentURL returns the address-bar value of the current entry.
func (d *Driver) CurrentURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.entries[d.index].URL
}

// CurrentEntry returns the current history entry.
func (d *Driver) CurrentEntry() kinetic.HistoryEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.entries[d.index]
}

// Push appends a new entry after the current position and makes it current.
// Forward entries are discarded, matching pushState semantics. No event fires.
func (d *Driver) Push(entry kinetic.HistoryEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries = append(d.entries[:d.index+1], entry)
	d.index = len(d.entries) - 1
}

// Replace overwrites the current entry in place. No event fires.
func (d *Driver) Replace(entry kinetic.HistoryEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries[d.index] = entry
}

// Depth returns the number of entries on the history stack.
func (d *Driver) Depth() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.entries)
}

// Navigate models a committed real navigation: a new entry becomes current
// and route.changed is published.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.Push(kinetic.HistoryEntry{URL: url})

	event := d.newEvent(kinetic.EventKindRouteChanged)
	event.Route = &kinetic.RouteChange{URL: url}
	if err := d.publish(ctx, event); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}

	return nil
}

// Back models the native back button: the pointer moves to the previous
// entry and history.popped is published with the now-current entry.
func (d *Driver) Back(ctx context.Context) error {
	d.mu.Lock()
	if d.index == 0 {
		d.mu.Unlock()
		return nil
	}
	d.index--
	entry := d.entries[d.index]
	d.mu.Unlock()

	event := d.newEvent(kinetic.EventKindHistoryPopped)
	event.History = &kinetic.HistoryChange{Entry: entry}
	if err := d.publish(ctx, event); err != nil {
		return fmt.Errorf("history back: %w", err)
	}

	return nil
}

// Forward models the native forward button.
func (d *Driver) Forward(ctx context.Context) error {
	d.mu.Lock()
	if d.index >= len(d.entries)-1 {
		d.mu.Unlock()
		return nil
	}
	d.index++
	entry := d.entries[d.index]
	d.mu.Unlock()

	event := d.newEvent(kinetic.EventKindHistoryPopped)
	event.History = &kinetic.HistoryChange{Entry: entry}
	if err := d.publish(ctx, event); err != nil {
		return fmt.Errorf("history forward: %w", err)
	}

	return nil
}

// Lock freezes scrolling and returns an idempotent release func.
func (d *Driver) Lock() func() {
	d.mu.Lock()
	d.locks++
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			if d.locks > 0 {
				d.locks--
			}
			d.mu.Unlock()
		})
	}
}

// Locked reports whether any scroll lock is held.
func (d *Driver) Locked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.locks > 0
}

// Offset returns the current vertical scroll offset.
func (d *Driver) Offset() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.offset
}

// ScrollTo moves the viewport to a vertical offset.
func (d *Driver) ScrollTo(offset int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if offset < 0 {
		offset = 0
	}
	d.offset = offset
}

func (d *Driver) newEvent(kind kinetic.EventKind) *kinetic.Event {
	return &kinetic.Event{
		ID:         d.newID(),
		Kind:       kind,
		OccurredAt: d.clock(),
	}
}

// publish hands an event to the bound sink. Events raised before Start or
// after shutdown are dropped, matching a page that has no listeners yet.
func (d *Driver) publish(ctx context.Context, event *kinetic.Event) error {
	d.mu.Lock()
	sink := d.sink
	d.mu.Unlock()

	if sink == nil {
		d.logger.DebugContext(ctx, "history event dropped, no sink bound",
			"driver", d.name,
			"kind", event.Kind,
		)
		return nil
	}

	if err := sink.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish %s: %w", event.Kind, err)
	}

	return nil
}

// config is the driver-type-specific configuration payload.
type config struct {
	StartURL string `json:"start_url"`
}

// BuildFromConfig constructs a driver instance from a raw JSON payload.
func BuildFromConfig(name string, logger *slog.Logger, raw []byte) (*Driver, error) {
	cfg := config{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse memhistory config: %w", err)
		}
	}

	options := []Option{WithLogger(logger)}
	if cfg.StartURL != "" {
		options = append(options, WithStartURL(cfg.StartURL))
	}

	return New(name, options...), nil
}

var (
	_ kinetic.Driver         = (*Driver)(nil)
	_ kinetic.NavigationPort = (*Driver)(nil)
	_ kinetic.ScrollPort     = (*Driver)(nil)
)
