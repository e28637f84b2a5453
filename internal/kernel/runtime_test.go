package kernel

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"kinetic/pkg/kinetic"
)

// TestAssertSubscriptionAllowed verifies capability negotiation for subscriptions.
func TestAssertSubscriptionAllowed(t *testing.T) {
	t.Parallel()

	pageCapability := kinetic.Capability{
		Name: "page-observer",
		Interest: kinetic.InterestSet{
			Kinds: []kinetic.EventKind{kinetic.EventKindPageRendered},
		},
	}

	tests := []struct {
		name         string
		capabilities []kinetic.Capability
		interest     kinetic.InterestSet
		wantErr      bool
	}{
		{
			name:         "no declared capabilities rejected",
			capabilities: nil,
			interest:     kinetic.InterestSet{},
			wantErr:      true,
		},
		{
			name:         "covered interest allowed",
			capabilities: []kinetic.Capability{pageCapability},
			interest: kinetic.InterestSet{
				Kinds: []kinetic.EventKind{kinetic.EventKindPageRendered},
			},
			wantErr: false,
		},
		{
			name:         "uncovered interest rejected",
			capabilities: []kinetic.Capability{pageCapability},
			interest: kinetic.InterestSet{
				Kinds: []kinetic.EventKind{kinetic.EventKindOverlayOpened},
			},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := assertSubscriptionAllowed(testCase.capabilities, "test-sub", testCase.interest)
			if testCase.wantErr && err == nil {
				t.Fatal("expected subscription rejection")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected rejection: %v", err)
			}
		})
	}
}

// TestModuleRecordCloseSubscriptionsIsIdempotent verifies repeated close safety.
func TestModuleRecordCloseSubscriptionsIsIdempotent(t *testing.T) {
	t.Parallel()

	closes := 0
	record := &moduleRecord{name: "closer"}
	record.addSubscription(&funcSubscription{
		name: "s1",
		close: func(context.Context) error {
			closes++
			return nil
		},
	})

	if err := record.closeSubscriptions(context.Background()); err != nil {
		t.Fatalf("close subscriptions failed: %v", err)
	}
	if err := record.closeSubscriptions(context.Background()); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
	if closes != 1 {
		t.Fatalf("close count = %d, want 1", closes)
	}
}

// TestModuleRecordCloseSubscriptionsAggregatesErrors verifies error joining.
func TestModuleRecordCloseSubscriptionsAggregatesErrors(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("close blew up")
	record := &moduleRecord{name: "failing"}
	record.addSubscription(&funcSubscription{
		name: "bad",
		close: func(context.Context) error {
			return wantErr
		},
	})
	record.addSubscription(&funcSubscription{name: "good", close: func(context.Context) error { return nil }})

	err := record.closeSubscriptions(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want wrapped %v", err, wantErr)
	}
}

type funcSubscription struct {
	name  string
	close func(ctx context.Context) error
}

func (s *funcSubscription) Name() string {
	return s.name
}

func (s *funcSubscription) Close(ctx context.Context) error {
	if s.close == nil {
		return fmt.Errorf("close %s: no close func", s.name)
	}

	return s.close(ctx)
}
