package driver

import (
	"context"
	"log/slog"
	"testing"

	"kinetic/internal/driver/memhistory"
)

func TestNewBuiltinRegistryIncludesMemhistory(t *testing.T) {
	t.Parallel()

	registry, err := NewBuiltinRegistry()
	if err != nil {
		t.Fatalf("new builtin registry failed: %v", err)
	}

	types := registry.Types()
	if len(types) != 1 || types[0] != memhistory.DriverType {
		t.Fatalf("types = %v, want [%s]", types, memhistory.DriverType)
	}

	runtimes, err := registry.BuildEnabled(context.Background(), []Definition{
		{
			Name:    "tab-main",
			Type:    memhistory.DriverType,
			Enabled: true,
			Config:  []byte(`{"start_url":"/reviews"}`),
		},
	}, slog.Default())
	if err != nil {
		t.Fatalf("build enabled failed: %v", err)
	}
	if len(runtimes) != 1 {
		t.Fatalf("runtimes len = %d, want 1", len(runtimes))
	}
	if runtimes[0].Navigation == nil || runtimes[0].Scroll == nil {
		t.Fatal("memhistory runtime must expose navigation and scroll ports")
	}
	if got := runtimes[0].Navigation.CurrentURL(); got != "/reviews" {
		t.Fatalf("start url = %s, want /reviews", got)
	}
}
