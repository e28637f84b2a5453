package driver

import (
	"context"
	"fmt"
	"log/slog"

	"kinetic/internal/driver/memhistory"
)

// NewBuiltinRegistry constructs the runtime registry with all built-in
// drivers, plus any caller-supplied descriptors.
func NewBuiltinRegistry(extras ...Descriptor) (*Registry, error) {
	descriptors := []Descriptor{
		{
			Type: memhistory.DriverType,
			Builder: func(
				_ context.Context,
				definition Definition,
				builderLogger *slog.Logger,
			) (Runtime, error) {
				historyDriver, err := memhistory.BuildFromConfig(
					definition.Name,
					builderLogger,
					definition.Config,
				)
				if err != nil {
					return Runtime{}, fmt.Errorf("build memhistory runtime from config: %w", err)
				}

				return Runtime{
					Driver:     historyDriver,
					Navigation: historyDriver,
					Scroll:     historyDriver,
				}, nil
			},
		},
	}
	descriptors = append(descriptors, extras...)

	return NewRegistry(descriptors)
}
