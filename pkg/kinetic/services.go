package kinetic

import (
	"fmt"
)

// Stable service registry names shared across modules and drivers.
const (
	// ServiceLogger resolves the shared *slog.Logger.
	ServiceLogger = "kinetic.logger"
	// ServiceEventSink resolves the kernel's event bus as a publish-only sink.
	ServiceEventSink = "kinetic.event_sink"
	// ServiceContentCache resolves the shared ContentCache.
	ServiceContentCache = "kinetic.content_cache"
	// ServiceContentFetcher resolves the upstream ContentFetcher.
	ServiceContentFetcher = "kinetic.content_fetcher"
	// ServiceHydrator resolves the hydration agent set.
	ServiceHydrator = "kinetic.hydrator"
	// ServiceTransitionRegister resolves the transition scope register.
	ServiceTransitionRegister = "kinetic.transition_register"
	// ServiceOverlayController resolves the overlay controller.
	ServiceOverlayController = "kinetic.overlay_controller"
	// ServiceNavigationPort resolves the platform navigation port.
	ServiceNavigationPort = "kinetic.navigation_port"
	// ServiceScrollPort resolves the platform scroll port.
	ServiceScrollPort = "kinetic.scroll_port"
	// ServiceDetailRenderer resolves the shared detail renderer.
	ServiceDetailRenderer = "kinetic.detail_renderer"
	// ServiceLinkResolver resolves the navigation intent resolver.
	ServiceLinkResolver = "kinetic.link_resolver"
	// ServiceBootstrapLoader resolves the bootstrap loader.
	ServiceBootstrapLoader = "kinetic.bootstrap_loader"
)

// ServiceRegistry provides runtime dependency injection to modules and drivers.
type ServiceRegistry interface {
	// Register binds a singleton service value to a stable name.
	Register(name string, service any) error
	// Resolve returns a registered service by name.
	Resolve(name string) (any, error)
}

// ResolveAs resolves a service and casts it to the requested type.
func ResolveAs[T any](registry ServiceRegistry, name string) (T, error) {
	var zero T

	service, err := registry.Resolve(name)
	if err != nil {
		return zero, fmt.Errorf("resolve service %s: %w", name, err)
	}

	typed, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("resolve service %s: type assertion failed", name)
	}

	return typed, nil
}
