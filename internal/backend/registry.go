package backend

import (
	"fmt"

	"certos/internal/config"
	"certos/internal/domain"
	"certos/internal/port"
)

// Factory is a function that creates an ExtractionBackend from the app config.
type Factory func(cfg *config.Config) (port.ExtractionBackend, error)

// registry of backend factories, populated explicitly via Register at startup.
var registry = map[domain.BackendName]Factory{}

// Register registers a backend factory by name.
func Register(name domain.BackendName, factory Factory) {
	registry[name] = factory
}

// New creates an ExtractionBackend by name using the registered factory.
func New(name domain.BackendName, cfg *config.Config) (port.ExtractionBackend, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownBackend, name)
	}
	return factory(cfg)
}
