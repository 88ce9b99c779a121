package cmd

import (
	"log/slog"

	"github.com/convflow/convflow/pkg/registry"
)

// NewRegistry builds an action registry with the built-in actions wired.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)
	reg.RegisterDefaults()

	return reg
}
