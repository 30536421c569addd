// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/weftworks/weft/pkg/actions/httprequest"
	"github.com/weftworks/weft/pkg/actions/logaction"
	"github.com/weftworks/weft/pkg/actions/transform"
	"github.com/weftworks/weft/pkg/capability"
)

// NewRegistry builds the capability registry with the native actions
// registered.
func NewRegistry(logger *slog.Logger) (*capability.Registry, error) {
	registry := capability.NewRegistry(logger)

	if err := registry.RegisterAction(httprequest.Identifier, httprequest.New()); err != nil {
		return nil, err
	}

	if err := registry.RegisterAction(transform.Identifier, transform.New()); err != nil {
		return nil, err
	}

	if err := registry.RegisterAction(logaction.Identifier, logaction.New()); err != nil {
		return nil, err
	}

	return registry, nil
}
