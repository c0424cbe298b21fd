// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"log/slog"

	"github.com/geomail/geomail/pkg/registry"
	"github.com/geomail/geomail/pkg/steps/batchsummaries"
	"github.com/geomail/geomail/pkg/steps/fetchemails"
	"github.com/geomail/geomail/pkg/steps/forwardemails"
	"github.com/geomail/geomail/pkg/steps/summarizeemails"
)

func NewRegistry(log *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(log)

	reg.RegisterStep(fetchemails.NewFactory())
	reg.RegisterStep(summarizeemails.NewFactory())
	reg.RegisterStep(forwardemails.NewFactory())
	reg.RegisterStep(batchsummaries.NewFactory())

	return reg
}
