// Package registry maps step types to their factories and validates step
// parameters before instantiation.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/geomail/geomail/pkg/protocol"
)

type Registry struct {
	logger        *slog.Logger
	stepFactories map[string]protocol.StepFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:        logger,
		stepFactories: make(map[string]protocol.StepFactory),
	}
}

func (r *Registry) RegisterStep(factory protocol.StepFactory) {
	r.stepFactories[factory.ID()] = factory
}

// CreateStep validates config against the factory's schema and instantiates
// the step.
func (r *Registry) CreateStep(stepType string, config map[string]any) (protocol.Step, error) {
	factory, ok := r.stepFactories[stepType]
	if !ok {
		return nil, fmt.Errorf("step type '%s' not registered", stepType)
	}

	if err := r.validate(factory, config); err != nil {
		return nil, err
	}

	return factory.Create(config)
}

// AvailableSteps lists the registered step type ids.
func (r *Registry) AvailableSteps() []string {
	types := make([]string, 0, len(r.stepFactories))
	for stepType := range r.stepFactories {
		types = append(types, stepType)
	}

	return types
}

func (r *Registry) validate(factory protocol.StepFactory, config map[string]any) error {
	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema for %s: %w", factory.ID(), err)
	}

	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters for %s: %w", factory.ID(), err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(configJSON),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", factory.ID(), err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("invalid parameters for %s: %s", factory.ID(), strings.Join(details, "; "))
	}

	return nil
}
