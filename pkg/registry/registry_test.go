package registry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geomail/geomail/pkg/protocol"
)

type stubStep struct{}

func (stubStep) Execute(context.Context, *protocol.RunContext, *slog.Logger) (any, error) {
	return map[string]any{}, nil
}

type stubFactory struct {
	schema map[string]any
}

func (f *stubFactory) ID() string          { return "stub" }
func (f *stubFactory) Name() string        { return "Stub" }
func (f *stubFactory) Description() string { return "A test step" }

func (f *stubFactory) Schema() map[string]any { return f.schema }

func (f *stubFactory) Create(map[string]any) (protocol.Step, error) {
	return stubStep{}, nil
}

func newTestRegistry(factories ...protocol.StepFactory) *Registry {
	registry := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, factory := range factories {
		registry.RegisterStep(factory)
	}

	return registry
}

func TestRegistry_CreateStep(t *testing.T) {
	registry := newTestRegistry(&stubFactory{})

	step, err := registry.CreateStep("stub", map[string]any{"anything": true})
	require.NoError(t, err)
	assert.NotNil(t, step)
}

func TestRegistry_UnknownStepType(t *testing.T) {
	registry := newTestRegistry()

	_, err := registry.CreateStep("nope", nil)
	assert.ErrorContains(t, err, "not registered")
}

func TestRegistry_SchemaRejectsBadParameters(t *testing.T) {
	registry := newTestRegistry(&stubFactory{schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"max": map[string]any{"type": "integer", "minimum": 1},
		},
		"required": []string{"max"},
	}})

	_, err := registry.CreateStep("stub", map[string]any{"max": 0})
	assert.ErrorContains(t, err, "invalid parameters for stub")

	_, err = registry.CreateStep("stub", map[string]any{})
	assert.ErrorContains(t, err, "invalid parameters for stub")

	_, err = registry.CreateStep("stub", map[string]any{"max": 3})
	assert.NoError(t, err)
}

func TestRegistry_NilConfigValidatesAsEmptyObject(t *testing.T) {
	registry := newTestRegistry(&stubFactory{schema: map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}})

	_, err := registry.CreateStep("stub", nil)
	assert.NoError(t, err)
}

func TestRegistry_AvailableSteps(t *testing.T) {
	registry := newTestRegistry(&stubFactory{})

	assert.ElementsMatch(t, []string{"stub"}, registry.AvailableSteps())
}
