package registry_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/nodebase/pkg/execerr"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/nodes/trigger"
	"github.com/dukex/nodebase/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDefaultNodes_CoversEveryType(t *testing.T) {
	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaultNodes(registry.Dependencies{})

	require.NoError(t, reg.Validate())
	assert.Equal(t, models.NodeTypes(), reg.Types())

	for _, nodeType := range models.NodeTypes() {
		factory, err := reg.Get(nodeType)
		require.NoError(t, err)
		assert.Equal(t, nodeType, factory.Type())
		assert.Equal(t, "object", factory.Schema()["type"])
	}
}

func TestGet_UnknownType(t *testing.T) {
	reg := registry.NewRegistry(slog.Default())

	_, err := reg.Get("SCHEDULE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, execerr.ErrUnknownNodeType))
	assert.Equal(t, execerr.KindConfiguration, execerr.KindOf(err))
	assert.False(t, execerr.IsRetriable(err))
}

func TestValidate_ReportsMissingTypes(t *testing.T) {
	reg := registry.NewRegistry(slog.Default())
	reg.RegisterNode(trigger.NewManualTrigger())

	err := reg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_REQUEST")
	assert.NotContains(t, err.Error(), "MANUAL_TRIGGER")
}

func TestNodes_DescribesRegisteredTypes(t *testing.T) {
	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaultNodes(registry.Dependencies{})

	infos := reg.Nodes()
	require.Len(t, infos, len(models.NodeTypes()))

	assert.Equal(t, models.NodeTypeInitial, infos[0].Type)
	assert.Equal(t, models.CategoryTypeTrigger, infos[0].Category)

	required, ok := infos[4].Schema["required"].([]string)
	require.True(t, ok)
	assert.Equal(t, models.NodeTypeHTTPRequest, infos[4].Type)
	assert.Equal(t, []string{"endpoint", "method"}, required)
}
