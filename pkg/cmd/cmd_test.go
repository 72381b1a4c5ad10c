package cmd

import (
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/nodebase/pkg/channels/kafka"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/persistence/file"
	"github.com/dukex/nodebase/pkg/step/redisstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersistenceProvider(t *testing.T) {
	tests := map[string]string{
		"postgres://user@localhost/db":   "postgres",
		"postgresql://user@localhost/db": "postgresql",
		"file://./data":                  "file",
		"./data":                         "file",
	}

	for url, expected := range tests {
		assert.Equal(t, expected, parsePersistenceProvider(url), url)
	}
}

func TestNewPersistence_File(t *testing.T) {
	p, err := NewPersistence(t.Context(), slog.Default(), t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, p)
}

func TestNewTransport(t *testing.T) {
	transport, err := NewTransport(EventBusGoChannel, kafka.Config{}, slog.Default())
	require.NoError(t, err)
	assert.NotNil(t, transport.EventBus(2))
	assert.NotNil(t, transport.StatusBroker())
	require.NoError(t, transport.Close())

	_, err = NewTransport("rabbitmq", kafka.Config{}, slog.Default())
	require.Error(t, err)

	_, err = NewTransport(EventBusKafka, kafka.Config{}, slog.Default())
	require.ErrorIs(t, err, kafka.ErrNoBrokers)
}

func TestNewRegistry_RegistersEveryNodeType(t *testing.T) {
	p := file.NewPersistence(t.TempDir())

	reg, err := NewRegistry(slog.Default(), p, RegistryConfig{CredentialsSecret: "secret"})
	require.NoError(t, err)
	assert.ElementsMatch(t, models.NodeTypes(), reg.Types())
}

func TestNewStepStore(t *testing.T) {
	p := file.NewPersistence(t.TempDir())

	store, closeStore, err := NewStepStore(t.Context(), "", p)
	require.NoError(t, err)
	assert.Equal(t, p.StepRepository(), store)
	require.NoError(t, closeStore())

	server := miniredis.RunT(t)

	store, closeStore, err = NewStepStore(t.Context(), "redis://"+server.Addr(), p)
	require.NoError(t, err)
	assert.IsType(t, &redisstore.Store{}, store)
	require.NoError(t, closeStore())
}
