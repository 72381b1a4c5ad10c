package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/nodebase/pkg/step"
	"github.com/dukex/nodebase/pkg/step/redisstore"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts ...redisstore.Option) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})

	store := redisstore.NewFromClient(client, opts...)
	t.Cleanup(func() {
		_ = store.Close()
	})

	return store, mr
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := newStore(t)

	value, found, err := store.Get(t.Context(), "exec", "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)
}

func TestStore_PutKeepsFirstValue(t *testing.T) {
	store, _ := newStore(t)

	require.NoError(t, store.Put(t.Context(), "exec", "discord-webhook", []byte(`{"messageContent":"hi"}`)))
	require.NoError(t, store.Put(t.Context(), "exec", "discord-webhook", []byte(`{"messageContent":"other"}`)))

	value, found, err := store.Get(t.Context(), "exec", "discord-webhook")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"messageContent":"hi"}`, string(value))
}

func TestStore_TTL(t *testing.T) {
	store, mr := newStore(t, redisstore.WithTTL(time.Minute), redisstore.WithPrefix("test:"))

	require.NoError(t, store.Put(t.Context(), "exec", "s", []byte(`1`)))

	assert.True(t, mr.Exists("test:exec"))
	assert.Equal(t, time.Minute, mr.TTL("test:exec"))

	mr.FastForward(2 * time.Minute)

	_, found, err := store.Get(t.Context(), "exec", "s")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_BacksStepMemoization(t *testing.T) {
	store, _ := newStore(t)

	calls := 0
	run := func(context.Context) (map[string]string, error) {
		calls++

		return map[string]string{"text": "4"}, nil
	}

	first, err := step.Run(t.Context(), step.New(store, "exec"), "openai-generate-text", run)
	require.NoError(t, err)

	second, err := step.Run(t.Context(), step.New(store, "exec"), "openai-generate-text", run)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := redisstore.New("not-a-url")
	require.Error(t, err)
}
