package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GMosna/ContabilApp/internal/config"
	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/state"
	statemem "github.com/GMosna/ContabilApp/internal/state/memory"
)

type failingSessions struct{ statemem.Store }

func (*failingSessions) LoadSession(context.Context) (core.Session, error) {
	return core.Session{}, errors.New("disk gone")
}

func TestSessionTokens(t *testing.T) {
	ctx := context.Background()

	t.Run("store wins", func(t *testing.T) {
		store := state.NewStore()
		persisted := statemem.New()
		require.NoError(t, persisted.SaveSession(ctx, core.Session{Token: "old"}))
		store.SetSession(core.Session{Token: "live"})

		token, err := SessionTokens(store, persisted).Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "live", token)
	})

	t.Run("falls back to persisted session", func(t *testing.T) {
		store := state.NewStore()
		persisted := statemem.New()
		sess := core.Session{Token: "saved", User: core.User{Name: "Ana"}}
		require.NoError(t, persisted.SaveSession(ctx, sess))

		token, err := SessionTokens(store, persisted).Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "saved", token)

		got, err := store.Session()
		require.NoError(t, err)
		assert.Equal(t, "Ana", got.User.Name)
	})

	t.Run("nobody logged in", func(t *testing.T) {
		token, err := SessionTokens(state.NewStore(), statemem.New()).Token(ctx)
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("persistence error", func(t *testing.T) {
		_, err := SessionTokens(state.NewStore(), &failingSessions{}).Token(ctx)
		assert.ErrorContains(t, err, "disk gone")
	})
}

func TestBuildAppInMemory(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataBackend = "memory"

	app, err := BuildApp(context.Background(), SetupLogger(), cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.Same(t, cfg, app.Config)
	assert.NotNil(t, app.Finance)
	assert.NotNil(t, app.Outbox)
	assert.Nil(t, app.Backend.AMQP)
	assert.False(t, app.Store.LoggedIn())
}
