package cleanup_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liaohanzhen/cnoauth/authstate"
	"github.com/liaohanzhen/cnoauth/cleanup"
	"github.com/liaohanzhen/cnoauth/linktoken"
)

func newState(t *testing.T, age time.Duration) *authstate.State {
	t.Helper()
	state, err := authstate.New("sess-1", "N1", nil)
	require.NoError(t, err)
	state.CreatedAt = time.Now().Add(-age)
	return state
}

func TestWorker_Run(t *testing.T) {
	ctx := context.Background()
	states := authstate.NewMemoryStore()
	tokens := linktoken.NewMemoryStore()

	oldState := newState(t, 10*time.Minute)
	freshState := newState(t, time.Minute)
	require.NoError(t, states.Create(ctx, oldState))
	require.NoError(t, states.Create(ctx, freshState))

	unbound := linktoken.New("u1")
	bound := linktoken.New("u2")
	bound.UserID = 7
	bound.Username = "alice"
	require.NoError(t, tokens.Create(ctx, unbound))
	require.NoError(t, tokens.Create(ctx, bound))

	worker := cleanup.New(states, tokens)
	require.NoError(t, worker.Run(ctx))

	_, err := states.Consume(ctx, oldState.State)
	assert.ErrorIs(t, err, authstate.ErrStateNotFound)
	_, err = states.Consume(ctx, freshState.State)
	assert.NoError(t, err)

	_, err = tokens.FindBySubject(ctx, "u1")
	assert.ErrorIs(t, err, linktoken.ErrTokenNotFound)
	_, err = tokens.FindBySubject(ctx, "u2")
	assert.NoError(t, err)

	// A second sweep over a clean store is a no-op.
	require.NoError(t, worker.Run(ctx))
}

func TestWorker_StartClose(t *testing.T) {
	ctx := context.Background()
	states := authstate.NewMemoryStore()
	tokens := linktoken.NewMemoryStore()

	oldState := newState(t, 10*time.Minute)
	require.NoError(t, states.Create(ctx, oldState))

	worker := cleanup.New(states, tokens, cleanup.WithInterval(5*time.Millisecond))
	go func() {
		_ = worker.Start(ctx)
	}()

	assert.Eventually(t, func() bool {
		_, err := states.Consume(ctx, oldState.State)
		return err != nil
	}, time.Second, 5*time.Millisecond)

	worker.Close()
}
