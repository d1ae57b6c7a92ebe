package registry

import (
	"context"
	"testing"
	"time"

	"peercam/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(id string) *domain.Session {
	return &domain.Session{
		ID:        domain.SessionID(id),
		ClientID:  "client-1",
		ChannelID: "channel-1",
		Backend:   "direct-peer",
		State:     domain.SessionNew,
		CreatedAt: time.Now(),
		LastSeen:  time.Now(),
	}
}

func TestMemoryRegistrySaveAndGet(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, newSession("s1")))

	got, err := r.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("s1"), got.ID)
	assert.Equal(t, domain.SessionNew, got.State)

	_, err = r.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemoryRegistryUpdateState(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, newSession("s1")))
	require.NoError(t, r.UpdateState(ctx, "s1", domain.SessionConnected))

	got, err := r.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionConnected, got.State)

	assert.ErrorIs(t, r.UpdateState(ctx, "missing", domain.SessionConnected), domain.ErrSessionNotFound)
}

func TestMemoryRegistryDelete(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, newSession("s1")))
	require.NoError(t, r.Delete(ctx, "s1"))

	_, err := r.GetByID(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, r.Delete(ctx, "s1"), domain.ErrSessionNotFound)
}

func TestMemoryRegistryListActive(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, newSession("s1")))
	require.NoError(t, r.Save(ctx, newSession("s2")))
	require.NoError(t, r.UpdateState(ctx, "s2", domain.SessionClosed))

	active, err := r.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, domain.SessionID("s1"), active[0].ID)
}

func TestMemoryRegistryStoresCopies(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	s := newSession("s1")
	require.NoError(t, r.Save(ctx, s))
	s.State = domain.SessionClosed

	got, err := r.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionNew, got.State)
}
