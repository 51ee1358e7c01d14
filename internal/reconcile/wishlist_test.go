package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shopfront/internal/models"
	"github.com/Skotchmaster/shopfront/internal/remote"
)

func TestGuestToggle_IsAnInvolution(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)
	store := NewWishlistStore(local, newFakeWishlistBackend())

	member, err := store.Toggle(ctx, "a")
	require.NoError(t, err)
	assert.True(t, member)
	assert.True(t, store.Contains("a"))
	assert.True(t, local.LoadWishlist(ctx).Contains("a"))

	member, err = store.Toggle(ctx, "a")
	require.NoError(t, err)
	assert.False(t, member)
	assert.Empty(t, store.IDs())
	assert.Empty(t, local.LoadWishlist(ctx))
}

func TestToggle_RejectsEmptyID(t *testing.T) {
	_, err := NewWishlistStore(newLocal(t), newFakeWishlistBackend()).Toggle(context.Background(), "")
	assert.Equal(t, remote.KindValidation, remote.KindOf(err))
}

func TestAuthenticatedToggle_MirrorsToBackend(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)
	backend := newFakeWishlistBackend("b")
	signIn(t, local, "tok-1")

	store := NewWishlistStore(local, backend)
	require.NoError(t, store.Sync(ctx))

	member, err := store.Toggle(ctx, "a")
	require.NoError(t, err)
	assert.True(t, member)

	member, err = store.Toggle(ctx, "b")
	require.NoError(t, err)
	assert.False(t, member)

	assert.Equal(t, models.WishlistSet{"a"}, store.IDs())
	assert.Equal(t, []string{"a"}, backend.added)
	assert.Equal(t, []string{"b"}, backend.removed)
	assert.Equal(t, models.WishlistSet{"a"}, local.LoadWishlist(ctx))
}

func TestAuthenticatedToggle_FailureReverts(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)
	backend := newFakeWishlistBackend("b")
	signIn(t, local, "tok-1")

	store := NewWishlistStore(local, backend)
	require.NoError(t, store.Sync(ctx))

	backend.setFail("add", errDown)
	member, err := store.Toggle(ctx, "a")
	require.Error(t, err)
	assert.False(t, member)
	assert.False(t, store.Contains("a"))
	assert.False(t, local.LoadWishlist(ctx).Contains("a"))
	assert.Len(t, store.notices.List(), 1)

	backend.setFail("remove", errDown)
	member, err = store.Toggle(ctx, "b")
	require.Error(t, err)
	assert.True(t, member)
	assert.True(t, store.Contains("b"))
	assert.True(t, local.LoadWishlist(ctx).Contains("b"))
}

func TestWishlistSync_MergesGuestIDs(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)
	backend := newFakeWishlistBackend("b", "c")
	store := NewWishlistStore(local, backend)

	_, err := store.Toggle(ctx, "a")
	require.NoError(t, err)
	_, err = store.Toggle(ctx, "b")
	require.NoError(t, err)

	signIn(t, local, "tok-1")
	require.NoError(t, store.Sync(ctx))

	assert.Equal(t, models.WishlistSet{"a", "b", "c"}, store.IDs())
	assert.Equal(t, []string{"a"}, backend.added)
	assert.Equal(t, StateAuthenticatedRemote, store.State())

	require.NoError(t, store.Sync(ctx))
	assert.Equal(t, []string{"a"}, backend.added)
}

func TestWishlistSync_FetchFailureKeepsLocalAndRetriesMerge(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)
	backend := newFakeWishlistBackend()
	store := NewWishlistStore(local, backend)
	_, err := store.Toggle(ctx, "a")
	require.NoError(t, err)

	signIn(t, local, "tok-1")
	backend.setFail("fetch", errDown)
	require.Error(t, store.Sync(ctx))
	assert.True(t, store.Contains("a"))

	backend.setFail("fetch", nil)
	require.NoError(t, store.Sync(ctx))
	assert.Equal(t, []string{"a"}, backend.added)
}

func TestWishlistSync_LogoutKeepsPersistedCopy(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)
	signIn(t, local, "tok-1")
	store := NewWishlistStore(local, newFakeWishlistBackend("x"))
	require.NoError(t, store.Sync(ctx))

	local.ClearCookies(ctx)
	require.NoError(t, store.Sync(ctx))
	assert.Equal(t, StateUnauthenticatedLocal, store.State())
	assert.True(t, store.Contains("x"))
}

func TestAuthenticatedToggle_SecondToggleWaitsForFirst(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)
	backend := newFakeWishlistBackend()
	signIn(t, local, "tok-1")
	store := NewWishlistStore(local, backend)
	require.NoError(t, store.Sync(ctx))

	backend.addEntered = make(chan struct{}, 1)
	backend.addGate = make(chan struct{})

	first := make(chan bool, 1)
	go func() {
		member, err := store.Toggle(ctx, "p")
		assert.NoError(t, err)
		first <- member
	}()
	<-backend.addEntered
	assert.True(t, store.Contains("p"))

	second := make(chan bool, 1)
	go func() {
		member, err := store.Toggle(ctx, "p")
		assert.NoError(t, err)
		second <- member
	}()
	require.Eventually(t, func() bool { return !store.Contains("p") }, time.Second, time.Millisecond)
	assert.Empty(t, backend.callLog())

	close(backend.addGate)
	assert.True(t, <-first)
	assert.False(t, <-second)
	assert.Equal(t, []string{"add:p", "remove:p"}, backend.callLog())
	assert.False(t, store.Contains("p"))
}

func TestWishlistSync_SwitchingAccountsDropsPreviousWishlist(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)
	backend := newFakeWishlistBackend("x1")
	signIn(t, local, "tok-x")
	store := NewWishlistStore(local, backend)
	require.NoError(t, store.Sync(ctx))
	require.True(t, store.Contains("x1"))

	signIn(t, local, "tok-y")
	backend.setFail("fetch", errDown)
	require.Error(t, store.Sync(ctx))
	assert.False(t, store.Contains("x1"))
	assert.Empty(t, local.LoadWishlist(ctx))

	backend.setFail("fetch", nil)
	require.NoError(t, store.Sync(ctx))
	assert.Empty(t, backend.added)
}
