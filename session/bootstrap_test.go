package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fieldops/field-service-api/services"
	"github.com/fieldops/field-service-api/store"
	"github.com/fieldops/field-service-api/types"
)

func newTestBootstrap() (*Bootstrap, *services.MockBackend, *services.MockAuthService, *store.Store) {
	backend := services.NewMockBackend()
	auth := services.NewMockAuthService(backend)
	st := store.New(services.Backend{Auth: auth, Data: backend, Technicians: backend})
	b := New(auth, backend, st)
	return b, backend, auth, st
}

// waitFor polls until the condition holds or the deadline passes
func waitFor(t *testing.T, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestBootstrapSignInEvent(t *testing.T) {
	b, backend, auth, st := newTestBootstrap()
	backend.SeedOrder(types.ServiceOrder{Title: "Fix printer"})

	b.Start(context.Background())
	defer b.Close()
	assert.True(t, b.Loading())

	// SignIn emits SIGNED_IN; the fast-path user lands synchronously
	_, err := auth.SignIn(context.Background(), "admin@admin.com", "admin123")
	assert.NoError(t, err)

	assert.False(t, b.Loading(), "Loading resolves on the first session event")
	user := st.CurrentUser()
	if assert.NotNil(t, user) {
		assert.Equal(t, "admin-user-id", user.ID)
	}

	// Hydration and the data fetch happen in the background
	waitFor(t, func() bool { return len(st.ServiceOrders()) == 1 }, "Expected background data fetch")
	waitFor(t, func() bool {
		u := st.CurrentUser()
		return u != nil && u.Name == "Administrator"
	}, "Expected profile hydration overlay")
}

func TestBootstrapSignedOutEvent(t *testing.T) {
	b, _, auth, st := newTestBootstrap()
	b.Start(context.Background())
	defer b.Close()

	_, err := auth.SignIn(context.Background(), "admin@admin.com", "admin123")
	assert.NoError(t, err)
	assert.NotNil(t, st.CurrentUser())

	assert.NoError(t, auth.SignOut(context.Background()))
	assert.Nil(t, st.CurrentUser())
	assert.False(t, b.Loading())

	// A later sign-in re-initializes fully
	_, err = auth.SignIn(context.Background(), "tech@example.com", "tech123")
	assert.NoError(t, err)
	user := st.CurrentUser()
	if assert.NotNil(t, user) {
		assert.Equal(t, "tech-user-id", user.ID)
	}
}

func TestBootstrapTokenRefreshDoesNotRehydrate(t *testing.T) {
	b, backend, auth, st := newTestBootstrap()
	b.Start(context.Background())
	defer b.Close()

	_, err := auth.SignIn(context.Background(), "admin@admin.com", "admin123")
	assert.NoError(t, err)
	waitFor(t, func() bool { return len(st.Users()) == 2 }, "Expected initial hydration and fetch")

	// New orders appearing backend-side are a proxy for refetch activity
	backend.SeedOrder(types.ServiceOrder{Title: "Fix printer"})

	auth.Emit(services.EventTokenRefreshed)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, st.ServiceOrders(), "Token refreshes must not trigger a refetch")
}

func TestBootstrapFallbackFindsPersistedSession(t *testing.T) {
	b, backend, auth, st := newTestBootstrap()

	// A persisted session exists but no event ever fires for it
	admin, _ := backend.UserByEmail("admin@admin.com")
	auth.SetSession(admin)
	backend.SeedOrder(types.ServiceOrder{Title: "Fix printer"})

	b.Start(context.Background())
	defer b.Close()
	assert.True(t, b.Loading())

	waitFor(t, func() bool { return !b.Loading() }, "Fallback timer should resolve loading")
	user := st.CurrentUser()
	if assert.NotNil(t, user) {
		assert.Equal(t, admin.ID, user.ID)
	}
	waitFor(t, func() bool { return len(st.ServiceOrders()) == 1 }, "Fallback path also fetches data")
}

func TestBootstrapFallbackWithoutSession(t *testing.T) {
	b, _, _, st := newTestBootstrap()

	b.Start(context.Background())
	defer b.Close()

	waitFor(t, func() bool { return !b.Loading() }, "Fallback timer should resolve loading")
	assert.Nil(t, st.CurrentUser())
}

func TestBootstrapEventBeatsFallback(t *testing.T) {
	b, backend, auth, st := newTestBootstrap()
	admin, _ := backend.UserByEmail("admin@admin.com")
	auth.SetSession(admin)

	b.Start(context.Background())
	defer b.Close()

	// The event stream wins the race; the fallback must then be a no-op
	auth.Emit(services.EventInitialSession)
	assert.False(t, b.Loading())
	assert.NotNil(t, st.CurrentUser())

	waitFor(t, func() bool { return len(st.Users()) == 2 }, "Expected one hydration pass")

	// Let the fallback timer fire and verify nothing double-initializes
	time.Sleep(FallbackDelay + 100*time.Millisecond)
	user := st.CurrentUser()
	if assert.NotNil(t, user) {
		assert.Equal(t, admin.ID, user.ID)
	}
}

func TestBootstrapCloseBlocksLateEvents(t *testing.T) {
	b, _, auth, st := newTestBootstrap()
	b.Start(context.Background())
	b.Close()

	_, err := auth.SignIn(context.Background(), "admin@admin.com", "admin123")
	assert.NoError(t, err)

	assert.Nil(t, st.CurrentUser(), "Events after Close must not touch the store")
	assert.True(t, b.Loading())
}
