// Package session resolves "who is the current user" at startup and
// keeps the store's current-user slot in sync with the backend's auth
// event stream.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fieldops/field-service-api/services"
	"github.com/fieldops/field-service-api/store"
	"github.com/fieldops/field-service-api/types"
)

// FallbackDelay is how long the bootstrap waits for the event stream
// before checking for an existing session itself. On a cold start the
// stream may not fire at all, so this timer is the recovery path.
const FallbackDelay = time.Second

// Bootstrap owns the (user, loading) signal the rest of the application
// gates on. Two producers race to initialize it: the auth event stream
// and the fallback timer. An idempotency guard makes sure only one wins.
type Bootstrap struct {
	auth  services.AuthService
	data  services.DataService
	store *store.Store

	mu          sync.Mutex
	loading     bool
	closed      bool
	initialized bool // a session event has already been handled
	unsubscribe func()
	fallback    *time.Timer
}

// New creates a bootstrap wired to the given services and store
func New(auth services.AuthService, data services.DataService, st *store.Store) *Bootstrap {
	return &Bootstrap{
		auth:    auth,
		data:    data,
		store:   st,
		loading: true,
	}
}

// Loading reports whether the initial session resolution is still pending
func (b *Bootstrap) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading
}

// Start subscribes to the auth event stream and arms the fallback timer
func (b *Bootstrap) Start(ctx context.Context) {
	b.mu.Lock()
	b.loading = true
	b.mu.Unlock()

	b.unsubscribe = b.auth.OnAuthStateChange(func(event services.AuthEvent, sess *services.Session) {
		b.handleAuthEvent(ctx, event, sess)
	})

	b.fallback = time.AfterFunc(FallbackDelay, func() {
		b.checkExistingSession(ctx)
	})
}

// Close tears the bootstrap down: unsubscribes, cancels the fallback
// timer and blocks any late async responses from touching the store.
func (b *Bootstrap) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	if b.unsubscribe != nil {
		b.unsubscribe()
	}
	if b.fallback != nil {
		b.fallback.Stop()
	}
}

func (b *Bootstrap) handleAuthEvent(ctx context.Context, event services.AuthEvent, sess *services.Session) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	if sess == nil {
		// Signed out, or no session was found
		b.loading = false
		b.initialized = false
		b.mu.Unlock()
		b.store.SetUser(nil)
		return
	}

	// Fast path: publish a user derived from token claims immediately,
	// with zero network latency
	b.loading = false
	hydrate := false
	if event == services.EventSignedIn || event == services.EventInitialSession {
		// Token refreshes repeat for the same identity; hydrating again
		// would be wasted work
		if !b.initialized {
			b.initialized = true
			hydrate = true
		}
	}
	b.mu.Unlock()

	user := sess.User
	b.store.SetUser(&user)

	if hydrate {
		go b.hydrateAndFetch(ctx, sess.User)
	}
}

// checkExistingSession is the fallback timer's path: if no event has
// produced a user yet, look for a persisted session directly.
func (b *Bootstrap) checkExistingSession(ctx context.Context) {
	b.mu.Lock()
	if b.closed || b.initialized {
		b.mu.Unlock()
		return
	}

	sess := b.auth.Session()
	if sess == nil {
		b.loading = false
		b.mu.Unlock()
		b.store.SetUser(nil)
		return
	}

	b.loading = false
	b.initialized = true
	b.mu.Unlock()

	user := sess.User
	b.store.SetUser(&user)
	go b.hydrateAndFetch(ctx, sess.User)
}

// hydrateAndFetch overlays profile data on top of the fast-path user,
// then loads application data. Hydration failure is non-fatal: the
// fast-path user stays authoritative.
func (b *Bootstrap) hydrateAndFetch(ctx context.Context, fastPath types.User) {
	profile, err := b.data.FetchProfile(ctx, fastPath.ID)
	if err != nil {
		log.Printf("Profile hydration failed for %s: %v", fastPath.ID, err)
	} else {
		hydrated := fastPath
		if profile.Name != "" {
			hydrated.Name = profile.Name
		}
		if profile.Role != "" {
			hydrated.Role = profile.Role
		}
		hydrated.AvatarURL = profile.AvatarURL

		b.mu.Lock()
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return
		}
		b.store.SetUser(&hydrated)
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}
	b.store.FetchData(ctx)
}
