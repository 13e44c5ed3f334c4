package services

import (
	"context"
	"net/http"
	"sync"

	"github.com/fieldops/field-service-api/types"
)

// MockAuthService is an in-memory AuthService backed by a MockBackend's
// user table. Tests can also drive the event stream by hand with the
// Emit helpers to reproduce cold-load and refresh timing.
type MockAuthService struct {
	backend *MockBackend

	mu       sync.Mutex
	session  *Session
	handlers map[int]AuthStateHandler
	nextID   int
}

// NewMockAuthService creates an auth service over the given mock backend
func NewMockAuthService(backend *MockBackend) *MockAuthService {
	return &MockAuthService{
		backend:  backend,
		handlers: make(map[int]AuthStateHandler),
	}
}

// SignUp self-registers a technician account and signs it in
func (s *MockAuthService) SignUp(ctx context.Context, name, email, password string) (*Session, error) {
	s.backend.mu.Lock()
	for _, u := range s.backend.users {
		if u.Email == email {
			s.backend.mu.Unlock()
			return nil, &BackendError{Code: "USER_EXISTS", Message: "A user with this email already exists", Status: http.StatusConflict}
		}
	}
	user := types.User{ID: s.backend.newID("user"), Name: name, Email: email, Role: types.RoleTechnician}
	s.backend.users = append(s.backend.users, user)
	s.backend.passwords[email] = password
	s.backend.mu.Unlock()

	return s.adopt(user), nil
}

// SignIn verifies credentials against the mock backend
func (s *MockAuthService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	s.backend.mu.Lock()
	stored, ok := s.backend.passwords[email]
	var user types.User
	found := false
	if ok && stored == password {
		for _, u := range s.backend.users {
			if u.Email == email {
				user = u
				found = true
				break
			}
		}
	}
	s.backend.mu.Unlock()

	if !found {
		return nil, &BackendError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", Status: http.StatusUnauthorized}
	}
	return s.adopt(user), nil
}

// SignOut clears the session and emits SIGNED_OUT
func (s *MockAuthService) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.session = nil
	handlers := s.snapshotHandlers()
	s.mu.Unlock()
	s.backend.SetCaller(nil)

	for _, h := range handlers {
		h(EventSignedOut, nil)
	}
	return nil
}

// Session returns the current session, or nil when signed out
func (s *MockAuthService) Session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	copied := *s.session
	return &copied
}

// OnAuthStateChange registers a handler. Unlike the HTTP service the
// mock never emits on its own; tests choose when events arrive.
func (s *MockAuthService) OnAuthStateChange(handler AuthStateHandler) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

// SetSession installs a session without emitting (simulates persisted
// state present before any event fires)
func (s *MockAuthService) SetSession(user types.User) {
	s.mu.Lock()
	s.session = &Session{AccessToken: "mock-token-" + user.ID, User: user}
	s.mu.Unlock()
	userCopy := user
	s.backend.SetCaller(&userCopy)
}

// Emit delivers an auth event to all subscribers using the current session
func (s *MockAuthService) Emit(event AuthEvent) {
	s.mu.Lock()
	session := s.session
	handlers := s.snapshotHandlers()
	s.mu.Unlock()

	var copied *Session
	if session != nil {
		c := *session
		copied = &c
	}
	for _, h := range handlers {
		h(event, copied)
	}
}

func (s *MockAuthService) adopt(user types.User) *Session {
	session := &Session{AccessToken: "mock-token-" + user.ID, User: user}

	s.mu.Lock()
	s.session = session
	handlers := s.snapshotHandlers()
	s.mu.Unlock()

	userCopy := user
	s.backend.SetCaller(&userCopy)

	copied := *session
	for _, h := range handlers {
		h(EventSignedIn, &copied)
	}
	return session
}

// snapshotHandlers must be called with s.mu held
func (s *MockAuthService) snapshotHandlers() []AuthStateHandler {
	out := make([]AuthStateHandler, 0, len(s.handlers))
	for _, h := range s.handlers {
		out = append(out, h)
	}
	return out
}
