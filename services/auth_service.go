package services

import (
	"context"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fieldops/field-service-api/types"
)

// AuthEvent identifies a change in the auth state stream.
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
)

// Session is an authenticated session: the raw access token plus the
// fast-path user derived from its claims with zero network latency.
type Session struct {
	AccessToken string
	User        types.User
}

// AuthStateHandler receives auth events. session is nil on sign-out.
type AuthStateHandler func(event AuthEvent, session *Session)

// AuthService is the auth subsystem of the backend as seen by the client.
type AuthService interface {
	SignUp(ctx context.Context, name, email, password string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	// Session returns the current session, or nil when signed out.
	Session() *Session
	// OnAuthStateChange registers a handler for auth events and returns
	// an unsubscribe function.
	OnAuthStateChange(handler AuthStateHandler) (unsubscribe func())
}

// UserFromToken derives a best-effort user record from token-embedded
// claims without verifying the signature; the server is the authority,
// this is only the client's fast path. Missing name falls back to the
// email prefix, missing role to technician.
func UserFromToken(token string) types.User {
	user := types.User{Role: types.RoleTechnician, Name: "User"}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return user
	}

	if sub, ok := claims["sub"].(string); ok {
		user.ID = sub
	}
	if email, ok := claims["email"].(string); ok {
		user.Email = email
	}
	if name, ok := claims["full_name"].(string); ok && name != "" {
		user.Name = name
	} else if user.Email != "" {
		user.Name = strings.SplitN(user.Email, "@", 2)[0]
	}
	if role, ok := claims["role"].(string); ok && role != "" {
		user.Role = types.UserRole(role)
	}
	return user
}

// HTTPAuthService talks to the backend's /auth endpoints and fans auth
// events out to subscribers.
type HTTPAuthService struct {
	api *apiClient

	mu       sync.Mutex
	session  *Session
	handlers map[int]AuthStateHandler
	nextID   int
}

// NewHTTPAuthService creates an auth service against the given API base
// URL. initialToken carries a persisted session across restarts; when
// non-empty an INITIAL_SESSION event is emitted asynchronously to the
// first subscribers, mirroring the backend's own session persistence.
func NewHTTPAuthService(baseURL, initialToken string) *HTTPAuthService {
	s := &HTTPAuthService{
		handlers: make(map[int]AuthStateHandler),
	}
	s.api = newAPIClient(baseURL, s.AccessToken)
	if initialToken != "" {
		s.session = &Session{AccessToken: initialToken, User: UserFromToken(initialToken)}
	}
	return s
}

// AccessToken returns the current bearer credential, or "" when signed out.
func (s *HTTPAuthService) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ""
	}
	return s.session.AccessToken
}

// Session returns the current session, or nil when signed out.
func (s *HTTPAuthService) Session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	copied := *s.session
	return &copied
}

type sessionRow struct {
	Token string  `json:"token"`
	User  userRow `json:"user"`
}

// SignUp self-registers an account (role defaults to technician server-side)
func (s *HTTPAuthService) SignUp(ctx context.Context, name, email, password string) (*Session, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	var row sessionRow
	if err := s.api.doJSON(ctx, "POST", "/api/v1/auth/signup", body, &row); err != nil {
		return nil, err
	}
	return s.adoptSession(row, EventSignedIn), nil
}

// SignIn exchanges credentials for a session and emits SIGNED_IN
func (s *HTTPAuthService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	var row sessionRow
	if err := s.api.doJSON(ctx, "POST", "/api/v1/auth/login", body, &row); err != nil {
		return nil, err
	}
	return s.adoptSession(row, EventSignedIn), nil
}

// SignOut drops the local session and notifies the backend. The local
// session is cleared and SIGNED_OUT emitted even if the network call fails.
func (s *HTTPAuthService) SignOut(ctx context.Context) error {
	err := s.api.doJSON(ctx, "POST", "/api/v1/auth/logout", nil, nil)

	s.mu.Lock()
	s.session = nil
	handlers := s.snapshotHandlers()
	s.mu.Unlock()

	for _, h := range handlers {
		h(EventSignedOut, nil)
	}
	return err
}

// OnAuthStateChange registers a handler. If a session already exists an
// INITIAL_SESSION event is delivered asynchronously, so subscription and
// a cold-start session race exactly like a page reload does.
func (s *HTTPAuthService) OnAuthStateChange(handler AuthStateHandler) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	session := s.session
	s.mu.Unlock()

	if session != nil {
		copied := *session
		go handler(EventInitialSession, &copied)
	}

	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

func (s *HTTPAuthService) adoptSession(row sessionRow, event AuthEvent) *Session {
	session := &Session{AccessToken: row.Token, User: UserFromToken(row.Token)}

	s.mu.Lock()
	s.session = session
	handlers := s.snapshotHandlers()
	s.mu.Unlock()

	copied := *session
	for _, h := range handlers {
		h(event, &copied)
	}
	return session
}

// snapshotHandlers must be called with s.mu held
func (s *HTTPAuthService) snapshotHandlers() []AuthStateHandler {
	out := make([]AuthStateHandler, 0, len(s.handlers))
	for _, h := range s.handlers {
		out = append(out, h)
	}
	return out
}
