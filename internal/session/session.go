package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"marketdeck/internal/store"
)

const (
	tokenKey = "token"
	userKey  = "user"
)

// Authenticator exchanges credentials for a bearer token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, password string) (string, error)
}

// Session tracks the signed-in user and their bearer token, persisting both so
// a restart resumes the session. It satisfies the API client's TokenSource.
type Session struct {
	mu    sync.Mutex
	kv    store.KV
	auth  Authenticator
	token string
	user  string
}

func New(kv store.KV, auth Authenticator) *Session {
	return &Session{kv: kv, auth: auth}
}

// SetAuthenticator wires the backend client in after construction. The client
// and session reference each other: the client reads the session's token, the
// session calls the client's auth endpoints.
func (s *Session) SetAuthenticator(auth Authenticator) {
	s.mu.Lock()
	s.auth = auth
	s.mu.Unlock()
}

func (s *Session) authenticator() Authenticator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth
}

// Restore loads a previously persisted session. A missing token is not an
// error; the session just starts signed out.
func (s *Session) Restore(ctx context.Context) error {
	token, err := s.kv.Get(ctx, tokenKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore session token: %w", err)
	}

	user, err := s.kv.Get(ctx, userKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("restore session user: %w", err)
	}

	s.mu.Lock()
	s.token = string(token)
	s.user = string(user)
	s.mu.Unlock()
	return nil
}

// Login authenticates against the backend and persists the resulting token.
func (s *Session) Login(ctx context.Context, username, password string) error {
	token, err := s.authenticator().Login(ctx, username, password)
	if err != nil {
		return err
	}
	return s.establish(ctx, username, token)
}

// Register creates an account and signs it in.
func (s *Session) Register(ctx context.Context, username, password string) error {
	token, err := s.authenticator().Register(ctx, username, password)
	if err != nil {
		return err
	}
	return s.establish(ctx, username, token)
}

func (s *Session) establish(ctx context.Context, username, token string) error {
	s.mu.Lock()
	s.token = token
	s.user = username
	s.mu.Unlock()

	if err := s.kv.Set(ctx, tokenKey, []byte(token)); err != nil {
		return fmt.Errorf("persist session token: %w", err)
	}
	if err := s.kv.Set(ctx, userKey, []byte(username)); err != nil {
		return fmt.Errorf("persist session user: %w", err)
	}
	return nil
}

// Logout clears the in-memory session and the persisted token. The in-memory
// state is cleared even if the store fails, so the UI always signs out.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.user = ""
	s.mu.Unlock()

	var errs []error
	if err := s.kv.Delete(ctx, tokenKey); err != nil {
		errs = append(errs, fmt.Errorf("clear session token: %w", err))
	}
	if err := s.kv.Delete(ctx, userKey); err != nil {
		errs = append(errs, fmt.Errorf("clear session user: %w", err))
	}
	return errors.Join(errs...)
}

// Token returns the current bearer token, or empty when signed out.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Username returns the signed-in username, or empty when signed out.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}
