package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/grocery-storefront/internal/ids"
	"github.com/vasiliy-maslov/grocery-storefront/internal/storage"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleDriver Role = "driver"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleDriver:
		return true
	}
	return false
}

// GuestScope is the scope key used while nobody is logged in.
const GuestScope = "guest"

const storageKey = "session"

var (
	ErrInvalidIdentity = errors.New("session: identity must have an id and a valid role")
	ErrNotLoggedIn     = errors.New("session: not logged in")
)

type Identity struct {
	ID          ids.ID `json:"id"`
	Email       string `json:"email"`
	FullName    string `json:"fullName"`
	Address     string `json:"address,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Role        Role   `json:"role"`
}

// ScopeKey is the storage partition for data owned by this identity.
func (i Identity) ScopeKey() string {
	return i.ID.String()
}

// Change describes a scope switch. Listeners run synchronously inside Login, Logout and Restore.
type Change struct {
	Previous string
	Current  string
}

type Listener func(ctx context.Context, change Change)

type persisted struct {
	Identity *Identity `json:"identity"`
	Token    string    `json:"token"`
}

// Session holds the authenticated identity and its bearer credential.
type Session struct {
	mu        sync.RWMutex
	store     storage.Store
	identity  *Identity
	token     string
	nextID    int
	listeners map[int]Listener
}

func New(store storage.Store) *Session {
	return &Session{
		store:     store,
		listeners: make(map[int]Listener),
	}
}

// Restore loads a previously persisted session. A missing record leaves the session as guest.
func (s *Session) Restore(ctx context.Context) error {
	raw, err := s.store.Get(ctx, storageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("session: restore: %w", err)
	}

	var p persisted
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		log.Warn().Err(err).Msg("session: discarding unreadable persisted session")
		return s.store.Delete(ctx, storageKey)
	}
	if p.Identity == nil || p.Identity.ID.IsZero() || !p.Identity.Role.Valid() {
		return nil
	}

	s.switchTo(ctx, p.Identity, p.Token)
	return nil
}

func (s *Session) Login(ctx context.Context, identity Identity, token string) error {
	if identity.ID.IsZero() || !identity.Role.Valid() {
		return ErrInvalidIdentity
	}

	if err := s.save(ctx, &identity, token); err != nil {
		return err
	}

	s.switchTo(ctx, &identity, token)
	log.Info().Stringer("user_id", identity.ID).Stringer("role", identity.Role).Msg("session: logged in")
	return nil
}

func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.Delete(ctx, storageKey); err != nil {
		return fmt.Errorf("session: logout: %w", err)
	}

	s.switchTo(ctx, nil, "")
	log.Info().Msg("session: logged out")
	return nil
}

// Update replaces the profile fields of the current identity. The id and role cannot change
// through Update, so the scope key stays the same and no listener runs.
func (s *Session) Update(ctx context.Context, profile Identity) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity == nil {
		return Identity{}, ErrNotLoggedIn
	}

	next := *s.identity
	next.Email = profile.Email
	next.FullName = profile.FullName
	next.Address = profile.Address
	next.PhoneNumber = profile.PhoneNumber

	if err := s.save(ctx, &next, s.token); err != nil {
		return Identity{}, err
	}
	s.identity = &next
	return next, nil
}

// Identity returns a copy of the current identity.
func (s *Session) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) ScopeKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scopeOf(s.identity)
}

func (s *Session) IsAuthenticated() bool {
	_, ok := s.Identity()
	return ok
}

func (s *Session) IsAdmin() bool  { return s.hasRole(RoleAdmin) }
func (s *Session) IsUser() bool   { return s.hasRole(RoleUser) }
func (s *Session) IsDriver() bool { return s.hasRole(RoleDriver) }

func (s *Session) hasRole(role Role) bool {
	identity, ok := s.Identity()
	return ok && identity.Role == role
}

// Subscribe registers a scope-change listener and returns a function that removes it.
func (s *Session) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) switchTo(ctx context.Context, identity *Identity, token string) {
	s.mu.Lock()
	change := Change{Previous: scopeOf(s.identity), Current: scopeOf(identity)}
	s.identity = identity
	s.token = token
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	// Listeners run after the lock is released so they may read the session.
	for _, l := range listeners {
		l(ctx, change)
	}
}

func (s *Session) save(ctx context.Context, identity *Identity, token string) error {
	raw, err := json.Marshal(persisted{Identity: identity, Token: token})
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := s.store.Set(ctx, storageKey, string(raw)); err != nil {
		return fmt.Errorf("session: persist: %w", err)
	}
	return nil
}

func scopeOf(identity *Identity) string {
	if identity == nil {
		return GuestScope
	}
	return identity.ScopeKey()
}
