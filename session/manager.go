package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raushankrgupta/meal-planner/logger"
	"github.com/raushankrgupta/meal-planner/models"
)

const CookieName = "mp_session"

// State is what a request's session resolves to.
type State int

const (
	// Loading means the store has not finished opening yet.
	Loading State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Opener returns the store to use. It may block, e.g. while dialing MongoDB.
type Opener func(ctx context.Context) (Store, error)

// Manager maps request cookies to sessions.
type Manager struct {
	store atomic.Pointer[storeHolder]
	ready chan struct{}
	once  sync.Once

	now          func() time.Time
	SecureCookie bool

	// OnTeardown, when set, is called with the id of every session that is
	// logged out or dropped because its token expired. Set it before serving.
	OnTeardown func(id string)
}

type storeHolder struct{ Store }

// NewManager returns a manager that is already ready with store.
func NewManager(store Store) *Manager {
	m := newManager()
	m.setStore(store)
	return m
}

// OpenManager returns a manager whose store is opened in the background.
// Until open returns the manager resolves every request as Loading. If
// open fails the manager falls back to an in-memory store.
func OpenManager(ctx context.Context, open Opener) *Manager {
	m := newManager()
	go func() {
		store, err := open(ctx)
		if err != nil {
			logger.Error("Session store unavailable, falling back to memory", zap.Error(err))
			store = NewMemoryStore()
		}
		m.setStore(store)
	}()
	return m
}

func newManager() *Manager {
	return &Manager{ready: make(chan struct{}), now: time.Now}
}

func (m *Manager) setStore(s Store) {
	m.store.Store(&storeHolder{s})
	m.once.Do(func() { close(m.ready) })
}

// Ready is closed once the store is usable.
func (m *Manager) Ready() <-chan struct{} { return m.ready }

func (m *Manager) backend() Store {
	h := m.store.Load()
	if h == nil {
		return nil
	}
	return h.Store
}

// Resolve returns the session for r and its state. For Loading the session
// is nil. Unauthenticated requests get a fresh anonymous session that is not
// stored until Login.
func (m *Manager) Resolve(r *http.Request) (*Session, State) {
	store := m.backend()
	if store == nil {
		return nil, Loading
	}

	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		s, err := store.Load(r.Context(), c.Value)
		switch {
		case err == nil && s.Authenticated():
			if s.Expired(m.now()) {
				logger.Info("Session token expired", zap.String("session", s.ID))
				_ = store.Delete(r.Context(), s.ID)
				m.teardown(s.ID)
				return m.anonymous(), Unauthenticated
			}
			return s, Authenticated
		case err != nil && !errors.Is(err, ErrNotFound):
			logger.Warn("Failed to load session", zap.Error(err))
		}
	}
	return m.anonymous(), Unauthenticated
}

func (m *Manager) teardown(id string) {
	if m.OnTeardown != nil {
		m.OnTeardown(id)
	}
}

func (m *Manager) anonymous() *Session {
	now := m.now()
	return &Session{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
}

// Login stores token and user on s and sets the session cookie.
func (m *Manager) Login(ctx context.Context, w http.ResponseWriter, s *Session, token string, user models.User) error {
	store := m.backend()
	if store == nil {
		return fmt.Errorf("session store not ready")
	}
	updated := s.clone()
	updated.Token = token
	updated.User = user
	updated.UpdatedAt = m.now()
	if err := store.Save(ctx, updated); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	*s = *updated

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Logout deletes the stored session and clears the cookie.
func (m *Manager) Logout(ctx context.Context, w http.ResponseWriter, s *Session) error {
	var err error
	if store := m.backend(); store != nil && s != nil {
		err = store.Delete(ctx, s.ID)
	}
	if s != nil {
		m.teardown(s.ID)
		s.Token = ""
		s.User = models.User{}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return err
}
