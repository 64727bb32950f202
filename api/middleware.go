package api

import (
	"context"
	"net/http"

	"github.com/raushankrgupta/meal-planner/session"
)

type ctxKey int

const sessionKey ctxKey = iota

type resolved struct {
	sess  *session.Session
	state session.State
}

func sessionFrom(ctx context.Context) (*session.Session, session.State) {
	if v, ok := ctx.Value(sessionKey).(resolved); ok {
		return v.sess, v.state
	}
	return nil, session.Loading
}

// WithSession attaches the caller's session to the request. While the
// session store is still opening every request gets the loading page.
func (s *Server) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, state := s.sessions.Resolve(r)
		if state == session.Loading {
			status := http.StatusOK
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				status = http.StatusServiceUnavailable
			}
			w.Header().Set("Retry-After", "1")
			render(w, status, "loading.html", nil)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, resolved{sess: sess, state: state})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Guard lets authenticated requests through and sends everyone else to the
// login page. It must run after WithSession.
func (s *Server) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, state := sessionFrom(r.Context()); state != session.Authenticated {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// guestOnly sends signed-in users to the dashboard.
func (s *Server) guestOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, state := sessionFrom(r.Context()); state == session.Authenticated {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
