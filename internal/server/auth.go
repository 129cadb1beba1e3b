package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pihole-wizard/pihole-wizard/internal/config"
)

const (
	sessionCookieName = "pihole-wizard-session"
	sessionTTL        = 24 * time.Hour
)

// sessionSet holds the logged-in tokens in memory, keyed by token with their
// expiry. A service restart logs everyone out, which suits a run-once setup
// wizard.
type sessionSet struct {
	mu     sync.Mutex
	expiry map[string]time.Time
}

func newSessionSet() *sessionSet {
	return &sessionSet{expiry: make(map[string]time.Time)}
}

// issue mints a random token and registers it with the configured TTL.
func (ss *sessionSet) issue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	ss.mu.Lock()
	ss.expiry[token] = time.Now().Add(sessionTTL)
	ss.mu.Unlock()
	return token, nil
}

// valid reports whether the token belongs to a live session, pruning it when
// it has expired.
func (ss *sessionSet) valid(token string) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	exp, ok := ss.expiry[token]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(ss.expiry, token)
		return false
	}
	return true
}

func (ss *sessionSet) drop(token string) {
	ss.mu.Lock()
	delete(ss.expiry, token)
	ss.mu.Unlock()
}

// withAuth gates a handler behind a valid session cookie. With auth mode
// "none" everything is open.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Auth.Mode != config.AuthModePassword {
			next(w, r)
			return
		}
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || !s.sessions.valid(cookie.Value) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(s.cfg.Auth.PasswordHash), []byte(creds.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	token, err := s.sessions.issue()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	http.SetCookie(w, sessionCookie(token, int(sessionTTL.Seconds())))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		s.sessions.drop(cookie.Value)
	}
	http.SetCookie(w, sessionCookie("", -1))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAuthCheck tells the frontend whether it needs to show the login
// screen.
func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	authenticated := false
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		authenticated = s.sessions.valid(cookie.Value)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": authenticated,
		"auth_required": s.cfg.Auth.Mode == config.AuthModePassword,
	})
}

func sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
