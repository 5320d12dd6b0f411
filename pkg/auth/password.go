package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/edgeopslabs/marketing-mcp/pkg/config"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid application password")

var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("marketing-mcp"), bcrypt.DefaultCost)
	return hash
})

// Authenticator checks application passwords against bcrypt hashes from
// config. Passwords are compared with spaces removed, so the grouped form
// "abcd efgh ijkl" and "abcdefghijkl" are the same password.
type Authenticator struct {
	users  map[string]config.UserConfig
	logger *slog.Logger
}

func NewAuthenticator(users []config.UserConfig, logger *slog.Logger) (*Authenticator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Authenticator{users: make(map[string]config.UserConfig, len(users)), logger: logger}
	for _, u := range users {
		if u.Login == "" {
			return nil, fmt.Errorf("auth user without login")
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return nil, fmt.Errorf("auth user %s: invalid password hash: %w", u.Login, err)
		}
		if _, dup := a.users[u.Login]; dup {
			return nil, fmt.Errorf("auth user %s defined twice", u.Login)
		}
		a.users[u.Login] = u
	}
	return a, nil
}

// HashPassword produces the hash stored in config for an application password.
func HashPassword(password string) (string, error) {
	normalized := normalizePassword(password)
	if normalized == "" {
		return "", fmt.Errorf("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(normalized), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (a *Authenticator) Authenticate(login, password string) (Caller, error) {
	u, ok := a.users[login]
	if !ok {
		// unknown logins pay for a hash comparison too
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return Caller{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(normalizePassword(password))); err != nil {
		return Caller{}, ErrInvalidCredentials
	}
	return Caller{Login: u.Login, Capabilities: append([]string(nil), u.Capabilities...)}, nil
}

// Middleware attaches the caller to each request. Requests without
// credentials continue as anonymous; bad credentials are rejected with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		login, password, ok := r.BasicAuth()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		caller, err := a.Authenticate(login, password)
		if err != nil {
			a.logger.Warn("rejected application password", "login", login, "remote", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Basic realm="marketing-mcp"`)
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

func normalizePassword(password string) string {
	return strings.Join(strings.Fields(password), "")
}
