package auth

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edgeopslabs/marketing-mcp/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testAuthenticator(t *testing.T, logger *slog.Logger) *Authenticator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("abcdefghijkl"), bcrypt.MinCost)
	require.NoError(t, err)
	a, err := NewAuthenticator([]config.UserConfig{{
		Login:        "editor",
		PasswordHash: string(hash),
		Capabilities: []string{ReadPrivatePosts},
	}}, logger)
	require.NoError(t, err)
	return a
}

func TestCallerFromContext(t *testing.T) {
	assert.True(t, FromContext(context.Background()).Anonymous())

	ctx := WithCaller(context.Background(), Caller{Login: "editor", Capabilities: []string{ReadPrivatePosts}})
	c := FromContext(ctx)
	assert.False(t, c.Anonymous())
	assert.True(t, c.Can(ReadPrivatePosts))
	assert.False(t, c.Can("edit_posts"))
}

func TestAuthenticateIgnoresSpaces(t *testing.T) {
	a := testAuthenticator(t, nil)

	c, err := a.Authenticate("editor", "abcd efgh ijkl")
	require.NoError(t, err)
	assert.Equal(t, "editor", c.Login)
	assert.True(t, c.Can(ReadPrivatePosts))

	_, err = a.Authenticate("editor", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Authenticate("nobody", "abcdefghijkl")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("abcd efgh")
	require.NoError(t, err)
	a, err := NewAuthenticator([]config.UserConfig{{Login: "u", PasswordHash: hash}}, nil)
	require.NoError(t, err)
	_, err = a.Authenticate("u", "abcdefgh")
	assert.NoError(t, err)

	_, err = HashPassword("   ")
	assert.Error(t, err)
}

func TestNewAuthenticatorRejectsBadConfig(t *testing.T) {
	_, err := NewAuthenticator([]config.UserConfig{{Login: "u", PasswordHash: "plaintext"}}, nil)
	assert.Error(t, err)
	_, err = NewAuthenticator([]config.UserConfig{{PasswordHash: "x"}}, nil)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	var logs bytes.Buffer
	a := testAuthenticator(t, slog.New(slog.NewJSONHandler(&logs, nil)))
	var seen Caller
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, seen.Anonymous())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("editor", "abcd efgh ijkl")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "editor", seen.Login)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("editor", "nope")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	assert.Contains(t, logs.String(), `"msg":"rejected application password"`)
	assert.Contains(t, logs.String(), `"login":"editor"`)
}
