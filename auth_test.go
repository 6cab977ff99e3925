package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/idtoken"
)

func TestAuthorize(t *testing.T) {
	a := newAuthenticator(testConfig)
	token := a.signEmail("ada@example.com")

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	email, ok := a.authorize(r)
	assert.True(t, ok)
	assert.Equal(t, "ada@example.com", email)

	other := authenticator{secret: []byte("other")}
	r.Header.Set("Authorization", "Bearer "+other.signEmail("ada@example.com"))
	_, ok = a.authorize(r)
	assert.False(t, ok, "token signed with another secret must be rejected")

	for _, bad := range []string{"", "Bearer ", "Bearer abc", "Bearer !!!.sig"} {
		r.Header.Set("Authorization", bad)
		_, ok = a.authorize(r)
		assert.False(t, ok, "header %q", bad)
	}
}

func TestIsAdmin(t *testing.T) {
	a := newAuthenticator(testConfig)
	assert.True(t, a.isAdmin("admin@example.com"))
	assert.False(t, a.isAdmin("ada@example.com"))
	assert.False(t, a.isAdmin(""))
}

func callback(t *testing.T, a authenticator, credential string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"credential": {credential}}
	r := httptest.NewRequest("POST", "/auth/google/callback", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handleGoogleCallback(a, zap.NewNop())(w, r)
	return w
}

func TestGoogleCallback(t *testing.T) {
	a := newAuthenticator(testConfig)
	a.validate = func(ctx context.Context, token, audience string) (*idtoken.Payload, error) {
		if token != "good" || audience != "client" {
			return nil, errors.New("bad token")
		}
		return &idtoken.Payload{Claims: map[string]any{"email": "admin@example.com", "name": "Admin"}}, nil
	}

	w := callback(t, a, "good")
	require.Equal(t, http.StatusOK, w.Code)
	var profile map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&profile))
	assert.Equal(t, "admin@example.com", profile["email"])
	assert.Equal(t, true, profile["admin"])
	assert.Equal(t, a.signEmail("admin@example.com"), profile["token"])

	assert.Equal(t, http.StatusUnauthorized, callback(t, a, "forged").Code)
	assert.Equal(t, http.StatusBadRequest, callback(t, a, "").Code)
}

func TestGoogleCallbackWithoutEmail(t *testing.T) {
	a := newAuthenticator(testConfig)
	a.validate = func(ctx context.Context, token, audience string) (*idtoken.Payload, error) {
		return &idtoken.Payload{Claims: map[string]any{}}, nil
	}
	assert.Equal(t, http.StatusUnauthorized, callback(t, a, "good").Code)
}

func TestAdminCheck(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "GET", "/api/admin/check", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, "GET", "/api/admin/check", "admin@example.com", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body["admin"])
}

func TestLoadConfig(t *testing.T) {
	env := map[string]string{
		"PGCONN":        "postgres://localhost/groups",
		"CLIENT_ID":     "client",
		"CLIENT_SECRET": "secret",
		"ADMINS":        " admin@example.com, ,staff@example.com",
	}
	getenv := func(k string) string { return env[k] }

	cfg, err := loadConfig(getenv)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin@example.com", "staff@example.com"}, cfg.admins)
	assert.Equal(t, ":8080", cfg.listenAddr)
	assert.Equal(t, 3, cfg.defaultGroupSize)

	env["DEFAULT_GROUP_SIZE"] = "5"
	env["LISTEN_ADDR"] = ":9000"
	cfg, err = loadConfig(getenv)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.defaultGroupSize)
	assert.Equal(t, ":9000", cfg.listenAddr)

	env["DEFAULT_GROUP_SIZE"] = "9"
	_, err = loadConfig(getenv)
	assert.Error(t, err)

	env["DEFAULT_GROUP_SIZE"] = "three"
	_, err = loadConfig(getenv)
	assert.Error(t, err)

	delete(env, "DEFAULT_GROUP_SIZE")
	delete(env, "CLIENT_SECRET")
	_, err = loadConfig(getenv)
	assert.ErrorContains(t, err, "CLIENT_SECRET")
}
