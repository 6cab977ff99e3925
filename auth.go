package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"slices"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/idtoken"
)

type tokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

type authenticator struct {
	clientID string
	secret   []byte
	admins   []string
	validate tokenValidator
}

func newAuthenticator(cfg config) authenticator {
	return authenticator{
		clientID: cfg.clientID,
		secret:   []byte(cfg.clientSecret),
		admins:   cfg.admins,
		validate: idtoken.Validate,
	}
}

func (a authenticator) signEmail(email string) string {
	h := hmac.New(sha256.New, a.secret)
	h.Write([]byte(email))
	sig := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return base64.RawURLEncoding.EncodeToString([]byte(email)) + "." + sig
}

func (a authenticator) authorize(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return "", false
	}
	emailBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", false
	}
	email := string(emailBytes)
	if !hmac.Equal([]byte(a.signEmail(email)), []byte(token)) {
		return "", false
	}
	return email, true
}

func (a authenticator) isAdmin(email string) bool {
	return slices.Contains(a.admins, email)
}

func (a authenticator) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	email, ok := a.authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return email, true
}

func (a authenticator) requireAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	email, ok := a.requireUser(w, r)
	if !ok {
		return "", false
	}
	if !a.isAdmin(email) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return email, true
}

func handleGoogleCallback(a authenticator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credential := r.FormValue("credential")
		if credential == "" {
			http.Error(w, "missing credential", http.StatusBadRequest)
			return
		}

		payload, err := a.validate(r.Context(), credential, a.clientID)
		if err != nil {
			logger.Info("token validation failed", zap.Error(err))
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		email, _ := payload.Claims["email"].(string)
		if email == "" {
			http.Error(w, "token has no email", http.StatusUnauthorized)
			return
		}

		writeJSON(w, map[string]any{
			"email":   email,
			"name":    payload.Claims["name"],
			"picture": payload.Claims["picture"],
			"token":   a.signEmail(email),
			"admin":   a.isAdmin(email),
		})
	}
}

func handleAdminCheck(a authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, ok := a.requireUser(w, r)
		if !ok {
			return
		}
		writeJSON(w, map[string]bool{"admin": a.isAdmin(email)})
	}
}
