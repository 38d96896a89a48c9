package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"sekolahkita/internal/apperr"
	"sekolahkita/internal/session"
)

// Provider signs users in with email and password.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (session.Session, time.Time, error)
}

// GoTrue signs in against the hosted auth service.
type GoTrue struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewGoTrue(baseURL, apiKey string) *GoTrue {
	return &GoTrue{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GoTrue) SignIn(ctx context.Context, email, password string) (session.Session, time.Time, error) {
	if email == "" || password == "" {
		return session.Session{}, time.Time{}, apperr.Validation("email and password are required")
	}
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/auth/v1/token?grant_type=password", bytes.NewReader(body))
	if err != nil {
		return session.Session{}, time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", g.APIKey)

	resp, err := g.HTTP.Do(req)
	if err != nil {
		return session.Session{}, time.Time{}, apperr.Transport(err, "auth service request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		b, _ := io.ReadAll(resp.Body)
		return session.Session{}, time.Time{}, apperr.Transport(fmt.Errorf("%s: %s", resp.Status, b), "auth service error")
	}
	if resp.StatusCode >= 300 {
		return session.Session{}, time.Time{}, apperr.Auth("invalid login credentials")
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		User        struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return session.Session{}, time.Time{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.AccessToken == "" {
		return session.Session{}, time.Time{}, apperr.Auth("auth service returned no token")
	}
	return session.Session{
		UserID:      out.User.ID,
		Email:       out.User.Email,
		Role:        out.User.Role,
		AccessToken: out.AccessToken,
	}, time.Now().Add(time.Duration(out.ExpiresIn) * time.Second), nil
}

// Local signs in users from a fixed bcrypt-hashed list and issues its own
// tokens. It is meant for the memory and postgres backends.
type Local struct {
	users  map[string][]byte
	issuer string
	key    string
	ttl    time.Duration
}

// NewLocal parses users given as "email:bcrypthash,email:bcrypthash".
func NewLocal(users, issuer, key string, ttl time.Duration) (*Local, error) {
	l := &Local{users: map[string][]byte{}, issuer: issuer, key: key, ttl: ttl}
	for _, entry := range strings.Split(users, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		email, hash, ok := strings.Cut(entry, ":")
		if !ok || email == "" || hash == "" {
			return nil, fmt.Errorf("invalid local user entry %q", entry)
		}
		l.users[strings.ToLower(email)] = []byte(hash)
	}
	return l, nil
}

func (l *Local) SignIn(ctx context.Context, email, password string) (session.Session, time.Time, error) {
	if email == "" || password == "" {
		return session.Session{}, time.Time{}, apperr.Validation("email and password are required")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	hash, ok := l.users[email]
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return session.Session{}, time.Time{}, apperr.Auth("invalid login credentials")
	}
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String()
	tok, err := Issue(id, email, "authenticated", l.issuer, l.key, l.ttl)
	if err != nil {
		return session.Session{}, time.Time{}, fmt.Errorf("token issue failed: %w", err)
	}
	return session.Session{UserID: id, Email: email, Role: "authenticated", AccessToken: tok.AccessToken}, tok.ExpiresAt, nil
}
