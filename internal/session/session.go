// Package session reads the bearer token out of the persisted cookie string.
// Tokens are opaque to the storefront; JWT-shaped tokens are only inspected
// for expiry so a dead session is not presented as logged in.
package session

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
	RoleAdmin     = "admin"
)

var (
	ErrNoToken   = errors.New("no access token")
	ErrMalformed = errors.New("malformed access token")
	ErrExpired   = errors.New("access token expired")
)

type Claims struct {
	Role     string `json:"role,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// ParseCookie splits a "name=value; name2=value2" string. Pairs that do not
// parse are skipped rather than failing the whole string.
func ParseCookie(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cookies, err := http.ParseCookie(part)
		if err != nil {
			continue
		}
		for _, c := range cookies {
			out[c.Name] = c.Value
		}
	}
	return out
}

// FormatCookie is the inverse of ParseCookie with names in sorted order.
func FormatCookie(values map[string]string) string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+values[name])
	}
	return strings.Join(parts, "; ")
}

// BearerFromCookie returns the access token when it is present and usable.
func BearerFromCookie(raw string, now time.Time) (string, bool) {
	token, ok := ParseCookie(raw)[AccessCookie]
	if !ok {
		return "", false
	}
	if err := Check(token, now); err != nil {
		return "", false
	}
	return token, true
}

// Check rejects empty tokens, tokens with characters that cannot appear in a
// header value, and JWT-shaped tokens that do not decode or have expired.
// Anything else is accepted as an opaque token.
func Check(token string, now time.Time) error {
	if token == "" {
		return ErrNoToken
	}
	if strings.ContainsAny(token, " \t\r\n\"\\,;") {
		return ErrMalformed
	}
	if strings.Count(token, ".") != 2 {
		return nil
	}
	claims, err := Inspect(token)
	if err != nil {
		return err
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(now) {
		return ErrExpired
	}
	return nil
}

// Inspect decodes JWT claims without verifying the signature; verification
// belongs to the backend that issued the token.
func Inspect(token string) (*Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}
	return &claims, nil
}
