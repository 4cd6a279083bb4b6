// Package auth supplies the bearer credential attached to every request and
// to the first frame of each realtime channel.
//
// The core never reads ambient storage directly; it takes a Provider so tests
// can inject deterministic credentials.
package auth

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Provider yields the bearer credential for outgoing requests.
type Provider interface {
	// Token returns the current bearer credential.
	Token() (string, error)
}

// Static is a fixed-credential Provider, used in tests and for tokens passed
// in from the environment.
type Static string

// Token implements Provider.
func (s Static) Token() (string, error) {
	if s == "" {
		return "", fmt.Errorf("no access token configured")
	}
	return string(s), nil
}

// FileProvider reads the bearer credential from a token file on every call,
// so an out-of-band refresh is picked up without restarting the client.
type FileProvider struct {
	// Path is the token file location.
	Path string
}

// Token implements Provider.
func (p *FileProvider) Token() (string, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return "", fmt.Errorf("missing %s; run `corpus login` first", p.Path)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("empty %s; run `corpus login` first", p.Path)
	}
	return token, nil
}

// SaveToken writes a bearer credential to path with restrictive permissions.
func SaveToken(path, token string) error {
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write access token: %w", err)
	}
	return nil
}

// ExpiresAt extracts the expiry claim from a JWT access token without
// verifying its signature (the server is the verifier; the client only warns).
// The second return is false when the token carries no usable expiry.
func ExpiresAt(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// ExpiringSoon reports whether the token expires within the given window.
// Tokens without an expiry claim never report as expiring.
func ExpiringSoon(token string, window time.Duration) bool {
	exp, ok := ExpiresAt(token)
	if !ok {
		return false
	}
	return time.Until(exp) <= window
}
