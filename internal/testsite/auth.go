package testsite

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookieName carries the signed session token.
const SessionCookieName = "gherkit_session"

const sessionTTL = time.Hour

// sessionClaims is the JWT payload for a signed-in visitor.
type sessionClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

func newSigningKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	return key, nil
}

// MintSession signs a session token for email. Used by the sign-in handler
// and by the pre-authenticated sign-in step, which installs the token as a
// cookie without driving the form.
func (s *Server) MintSession(email string) (string, error) {
	user, ok := s.users[email]
	if !ok {
		return "", fmt.Errorf("unknown user %q", email)
	}
	claims := sessionClaims{
		Name: user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// verifySession parses and validates a session token, returning the
// visitor's display name.
func (s *Server) verifySession(tokenString string) (string, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid session token: %w", err)
	}
	return claims.Name, nil
}

// requireSession wraps a handler with session validation, redirecting
// anonymous visitors to the sign-in form.
func (s *Server) requireSession(next func(w http.ResponseWriter, r *http.Request, name string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil {
			http.Redirect(w, r, "/signin", http.StatusSeeOther)
			return
		}
		name, err := s.verifySession(cookie.Value)
		if err != nil {
			http.Redirect(w, r, "/signin", http.StatusSeeOther)
			return
		}
		next(w, r, name)
	}
}
