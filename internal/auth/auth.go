// Package auth validates and issues the bearer tokens used across
// Tracklet services.
//
// Tokens are HMAC-SHA256 JWTs signed with the SECRET_KEY shared with the
// credential validator, so every service can verify tokens locally
// without a network round trip. Refresh goes through the credential
// validator; this package only distinguishes an expired token from an
// otherwise invalid one so the caller knows whether a refresh is worth
// attempting.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer   = "usermanager"
	audience = "tracklet"

	// TokenUseAccess and TokenUseRefresh discriminate the two token
	// kinds in the token_use claim.
	TokenUseAccess  = "access"
	TokenUseRefresh = "refresh"
)

// ErrExpired reports that a token was structurally valid but past its
// expiry. Callers should attempt a refresh before failing.
var ErrExpired = errors.New("auth: token expired")

// Claims extends jwt.RegisteredClaims with Tracklet-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	IDUser   int64  `json:"id_user"`
	TokenUse string `json:"token_use"`
}

// Manager verifies and issues tokens with a shared HMAC secret.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewManager creates a Manager. The secret is required; issuing TTLs
// default to 15 minutes (access) and 24 hours (refresh) when zero.
func NewManager(secret string, accessTTL, refreshTTL time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: SECRET_KEY is required")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 24 * time.Hour
	}
	return &Manager{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

// IssueToken creates a signed token for the given user. Used by the
// test harness and local development; production tokens come from the
// credential validator, which signs with the same secret.
func (m *Manager) IssueToken(idUser int64, tokenUse string) (string, time.Time, error) {
	ttl := m.accessTTL
	if tokenUse == TokenUseRefresh {
		ttl = m.refreshTTL
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", idUser),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.New().String(),
		},
		IDUser:   idUser,
		TokenUse: tokenUse,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// ValidateAccess parses and validates an access token, returning its
// claims. Returns an error wrapping ErrExpired when the only problem is
// expiry.
func (m *Manager) ValidateAccess(tokenStr string) (*Claims, error) {
	return m.validate(tokenStr, TokenUseAccess)
}

func (m *Manager) validate(tokenStr, wantUse string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithAudience(audience),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: validate token: %w", ErrExpired)
		}
		return nil, fmt.Errorf("auth: validate token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if claims.TokenUse != wantUse {
		return nil, fmt.Errorf("auth: token_use is %q, want %q", claims.TokenUse, wantUse)
	}
	return claims, nil
}
