package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklet-io/tracklet/internal/auth"
)

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := auth.NewManager("", 0, 0)
	require.Error(t, err)
}

func TestIssueAndValidate(t *testing.T) {
	mgr, err := auth.NewManager("test-secret", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	token, expiresAt, err := mgr.IssueToken(42, auth.TokenUseAccess)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := mgr.ValidateAccess(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.IDUser)
	assert.Equal(t, auth.TokenUseAccess, claims.TokenUse)
}

func TestValidateRejectsRefreshToken(t *testing.T) {
	mgr, err := auth.NewManager("test-secret", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	refresh, _, err := mgr.IssueToken(42, auth.TokenUseRefresh)
	require.NoError(t, err)

	_, err = mgr.ValidateAccess(refresh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token_use")
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer, err := auth.NewManager("secret-a", time.Hour, 24*time.Hour)
	require.NoError(t, err)
	verifier, err := auth.NewManager("secret-b", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	token, _, err := issuer.IssueToken(1, auth.TokenUseAccess)
	require.NoError(t, err)

	_, err = verifier.ValidateAccess(token)
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrExpired)
}

func TestValidateExpiredToken(t *testing.T) {
	mgr, err := auth.NewManager("test-secret", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	// Forge an already-expired token signed with the same secret and
	// claim set the manager expects.
	now := time.Now().UTC()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			Issuer:    "usermanager",
			Audience:  jwt.ClaimStrings{"tracklet"},
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
		IDUser:   7,
		TokenUse: auth.TokenUseAccess,
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = mgr.ValidateAccess(expired)
	require.ErrorIs(t, err, auth.ErrExpired)
}

func TestValidateRejectsWrongAlgorithm(t *testing.T) {
	mgr, err := auth.NewManager("test-secret", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	// alg=none tokens must never validate.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"id_user":   float64(1),
		"token_use": auth.TokenUseAccess,
		"iss":       "usermanager",
		"aud":       "tracklet",
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = mgr.ValidateAccess(signed)
	require.Error(t, err)
}
