package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// refreshTokenBytes is the entropy of a refresh token (256 bits).
const refreshTokenBytes = 32

// Claims is the access token payload.
type Claims struct {
	jwt.RegisteredClaims
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	GivenName  string   `json:"given_name"`
	FamilyName string   `json:"family_name"`
	Roles      []string `json:"roles"`
}

// RoleNames implements RoleHolder.
func (c *Claims) RoleNames() []string { return c.Roles }

// TokenConfig configures a TokenIssuer.
type TokenConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenIssuer mints HS256 access tokens and opaque refresh tokens.
type TokenIssuer struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokenIssuer creates an issuer. Zero TTLs fall back to 15 minutes and 7 days.
func NewTokenIssuer(cfg TokenConfig) *TokenIssuer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute //nolint:mnd // default access token TTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour //nolint:mnd // default refresh token TTL
	}
	return &TokenIssuer{cfg: cfg, now: time.Now}
}

// IssueAccessToken signs an access token for u with one roles entry per
// assigned role.
func (ti *TokenIssuer) IssueAccessToken(u *User) (string, error) {
	now := ti.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    ti.cfg.Issuer,
			Audience:  jwt.ClaimStrings{ti.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.cfg.AccessTTL)),
			ID:        uuid.NewString(),
		},
		Name:       u.UserName,
		Email:      u.Email,
		GivenName:  u.FirstName,
		FamilyName: u.LastName,
		Roles:      append([]string{}, u.RoleNames()...),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(ti.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// NewRefreshToken returns a random 256-bit token, base64url encoded.
// The raw value goes to the client; only HashToken(raw) is stored.
func (ti *TokenIssuer) NewRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RefreshExpiry is the expiry for a refresh token issued at now. The same
// instant is written to the token row and the cookie, so it is truncated
// to the second precision both can represent.
func (ti *TokenIssuer) RefreshExpiry(now time.Time) time.Time {
	return now.Add(ti.cfg.RefreshTTL).UTC().Truncate(time.Second)
}

// Parse validates signature, expiry, issuer and audience and returns the claims.
func (ti *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	}
	if ti.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(ti.cfg.Issuer))
	}
	if ti.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(ti.cfg.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(ti.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}
