package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/msomdec/postbook/internal/domain"
)

const refreshTokenBytes = 32

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	ProfileID string   `json:"profile_id"`
	Roles     []string `json:"role"`
	jwt.RegisteredClaims
}

// TokenOptions configures a TokenService.
type TokenOptions struct {
	SigningKey      string
	Issuer          string
	Audience        string
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
	Now             func() time.Time
}

// TokenService mints and validates HS256 access tokens and generates opaque
// refresh tokens.
type TokenService struct {
	key  []byte
	opts TokenOptions
}

// NewTokenService creates a new TokenService.
func NewTokenService(opts TokenOptions) *TokenService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TokenService{key: []byte(opts.SigningKey), opts: opts}
}

func (s *TokenService) now() time.Time { return s.opts.Now().UTC() }

// IssueAccessToken signs a token for identity acting as profile with roles.
func (s *TokenService) IssueAccessToken(identity *domain.Identity, profileID domain.Identifier, roles []string) (string, error) {
	now := s.now()
	claims := AccessClaims{
		ProfileID: profileID.String(),
		Roles:     roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Issuer:    s.opts.Issuer,
			Audience:  jwt.ClaimStrings{s.opts.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.AccessLifetime)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

// ValidateAccessToken parses a token and checks its signature, issuer,
// audience and expiry against the service clock.
func (s *TokenService) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.opts.Issuer),
		jwt.WithAudience(s.opts.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

// IssueRefreshToken returns 256 random bits, base64url encoded.
func (s *TokenService) IssueRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RefreshTokenExpiry is the expiry of a refresh token issued now.
func (s *TokenService) RefreshTokenExpiry() time.Time {
	return s.now().Add(s.opts.RefreshLifetime)
}

// HashRefreshToken is the form a refresh token is stored and looked up in.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
