package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/sha256" // SHA-256 hashing for stored refresh tokens
	"crypto/subtle" // constant-time comparison of token hashes
	"encoding/hex"  // hex encoding of digests
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // unique token ids
)

var (
	// ErrTokenExpired is returned when a token's signature is valid but its
	// exp claim is in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other verification failure: bad
	// signature, wrong algorithm, malformed payload, missing claims.
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims is the payload of access and refresh tokens.  Both kinds carry
// the same identity; they differ only in signing secret and lifetime.
// RegisteredClaims.ID holds a random jti so two tokens minted in the same
// second for the same user never collide.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// InviteClaims is the payload of a project invitation token.
type InviteClaims struct {
	ProjectID string `json:"projectId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// SignedToken is a serialized JWT along with its expiry.
type SignedToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// SignIdentity builds and signs an HS256 JWT carrying userID and email that
// expires after ttl.
func SignIdentity(secret, userID, email string, ttl time.Duration) (SignedToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	return sign(secret, claims, exp)
}

// ParseIdentity verifies raw with secret and returns its claims.  Expired
// tokens yield ErrTokenExpired, anything else unusable ErrTokenInvalid.
func ParseIdentity(secret, raw string) (Claims, error) {
	var claims Claims
	if err := parse(secret, raw, &claims); err != nil {
		return Claims{}, err
	}
	if claims.UserID == "" {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}

// SignInvite signs an invitation for email to join projectID with role.
func SignInvite(secret, projectID, email, role string, ttl time.Duration) (SignedToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := InviteClaims{
		ProjectID: projectID,
		Email:     email,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	return sign(secret, claims, exp)
}

// ParseInvite verifies an invitation token.
func ParseInvite(secret, raw string) (InviteClaims, error) {
	var claims InviteClaims
	if err := parse(secret, raw, &claims); err != nil {
		return InviteClaims{}, err
	}
	if claims.ProjectID == "" || claims.Email == "" || claims.Role == "" {
		return InviteClaims{}, ErrTokenInvalid
	}
	return claims, nil
}

func sign(secret string, claims jwt.Claims, exp time.Time) (SignedToken, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

func parse(secret, raw string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenInvalid
	}
}

// HashToken returns the SHA-256 hash of a raw token as a hex string.
// Refresh tokens are JWTs well past bcrypt's 72 byte input limit, so a
// plain digest is stored instead of a bcrypt hash.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// HashesEqual compares two token hashes in constant time.
func HashesEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
