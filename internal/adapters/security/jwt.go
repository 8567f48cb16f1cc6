package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is what this service trusts out of a platform access token.
// Tokens are issued by the authentication service; here they are only
// verified.
type AccessClaims struct {
	UserID    uuid.UUID
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// JWTVerifier validates RS256 access tokens against the platform public
// key. The private key is present only in the ephemeral dev mode, where
// this service mints its own tokens for local testing.
type JWTVerifier struct {
	publicKey  *rsa.PublicKey
	privateKey *rsa.PrivateKey
}

// NewJWTVerifier builds a verifier from the configured public key PEM.
func NewJWTVerifier(publicKeyPEM string) (*JWTVerifier, error) {
	if publicKeyPEM == "" {
		return nil, errors.New("jwt public key is required")
	}
	pub, err := parseRSAPublic(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &JWTVerifier{publicKey: pub}, nil
}

// NewEphemeralJWTVerifier creates an in-memory keypair for local/dev use.
func NewEphemeralJWTVerifier() (*JWTVerifier, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &JWTVerifier{publicKey: &privateKey.PublicKey, privateKey: privateKey}, nil
}

type accessJWTClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) ParseAndValidate(raw string) (AccessClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &accessJWTClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return AccessClaims{}, err
	}
	claims, ok := parsed.Claims.(*accessJWTClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, errors.New("invalid token claims")
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return AccessClaims{}, fmt.Errorf("parse user_id: %w", err)
	}
	out := AccessClaims{UserID: userID, Role: claims.Role}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return out, nil
}

// SignDevToken mints a token with the ephemeral private key. Fails outside
// ephemeral mode; production tokens come from the authentication service.
func (v *JWTVerifier) SignDevToken(userID uuid.UUID, role string, ttl time.Duration) (string, error) {
	if v.privateKey == nil {
		return "", errors.New("dev token signing requires an ephemeral keypair")
	}
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, accessJWTClaims{
		UserID: userID.String(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(v.privateKey)
}

func parseRSAPublic(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid public PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}
