package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/juju/clock"
)

// TokenKindUser marks bearer tokens issued to end users at login.
const TokenKindUser = "user"

// Token verification failures. All of them mean "invalid"; they only differ for logging.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenClaims    = errors.New("token claims invalid")
)

// TokenManager issues and verifies HS256 bearer tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewTokenManager builds a new manager. A nil clock means wall clock time.
func NewTokenManager(secret string, ttlMinutes int, clk clock.Clock) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 24 * 60
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute, clock: clk}
}

// Claims describes the JWT payload. The subject is the username.
type Claims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for username that expires after the configured TTL.
func (tm *TokenManager) GenerateToken(username string) (string, time.Time, error) {
	now := tm.clock.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		Kind: TokenKindUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates signature and expiry and returns the claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(tm.clock.Now))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		}
		return nil, errors.Join(ErrTokenClaims, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenClaims
	}
	if claims.ExpiresAt == nil || claims.Subject == "" || claims.Kind != TokenKindUser {
		return nil, ErrTokenClaims
	}
	return claims, nil
}

// Verify reports the token subject, failing closed on any parse problem.
func (tm *TokenManager) Verify(tokenStr string) (string, bool) {
	claims, err := tm.ParseToken(tokenStr)
	if err != nil {
		return "", false
	}
	return claims.Subject, true
}
