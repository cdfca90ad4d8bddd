package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identify the user a token was issued to.
type Claims struct {
	UserID string    `json:"userId"`
	Type   TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is what login, register and refresh hand back.
type TokenPair struct {
	Token        string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenIssuer signs and verifies HS256 access and refresh tokens. Access and
// refresh tokens use different secrets so one can never stand in for the other.
type TokenIssuer struct {
	secret        []byte
	refreshSecret []byte
	ttl           time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenIssuer(secret, refreshSecret string, ttl, refreshTTL time.Duration) *TokenIssuer {
	if refreshSecret == "" {
		refreshSecret = secret
	}
	return &TokenIssuer{
		secret:        []byte(secret),
		refreshSecret: []byte(refreshSecret),
		ttl:           ttl,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	c := *i
	c.now = now
	return &c
}

func (i *TokenIssuer) Issue(userID primitive.ObjectID) (TokenPair, error) {
	now := i.now()
	access, exp, err := i.sign(userID, AccessToken, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := i.sign(userID, RefreshToken, now)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Token: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

func (i *TokenIssuer) sign(userID primitive.ObjectID, typ TokenType, now time.Time) (string, time.Time, error) {
	key, ttl := i.secret, i.ttl
	if typ == RefreshToken {
		key, ttl = i.refreshSecret, i.refreshTTL
	}
	exp := now.Add(ttl)
	claims := Claims{
		UserID: userID.Hex(),
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, exp, nil
}

// Verify parses an access token and returns the user id it carries.
func (i *TokenIssuer) Verify(token string) (primitive.ObjectID, error) {
	return i.parse(token, AccessToken)
}

// VerifyRefresh parses a refresh token and returns the user id it carries.
func (i *TokenIssuer) VerifyRefresh(token string) (primitive.ObjectID, error) {
	return i.parse(token, RefreshToken)
}

func (i *TokenIssuer) parse(token string, typ TokenType) (primitive.ObjectID, error) {
	key := i.secret
	if typ == RefreshToken {
		key = i.refreshSecret
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != typ {
		return primitive.NilObjectID, fmt.Errorf("%w: expected %s token", ErrInvalidToken, typ)
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}
