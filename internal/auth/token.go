// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// DefaultTokenTTL is how long activation and reset links stay valid.
const DefaultTokenTTL = 72 * time.Hour

// TokenIssuerName is written to the "iss" claim of every account token.
const TokenIssuerName = "oevent"

// Purpose separates activation tokens from password-reset tokens so one can
// never be replayed as the other.
type Purpose string

// Token purposes.
const (
	PurposeActivation    Purpose = "activate"
	PurposePasswordReset Purpose = "reset"
)

// Token errors.
var (
	ErrInvalidUID    = errors.New("invalid user id encoding")
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenMismatch = errors.New("token does not match user state")
)

// TokenSubject is the user state a token is bound to. Any change to these
// fields (new password, a login, activation) invalidates earlier tokens.
type TokenSubject struct {
	ID           int64
	PasswordHash string
	IsActive     bool
	LastLoginAt  time.Time
}

type accountClaims struct {
	jwt.RegisteredClaims
	Purpose Purpose `json:"pur"`
	State   string  `json:"st"`
}

// TokenManager issues and checks HS256 account tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager. A zero ttl selects DefaultTokenTTL.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the configured token lifetime.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// EncodeUID encodes a user id for use in a URL path segment.
func EncodeUID(id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// DecodeUID reverses EncodeUID.
func DecodeUID(uid string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return 0, ErrInvalidUID
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidUID
	}
	return id, nil
}

// Issue returns the encoded uid and a signed token for subject.
func (m *TokenManager) Issue(subject TokenSubject, purpose Purpose) (uid, token string, err error) {
	now := m.now().UTC()
	claims := accountClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuerName,
			Subject:   strconv.FormatInt(subject.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        ulid.Make().String(),
		},
		Purpose: purpose,
		State:   m.state(subject, purpose),
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", "", fmt.Errorf("signing token: %w", err)
	}
	return EncodeUID(subject.ID), token, nil
}

// Check verifies that token was issued by m for subject and purpose and that
// the subject's state has not changed since.
func (m *TokenManager) Check(subject TokenSubject, purpose Purpose, token string) error {
	claims := &accountClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject != strconv.FormatInt(subject.ID, 10) || claims.Purpose != purpose {
		return ErrInvalidToken
	}

	if !hmac.Equal([]byte(claims.State), []byte(m.state(subject, purpose))) {
		return ErrTokenMismatch
	}
	return nil
}

// state is an HMAC over the fields a token is bound to.
func (m *TokenManager) state(s TokenSubject, purpose Purpose) string {
	var lastLogin int64
	if !s.LastLoginAt.IsZero() {
		lastLogin = s.LastLoginAt.UTC().Unix()
	}

	mac := hmac.New(sha256.New, m.secret)
	_, _ = fmt.Fprintf(mac, "%d|%s|%t|%d|%s", s.ID, s.PasswordHash, s.IsActive, lastLogin, purpose)
	return hex.EncodeToString(mac.Sum(nil))
}
