// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-that-is-long-enough-123"

func testSubject() TokenSubject {
	return TokenSubject{ID: 42, PasswordHash: "$argon2id$hash", IsActive: false}
}

func TestUIDRoundTrip(t *testing.T) {
	uid := EncodeUID(42)
	assert.Equal(t, "NDI", uid)

	id, err := DecodeUID(uid)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestDecodeUIDInvalid(t *testing.T) {
	for _, uid := range []string{"", "!!!", EncodeUID(0), "YWJj"} {
		_, err := DecodeUID(uid)
		assert.ErrorIs(t, err, ErrInvalidUID, "uid %q", uid)
	}
}

func TestTokenIssueAndCheck(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)
	subject := testSubject()

	uid, token, err := m.Issue(subject, PurposeActivation)
	require.NoError(t, err)
	assert.Equal(t, EncodeUID(subject.ID), uid)
	assert.Equal(t, 2, strings.Count(token, "."))

	require.NoError(t, m.Check(subject, PurposeActivation, token))
}

func TestTokenRejectsOtherUser(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)
	alice := testSubject()
	bob := TokenSubject{ID: 43, PasswordHash: alice.PasswordHash}

	_, token, err := m.Issue(alice, PurposeActivation)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Check(bob, PurposeActivation, token), ErrInvalidToken)
}

func TestTokenRejectsOtherPurpose(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)
	subject := testSubject()

	_, token, err := m.Issue(subject, PurposeActivation)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Check(subject, PurposePasswordReset, token), ErrInvalidToken)
}

func TestTokenInvalidatedByStateChange(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)

	tests := []struct {
		name   string
		mutate func(s *TokenSubject)
	}{
		{"activated", func(s *TokenSubject) { s.IsActive = true }},
		{"password changed", func(s *TokenSubject) { s.PasswordHash = "$argon2id$other" }},
		{"logged in", func(s *TokenSubject) { s.LastLoginAt = time.Now() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject := testSubject()
			_, token, err := m.Issue(subject, PurposeActivation)
			require.NoError(t, err)

			tt.mutate(&subject)
			assert.ErrorIs(t, m.Check(subject, PurposeActivation, token), ErrTokenMismatch)
		})
	}
}

func TestTokenExpired(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)
	issued := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issued }

	subject := testSubject()
	_, token, err := m.Issue(subject, PurposeActivation)
	require.NoError(t, err)

	m.now = time.Now
	assert.ErrorIs(t, m.Check(subject, PurposeActivation, token), ErrTokenExpired)
}

func TestTokenWrongSecret(t *testing.T) {
	subject := testSubject()
	_, token, err := NewTokenManager(testSecret, time.Hour).Issue(subject, PurposeActivation)
	require.NoError(t, err)

	other := NewTokenManager("another-secret-key-that-is-long-enough", time.Hour)
	assert.ErrorIs(t, other.Check(subject, PurposeActivation, token), ErrInvalidToken)
}

func TestTokenGarbage(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)
	assert.ErrorIs(t, m.Check(testSubject(), PurposeActivation, "not-a-token"), ErrInvalidToken)
}

func TestNewTokenManagerDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTokenTTL, NewTokenManager(testSecret, 0).TTL())
}
