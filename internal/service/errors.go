// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/olegiv/oevent/internal/auth"
)

// FieldForm keys a validation message that applies to the whole form.
const FieldForm = "__all__"

// ValidationError carries per-field messages for a rejected form.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}

// Add records msg for field, keeping the first message per field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

// Message returns the message recorded for field.
func (e *ValidationError) Message(field string) string {
	return e.Fields[field]
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0
}

// orNil returns e when it holds messages, or nil. Callers must return its
// result directly so a nil *ValidationError never becomes a non-nil error.
func (e *ValidationError) orNil() error {
	if e.empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// PermissionError is returned when the acting user may not perform an
// operation. Message is suitable for display.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	return e.Message
}

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// IntegrityError reports a uniqueness collision on Field.
type IntegrityError struct {
	Field   string
	Message string
}

func (e *IntegrityError) Error() string {
	return e.Message
}

// ActivationError is returned for an activation or password reset link
// that is malformed, expired, or no longer matches the account.
type ActivationError struct {
	Purpose auth.Purpose
	Err     error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("%s link rejected: %v", e.Purpose, e.Err)
}

func (e *ActivationError) Unwrap() error {
	return e.Err
}

// ErrInvalidCredentials is returned by Authenticate for an unknown user,
// a wrong password, or an inactive account.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrNotification wraps a failed email delivery. The operation that
// triggered the email has already been committed.
var ErrNotification = errors.New("notification could not be delivered")

func notificationError(err error) error {
	return fmt.Errorf("%w: %v", ErrNotification, err)
}

// notFound maps sql.ErrNoRows to a NotFoundError and wraps anything else.
func notFound(err error, resource string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	return fmt.Errorf("loading %s %d: %w", resource, id, err)
}

// isUniqueViolation reports whether err is a SQLite UNIQUE failure on
// column (e.g. "users.username"). Both SQLite drivers include the same text.
func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}
