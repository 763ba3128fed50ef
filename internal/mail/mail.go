// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package mail renders and delivers account and RSVP notifications.
package mail

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/olegiv/oevent/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.txt"))

// Subjects of the notifications sent by the Dispatcher.
const (
	SubjectActivation    = "Activate Your Account"
	SubjectPasswordReset = "Password reset"
	subjectRSVPFormat    = "RSVP Confirmation for %s"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 15 * time.Second

// ErrNoRecipient is returned when a notification has no destination address.
var ErrNoRecipient = errors.New("mail: recipient has no email address")

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Recipient identifies the user a notification is addressed to.
type Recipient struct {
	Username string
	Email    string
}

// Dispatcher builds notification messages and hands them to a Sender.
type Dispatcher struct {
	sender  Sender
	baseURL string
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. baseURL is the absolute site URL used
// to build links; a zero timeout selects DefaultTimeout.
func NewDispatcher(sender Sender, baseURL string, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		sender:  sender,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

// ActivationLink returns the absolute activation URL for uid and token.
func (d *Dispatcher) ActivationLink(uid, token string) string {
	return fmt.Sprintf("%s/activate/%s/%s/", d.baseURL, uid, token)
}

// PasswordResetLink returns the absolute password reset URL for uid and token.
func (d *Dispatcher) PasswordResetLink(uid, token string) string {
	return fmt.Sprintf("%s/reset/%s/%s/", d.baseURL, uid, token)
}

// SendActivation emails the account activation link.
func (d *Dispatcher) SendActivation(ctx context.Context, to Recipient, uid, token string) error {
	body, err := render("activation.txt", map[string]string{
		"Username": to.Username,
		"Link":     d.ActivationLink(uid, token),
	})
	if err != nil {
		return err
	}
	return d.send(ctx, to, SubjectActivation, body)
}

// SendPasswordReset emails the password reset link.
func (d *Dispatcher) SendPasswordReset(ctx context.Context, to Recipient, uid, token string) error {
	body, err := render("password_reset.txt", map[string]string{
		"Username": to.Username,
		"Link":     d.PasswordResetLink(uid, token),
	})
	if err != nil {
		return err
	}
	return d.send(ctx, to, SubjectPasswordReset, body)
}

// SendRSVPConfirmation emails the confirmation for a new RSVP.
func (d *Dispatcher) SendRSVPConfirmation(ctx context.Context, to Recipient, title string, date time.Time) error {
	body, err := render("rsvp.txt", map[string]string{
		"Username": to.Username,
		"Title":    title,
		"Date":     date.Format(model.EmailDateLayout),
	})
	if err != nil {
		return err
	}
	return d.send(ctx, to, fmt.Sprintf(subjectRSVPFormat, title), body)
}

func (d *Dispatcher) send(ctx context.Context, to Recipient, subject, body string) error {
	if to.Email == "" {
		return ErrNoRecipient
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	msg := Message{To: to.Email, Subject: subject, Body: body}
	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.Error("failed to send email", "subject", subject, "to", to.Email, "error", err)
		return fmt.Errorf("sending %q: %w", subject, err)
	}

	d.logger.Debug("email sent", "subject", subject, "to", to.Email)
	return nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
