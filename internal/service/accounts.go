// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/olegiv/oevent/internal/auth"
	"github.com/olegiv/oevent/internal/imaging"
	oemail "github.com/olegiv/oevent/internal/mail"
	"github.com/olegiv/oevent/internal/store"
)

// Field limits for user accounts.
const (
	MaxUsernameLength = 150
	MaxNameLength     = 30
	MaxPhoneLength    = 20
)

// Validation messages shared by account forms.
const (
	msgRequired          = "This field is required."
	msgInvalidEmail      = "Enter a valid email address."
	msgInvalidUsername   = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	msgUsernameTaken     = "A user with that username already exists."
	msgEmailTaken        = "A user with that email already exists."
	msgPasswordMismatch  = "The two password fields didn't match."
	msgWrongOldPassword  = "Your old password was entered incorrectly. Please enter it again."
	msgInvalidImage      = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
	msgImageTooLarge     = "The uploaded image is too large."
	msgPasswordTooShortF = "This password is too short. It must contain at least %d characters."
)

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

// Notifier sends the account and RSVP emails. *mail.Dispatcher implements it.
type Notifier interface {
	SendActivation(ctx context.Context, to oemail.Recipient, uid, token string) error
	SendPasswordReset(ctx context.Context, to oemail.Recipient, uid, token string) error
	SendRSVPConfirmation(ctx context.Context, to oemail.Recipient, title string, date time.Time) error
}

// dummyHash is compared against when a login names an unknown user so the
// response time does not reveal which usernames exist.
var dummyHash, _ = auth.HashPassword("oevent-timing-equalizer")

// RegisterInput is the signup form.
type RegisterInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
	Password2 string
}

// ProfileInput is the profile edit form. A nil Picture keeps the current one.
type ProfileInput struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Picture     io.Reader
}

// AccountService manages the account lifecycle: signup, activation,
// authentication, profile edits and password changes.
type AccountService struct {
	db        *sql.DB
	queries   *store.Queries
	tokens    *auth.TokenManager
	notifier  Notifier
	processor *imaging.Processor
	logger    *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(db *sql.DB, tokens *auth.TokenManager, notifier Notifier, processor *imaging.Processor, logger *slog.Logger) *AccountService {
	return &AccountService{
		db:        db,
		queries:   store.New(db),
		tokens:    tokens,
		notifier:  notifier,
		processor: processor,
		logger:    logger,
	}
}

func tokenSubject(u store.User) auth.TokenSubject {
	return auth.TokenSubject{
		ID:           u.ID,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
		LastLoginAt:  u.LastLoginAt.Time,
	}
}

func recipient(u store.User) oemail.Recipient {
	return oemail.Recipient{Username: u.Username, Email: u.Email}
}

// Register creates an inactive account and sends the activation email.
// When only the email fails, the created user is returned together with an
// error wrapping ErrNotification.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (store.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	verr := &ValidationError{}
	validateUsername(verr, in.Username)
	validateEmail(verr, "email", in.Email)
	validateName(verr, "first_name", in.FirstName)
	validateName(verr, "last_name", in.LastName)
	validateNewPassword(verr, "password1", "password2", in.Password, in.Password2)

	var user store.User
	err := store.InTx(ctx, s.db, func(q *store.Queries) error {
		if in.Username != "" {
			if _, err := q.GetUserByUsername(ctx, in.Username); err == nil {
				verr.Add("username", msgUsernameTaken)
			} else if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("checking username: %w", err)
			}
		}
		if in.Email != "" {
			if _, err := q.GetUserByEmail(ctx, in.Email); err == nil {
				verr.Add("email", msgEmailTaken)
			} else if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("checking email: %w", err)
			}
		}
		if !verr.empty() {
			return verr
		}

		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}

		now := time.Now().UTC()
		user, err = q.CreateUser(ctx, store.CreateUserParams{
			Username:     in.Username,
			Email:        in.Email,
			PasswordHash: hash,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			IsActive:     false,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		switch {
		case isUniqueViolation(err, "users.username"):
			return newValidationError("username", msgUsernameTaken)
		case isUniqueViolation(err, "users.email"):
			return newValidationError("email", msgEmailTaken)
		case err != nil:
			return fmt.Errorf("creating user: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.User{}, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)

	if err := s.sendActivation(ctx, user); err != nil {
		return user, err
	}
	return user, nil
}

// IssueActivationToken returns the uid and token for user's activation link.
func (s *AccountService) IssueActivationToken(user store.User) (uid, token string, err error) {
	return s.tokens.Issue(tokenSubject(user), auth.PurposeActivation)
}

// ResendActivation sends a fresh activation link to an inactive user.
func (s *AccountService) ResendActivation(ctx context.Context, user store.User) error {
	if user.IsActive {
		return nil
	}
	return s.sendActivation(ctx, user)
}

func (s *AccountService) sendActivation(ctx context.Context, user store.User) error {
	uid, token, err := s.IssueActivationToken(user)
	if err != nil {
		return fmt.Errorf("issuing activation token: %w", err)
	}
	if err := s.notifier.SendActivation(ctx, recipient(user), uid, token); err != nil {
		return notificationError(err)
	}
	return nil
}

// Activate verifies an activation link and marks the account active. Any
// failure yields an *ActivationError and leaves the account unchanged.
func (s *AccountService) Activate(ctx context.Context, uid, token string) (store.User, error) {
	user, err := s.verifyLink(ctx, uid, token, auth.PurposeActivation)
	if err != nil {
		return store.User{}, err
	}

	err = s.queries.SetUserActive(ctx, store.SetUserActiveParams{
		IsActive:  true,
		UpdatedAt: time.Now().UTC(),
		ID:        user.ID,
	})
	if err != nil {
		return store.User{}, fmt.Errorf("activating user %d: %w", user.ID, err)
	}

	user.IsActive = true
	s.logger.Info("user activated", "user_id", user.ID, "username", user.Username)
	return user, nil
}

func (s *AccountService) verifyLink(ctx context.Context, uid, token string, purpose auth.Purpose) (store.User, error) {
	id, err := auth.DecodeUID(uid)
	if err != nil {
		return store.User{}, &ActivationError{Purpose: purpose, Err: err}
	}

	user, err := s.queries.GetUserByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, &ActivationError{Purpose: purpose, Err: auth.ErrInvalidUID}
	}
	if err != nil {
		return store.User{}, fmt.Errorf("loading user %d: %w", id, err)
	}

	if err := s.tokens.Check(tokenSubject(user), purpose, token); err != nil {
		return store.User{}, &ActivationError{Purpose: purpose, Err: err}
	}
	return user, nil
}

// Authenticate checks a username and password. Unknown users, wrong
// passwords and inactive accounts all return ErrInvalidCredentials. On
// success the last login time is recorded, which also invalidates any
// outstanding activation or reset links.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (store.User, error) {
	user, err := s.queries.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, sql.ErrNoRows) {
		_, _ = auth.CheckPassword(password, dummyHash)
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("loading user: %w", err)
	}

	ok, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash is unreadable", "user_id", user.ID, "error", err)
		return store.User{}, ErrInvalidCredentials
	}
	if !ok || !user.IsActive {
		return store.User{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if auth.NeedsRehash(user.PasswordHash) {
		if hash, err := auth.HashPassword(password); err == nil {
			if err := s.queries.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{PasswordHash: hash, UpdatedAt: now, ID: user.ID}); err == nil {
				user.PasswordHash = hash
			}
		}
	}

	last := sql.NullTime{Time: now, Valid: true}
	if err := s.queries.UpdateUserLastLogin(ctx, store.UpdateUserLastLoginParams{LastLoginAt: last, ID: user.ID}); err != nil {
		return store.User{}, fmt.Errorf("recording login: %w", err)
	}
	user.LastLoginAt = last
	return user, nil
}

// GetUser loads a user by id.
func (s *AccountService) GetUser(ctx context.Context, id int64) (store.User, error) {
	user, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		return store.User{}, notFound(err, "user", id)
	}
	return user, nil
}

// RequestPasswordReset emails a reset link to the active account with the
// given address. Unknown or inactive addresses are accepted silently.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validateEmailValue(email); err != "" {
		return newValidationError("email", err)
	}

	user, err := s.queries.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading user by email: %w", err)
	}
	if !user.IsActive {
		return nil
	}

	uid, token, err := s.tokens.Issue(tokenSubject(user), auth.PurposePasswordReset)
	if err != nil {
		return fmt.Errorf("issuing reset token: %w", err)
	}
	if err := s.notifier.SendPasswordReset(ctx, recipient(user), uid, token); err != nil {
		return notificationError(err)
	}
	return nil
}

// CheckResetLink verifies a password reset link without using it.
func (s *AccountService) CheckResetLink(ctx context.Context, uid, token string) (store.User, error) {
	return s.verifyLink(ctx, uid, token, auth.PurposePasswordReset)
}

// ResetPassword verifies a reset link and sets a new password. The new
// password hash invalidates the link.
func (s *AccountService) ResetPassword(ctx context.Context, uid, token, password, password2 string) (store.User, error) {
	user, err := s.verifyLink(ctx, uid, token, auth.PurposePasswordReset)
	if err != nil {
		return store.User{}, err
	}

	verr := &ValidationError{}
	validateNewPassword(verr, "new_password1", "new_password2", password, password2)
	if err := verr.orNil(); err != nil {
		return store.User{}, err
	}

	if err := s.setPassword(ctx, &user, password); err != nil {
		return store.User{}, err
	}
	s.logger.Info("password reset", "user_id", user.ID)
	return user, nil
}

// ChangePassword replaces the password of a logged-in user after checking
// the old one.
func (s *AccountService) ChangePassword(ctx context.Context, userID int64, oldPassword, password, password2 string) (store.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return store.User{}, err
	}

	verr := &ValidationError{}
	if oldPassword == "" {
		verr.Add("old_password", msgRequired)
	} else if ok, _ := auth.CheckPassword(oldPassword, user.PasswordHash); !ok {
		verr.Add("old_password", msgWrongOldPassword)
	}
	validateNewPassword(verr, "new_password1", "new_password2", password, password2)
	if err := verr.orNil(); err != nil {
		return store.User{}, err
	}

	if err := s.setPassword(ctx, &user, password); err != nil {
		return store.User{}, err
	}
	return user, nil
}

func (s *AccountService) setPassword(ctx context.Context, user *store.User, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	now := time.Now().UTC()
	if err := s.queries.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{PasswordHash: hash, UpdatedAt: now, ID: user.ID}); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = now
	return nil
}

// UpdateProfile saves the profile form. A new picture replaces and removes
// the previous file.
func (s *AccountService) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (store.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return store.User{}, err
	}

	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)

	verr := &ValidationError{}
	if utf8.RuneCountInString(in.FirstName) > MaxNameLength {
		verr.Add("first_name", fmt.Sprintf("Ensure this value has at most %d characters.", MaxNameLength))
	}
	if utf8.RuneCountInString(in.LastName) > MaxNameLength {
		verr.Add("last_name", fmt.Sprintf("Ensure this value has at most %d characters.", MaxNameLength))
	}
	validateEmail(verr, "email", in.Email)
	if utf8.RuneCountInString(in.PhoneNumber) > MaxPhoneLength {
		verr.Add("phone_number", fmt.Sprintf("Ensure this value has at most %d characters.", MaxPhoneLength))
	}
	if _, ok := verr.Fields["email"]; !ok && !strings.EqualFold(in.Email, user.Email) {
		other, err := s.queries.GetUserByEmail(ctx, in.Email)
		if err == nil && other.ID != user.ID {
			verr.Add("email", msgEmailTaken)
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return store.User{}, fmt.Errorf("checking email: %w", err)
		}
	}
	if err := verr.orNil(); err != nil {
		return store.User{}, err
	}

	picture := user.ProfilePicture
	if in.Picture != nil {
		picture, err = saveImage(s.processor, in.Picture, imaging.KindProfile, "profile_picture")
		if err != nil {
			return store.User{}, err
		}
	}

	updated, err := s.queries.UpdateUserProfile(ctx, store.UpdateUserProfileParams{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          in.Email,
		PhoneNumber:    in.PhoneNumber,
		ProfilePicture: picture,
		UpdatedAt:      time.Now().UTC(),
		ID:             user.ID,
	})
	if err != nil {
		if picture != user.ProfilePicture {
			_ = s.processor.Delete(picture)
		}
		if isUniqueViolation(err, "users.email") {
			return store.User{}, newValidationError("email", msgEmailTaken)
		}
		return store.User{}, fmt.Errorf("updating profile: %w", err)
	}

	if picture != user.ProfilePicture && user.ProfilePicture != "" {
		if err := s.processor.Delete(user.ProfilePicture); err != nil {
			s.logger.Warn("failed to remove old profile picture", "user_id", user.ID, "error", err)
		}
	}
	return updated, nil
}

// saveImage stores an upload, mapping rejected files to a ValidationError on field.
func saveImage(p *imaging.Processor, r io.Reader, kind imaging.Kind, field string) (string, error) {
	path, err := p.Save(r, kind)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		return "", newValidationError(field, msgImageTooLarge)
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return "", newValidationError(field, msgInvalidImage)
	case err != nil:
		return "", fmt.Errorf("saving image: %w", err)
	}
	return path, nil
}

func validateUsername(verr *ValidationError, username string) {
	switch {
	case username == "":
		verr.Add("username", msgRequired)
	case utf8.RuneCountInString(username) > MaxUsernameLength:
		verr.Add("username", fmt.Sprintf("Ensure this value has at most %d characters.", MaxUsernameLength))
	case !usernamePattern.MatchString(username):
		verr.Add("username", msgInvalidUsername)
	}
}

func validateName(verr *ValidationError, field, value string) {
	switch {
	case value == "":
		verr.Add(field, msgRequired)
	case utf8.RuneCountInString(value) > MaxNameLength:
		verr.Add(field, fmt.Sprintf("Ensure this value has at most %d characters.", MaxNameLength))
	}
}

func validateEmail(verr *ValidationError, field, email string) {
	if msg := validateEmailValue(email); msg != "" {
		verr.Add(field, msg)
	}
}

func validateEmailValue(email string) string {
	if email == "" {
		return msgRequired
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return msgInvalidEmail
	}
	return ""
}

func validateNewPassword(verr *ValidationError, field1, field2, password, password2 string) {
	switch {
	case password == "":
		verr.Add(field1, msgRequired)
	case utf8.RuneCountInString(password) < auth.MinPasswordLength:
		verr.Add(field1, fmt.Sprintf(msgPasswordTooShortF, auth.MinPasswordLength))
	}
	if password2 == "" {
		verr.Add(field2, msgRequired)
	} else if password != "" && password != password2 {
		verr.Add(field2, msgPasswordMismatch)
	}
}

// PurgeUnactivated deletes accounts that were never activated and are older
// than ttl. Superusers and accounts that have logged in are kept.
func (s *AccountService) PurgeUnactivated(ctx context.Context, ttl time.Duration) (int64, error) {
	n, err := s.queries.DeleteInactiveUsersCreatedBefore(ctx, time.Now().UTC().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("purging unactivated accounts: %w", err)
	}
	return n, nil
}
