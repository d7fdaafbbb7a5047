package model

import (
	"errors"
	"fmt"
	"net/mail"
)

const (
	MaxUsernameLength = 150
	MinPasswordLength = 8
)

var ErrUsernameEmpty = errors.New("username must not be empty")
var ErrUsernameTooLong = fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
var ErrUsernameInvalidChars = errors.New("username may contain only letters, digits and @/./+/-/_")
var ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
var ErrEmailInvalid = errors.New("enter a valid email address")

// ValidateUsername mirrors the backend's username rules: 1-150 ASCII letters,
// digits or @ . + - _ characters.
func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '@', r == '.', r == '+', r == '-', r == '_':
		default:
			return ErrUsernameInvalidChars
		}
	}
	return nil
}

// Registration is the payload of POST /api/auth/register.
type Registration struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks the registration locally before it is sent. The server
// remains authoritative; this only catches obvious mistakes early.
func (r Registration) Validate() map[string]error {
	errs := map[string]error{}
	if err := ValidateUsername(r.Username); err != nil {
		errs["username"] = err
	}
	if len(r.Password) < MinPasswordLength {
		errs["password"] = ErrPasswordTooShort
	}
	if r.Email != "" {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			errs["email"] = ErrEmailInvalid
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
