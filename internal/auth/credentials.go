package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Credentials turns a password into its stored form and checks a candidate
// password against it. The identity store never compares passwords itself.
type Credentials interface {
	// Seal returns the form of password that is persisted with the user.
	Seal(password string) (string, error)
	// Verify reports whether password matches the stored form.
	Verify(stored, password string) bool
}

// Scheme names a Credentials implementation.
const (
	SchemePlain  = "plain"
	SchemeBcrypt = "bcrypt"
)

// NewCredentials returns the Credentials for scheme.
func NewCredentials(scheme string) (Credentials, error) {
	switch scheme {
	case SchemePlain, "":
		return Plaintext{}, nil
	case SchemeBcrypt:
		return Bcrypt{Cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("unknown password scheme: %q", scheme)
	}
}

// Plaintext stores passwords verbatim and compares them exactly.
// It exists for compatibility with tables written that way.
type Plaintext struct{}

func (Plaintext) Seal(password string) (string, error) { return password, nil }

func (Plaintext) Verify(stored, password string) bool { return stored == password }

// Bcrypt stores bcrypt hashes.
type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Seal(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (Bcrypt) Verify(stored, password string) bool {
	return CheckPassword(password, stored)
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
