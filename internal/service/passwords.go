package service

import (
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
)

// Passwords hashes and verifies user passwords with argon2id.
type Passwords struct {
	params *argon2id.Params
}

func NewPasswords(params *argon2id.Params) *Passwords {
	if params == nil {
		params = argon2id.DefaultParams
	}
	return &Passwords{params: params}
}

func (p *Passwords) Hash(password string) (string, error) {
	hash, err := argon2id.CreateHash(password, p.params)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (p *Passwords) Matches(password, hash string) bool {
	if hash == "" {
		return false
	}
	ok, err := argon2id.ComparePasswordAndHash(password, hash)
	return err == nil && ok
}

// changedAt backdates a password change by one second so a token issued in
// the same second as the change is not rejected as stale.
func changedAt(now time.Time) time.Time {
	return now.Add(-time.Second)
}
