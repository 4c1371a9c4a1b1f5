package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// UserTable maps usernames to bcrypt password hashes, as configured under
// auth.users for the basic method.
type UserTable map[string]string

// Authenticate reports whether the named user exists and the password
// matches its stored hash. Unknown users still pay a comparison against an
// invalid hash, keeping the timing of both outcomes similar.
func (t UserTable) Authenticate(username, password string) bool {
	hash, ok := t[username]
	if !ok {
		hash = "$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinva"
	}
	match := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	return ok && match
}

// HashPassword produces a bcrypt hash suitable for a UserTable entry. bcrypt
// only reads the first 72 bytes, so longer passwords are rejected rather
// than silently truncated.
func HashPassword(password string) (string, error) {
	if n := len(password); n > 72 {
		return "", fmt.Errorf("password is %d bytes, bcrypt accepts at most 72", n)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
