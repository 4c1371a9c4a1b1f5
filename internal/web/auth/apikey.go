package auth

import "crypto/subtle"

// KeySet holds the static API keys accepted by the api_key auth method.
type KeySet struct {
	keys []string
}

// NewKeySet creates a key set from the configured keys.
func NewKeySet(keys []string) *KeySet {
	return &KeySet{keys: keys}
}

// Verify reports whether candidate matches any configured key. Every key is
// compared in constant time regardless of early matches.
func (s *KeySet) Verify(candidate string) bool {
	matched := false
	for _, key := range s.keys {
		if len(key) == len(candidate) &&
			subtle.ConstantTimeCompare([]byte(key), []byte(candidate)) == 1 {
			matched = true
		}
	}
	return matched
}
