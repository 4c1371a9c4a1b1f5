package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	token, err := svc.Issue("user-42", []string{"admin"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", Subject(claims))

	roles, ok := claims["roles"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, "admin", roles[0])
}

func TestTokenServiceRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenService("secret-a", time.Hour).Issue("user-1", nil)
	require.NoError(t, err)

	_, err = NewTokenService("secret-b", time.Hour).Verify(token)
	assert.Error(t, err)
}

func TestTokenServiceRejectsExpired(t *testing.T) {
	token, err := NewTokenService("secret", -time.Minute).Issue("user-1", nil)
	require.NoError(t, err)

	_, err = NewTokenService("secret", -time.Minute).Verify(token)
	assert.Error(t, err)
}

func TestTokenServiceRejectsGarbage(t *testing.T) {
	_, err := NewTokenService("secret", time.Hour).Verify("not.a.token")
	assert.Error(t, err)
}

func TestUserTableAuthenticate(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret", hash)

	users := UserTable{"admin": hash}
	assert.True(t, users.Authenticate("admin", "s3cret"))
	assert.False(t, users.Authenticate("admin", "wrong"))
	assert.False(t, users.Authenticate("nobody", "s3cret"))
}

func TestUserTableEmpty(t *testing.T) {
	assert.False(t, UserTable{}.Authenticate("admin", "s3cret"))
	assert.False(t, UserTable(nil).Authenticate("admin", ""))
}

func TestHashPasswordTooLong(t *testing.T) {
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	_, err := HashPassword(string(long))
	assert.Error(t, err)
}

func TestKeySetVerify(t *testing.T) {
	keys := NewKeySet([]string{"alpha", "bravo"})

	assert.True(t, keys.Verify("alpha"))
	assert.True(t, keys.Verify("bravo"))
	assert.False(t, keys.Verify("charlie"))
	assert.False(t, keys.Verify(""))
}

func TestKeySetEmpty(t *testing.T) {
	assert.False(t, NewKeySet(nil).Verify("anything"))
}
