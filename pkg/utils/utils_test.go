package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = []byte("0123456789abcdef0123456789abcdef")

func TestEncryptDecrypt(t *testing.T) {
	sealed, err := Encrypt([]byte("access-token"), key)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "access-token")

	again, err := Encrypt([]byte("access-token"), key)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again)

	plain, err := Decrypt(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, "access-token", plain)

	_, err = Decrypt(sealed, []byte("fedcba9876543210fedcba9876543210"))
	assert.Error(t, err)

	_, err = Decrypt("AAAA", key)
	assert.Error(t, err)

	_, err = Encrypt([]byte("x"), []byte("short"))
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	token, err := GenerateToken("secret", "42", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID)
	assert.Equal(t, issuer, claims.Issuer)

	_, err = ValidateToken("other", token)
	assert.Error(t, err)

	expired, err := GenerateToken("secret", "42", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken("secret", expired)
	assert.Error(t, err)
}
