package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHash(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{name: "regular secret", password: "password123"},
		{name: "secret with special chars", password: "p@ssw0rd!@#$%^&*()"},
		{name: "fifty char secret", password: strings.Repeat("a", SecretLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotHash, err := GetHash(tt.password)
			require.NoError(t, err)
			assert.NotEmpty(t, gotHash)
			assert.NotEqual(t, tt.password, gotHash)
			assert.NoError(t, CompareHash(gotHash, tt.password))
		})
	}
}

func TestCompareHash_Mismatch(t *testing.T) {
	hash, err := GetHash("correct_password")
	require.NoError(t, err)

	assert.Error(t, CompareHash(hash, "wrong_password"))
	assert.Error(t, CompareHash("not-a-bcrypt-hash", "correct_password"))
}

func TestRandomSecret(t *testing.T) {
	a, err := RandomSecret(SecretLength)
	require.NoError(t, err)
	b, err := RandomSecret(SecretLength)
	require.NoError(t, err)

	assert.Len(t, a, SecretLength)
	assert.NotEqual(t, a, b)
	for _, r := range a {
		assert.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q", r)
	}
}

func TestNewUnusableHash(t *testing.T) {
	h1, err := NewUnusableHash()
	require.NoError(t, err)
	h2, err := NewUnusableHash()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(h1, "$2a$"))
	assert.NotEqual(t, h1, h2)
	assert.Error(t, CompareHash(h1, ""))
}
