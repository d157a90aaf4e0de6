package identity_test

import (
	"strings"
	"testing"

	identity "github.com/boxworks/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
			wantErr:  false,
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := identity.HashPassword(tt.password)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.NotEmpty(t, hash)

			err = identity.ComparePasswordAndHash(tt.password, hash)
			assert.NoError(t, err)
		})
	}
}

func TestComparePasswordAndHash(t *testing.T) {
	password := "testPassword123!"
	hash, err := identity.HashPassword(password)
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		wantErr  bool
	}{
		{
			name:     "Matching password",
			password: password,
			hash:     hash,
			wantErr:  false,
		},
		{
			name:     "Wrong password",
			password: "wrongPassword",
			hash:     hash,
			wantErr:  true,
		},
		{
			name:     "Invalid hash",
			password: password,
			hash:     "invalidhash",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := identity.ComparePasswordAndHash(tt.password, tt.hash)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.hash == hash {
					assert.Equal(t, identity.ErrMismatchedHashAndPassword, err)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHashRefreshToken(t *testing.T) {
	// signed JWTs run well past bcrypt's 72 byte input limit
	token := strings.Repeat("eyJhbGciOiJIUzI1NiJ9.", 20)

	hash, err := identity.HashRefreshToken(token)
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.NoError(t, identity.CompareRefreshTokenAndHash(token, hash))
	assert.Equal(t, identity.ErrMismatchedHashAndPassword,
		identity.CompareRefreshTokenAndHash(token+"tampered", hash))
}

func TestHashRefreshTokenEmpty(t *testing.T) {
	_, err := identity.HashRefreshToken("")
	assert.Error(t, err)
}

func TestHashRefreshTokenLongInputsDiffer(t *testing.T) {
	// two long tokens sharing a 72 byte prefix must not verify against
	// each other's hash
	prefix := strings.Repeat("a", 72)
	first := prefix + "first"
	second := prefix + "second"

	hash, err := identity.HashRefreshToken(first)
	require.NoError(t, err)

	assert.NoError(t, identity.CompareRefreshTokenAndHash(first, hash))
	assert.Error(t, identity.CompareRefreshTokenAndHash(second, hash))
}
