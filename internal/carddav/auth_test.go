package carddav

import (
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	phc, err := HashPassword("secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(phc, "$argon2id$v=19$"), "got %q", phc)

	assert.NoError(t, VerifyPassword("secret", phc))
	assert.Error(t, VerifyPassword("wrong", phc))
}

func TestVerifyPasswordRejectsMalformedPHC(t *testing.T) {
	for _, phc := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA",
	} {
		assert.Error(t, VerifyPassword("secret", phc), "phc %q", phc)
	}
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	a, err := HashPassword("secret")
	require.NoError(t, err)
	b, err := HashPassword("secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestCheckAuth(t *testing.T) {
	phc, err := HashPassword("secret")
	require.NoError(t, err)
	creds := Credentials{Username: "user", PasswordHash: phc}

	tests := []struct {
		name   string
		header string
		ok     bool
	}{
		{"valid", basicAuth("user", "secret"), true},
		{"wrong password", basicAuth("user", "nope"), false},
		{"wrong username", basicAuth("admin", "secret"), false},
		{"missing header", "", false},
		{"not basic", "Bearer abc", false},
		{"bad base64", "Basic !!!", false},
		{"no colon", "Basic " + base64.StdEncoding.EncodeToString([]byte("usersecret")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/dav/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			err := checkAuth(r, creds)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
