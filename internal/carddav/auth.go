package carddav

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Credentials are the single accepted identity for this server instance.
type Credentials struct {
	Username string
	// PasswordHash is an Argon2id PHC string, e.g. "$argon2id$v=19$m=…".
	PasswordHash string
}

// checkAuth verifies the Basic Authorization header against creds. Any
// malformed or mismatching header yields errUnauthorized; the caller adds
// the WWW-Authenticate challenge.
func checkAuth(r *http.Request, creds Credentials) error {
	header := r.Header.Get("Authorization")
	encoded, ok := strings.CutPrefix(header, "Basic ")
	if !ok {
		return errUnauthorized
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return errUnauthorized
	}
	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return errUnauthorized
	}

	if subtle.ConstantTimeCompare([]byte(username), []byte(creds.Username)) != 1 {
		return errUnauthorized
	}
	if err := VerifyPassword(password, creds.PasswordHash); err != nil {
		return errUnauthorized
	}
	return nil
}

// argon2Params are the hashing parameters used for newly generated PHC
// strings. Verification always honours the parameters encoded in the string.
type argon2Params struct {
	memory  uint32 // KiB
	time    uint32
	threads uint8
	keyLen  uint32
}

var defaultArgon2 = argon2Params{memory: 19456, time: 2, threads: 1, keyLen: 32}

var errBadHash = errors.New("malformed argon2 PHC string")

// HashPassword produces an Argon2id PHC string for a password, suitable for
// the auth_password_hash config value.
func HashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	p := defaultArgon2
	key := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword checks a password against an Argon2id PHC string, using the
// parameters encoded in the string and a constant-time comparison.
func VerifyPassword(password, phc string) error {
	p, salt, want, err := parsePHC(phc)
	if err != nil {
		return err
	}

	got := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return errors.New("password mismatch")
	}
	return nil
}

// parsePHC splits "$argon2id$v=19$m=…,t=…,p=…$salt$hash".
func parsePHC(phc string) (argon2Params, []byte, []byte, error) {
	parts := strings.Split(phc, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return argon2Params{}, nil, nil, errBadHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argon2Params{}, nil, nil, errBadHash
	}

	var p argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return argon2Params{}, nil, nil, errBadHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return argon2Params{}, nil, nil, errBadHash
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return argon2Params{}, nil, nil, errBadHash
	}

	return p, salt, hash, nil
}
