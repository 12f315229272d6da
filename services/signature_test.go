package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestValidSignature(t *testing.T) {
	body := []byte(`{"ref":"refs/heads/main"}`)
	secret := "top-secret"

	assert.True(t, ValidSignature(body, secret, signBody(body, secret)))
}

func TestValidSignatureRejectsAlteredBody(t *testing.T) {
	body := []byte(`{"ref":"refs/heads/main"}`)
	secret := "top-secret"
	sig := signBody(body, secret)

	// Flip a single byte.
	altered := make([]byte, len(body))
	copy(altered, body)
	altered[0] = '['

	assert.False(t, ValidSignature(altered, secret, sig))
}

func TestValidSignatureRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"ref":"refs/heads/main"}`)
	sig := signBody(body, "other-secret")

	assert.False(t, ValidSignature(body, "top-secret", sig))
}

func TestValidSignatureFailsClosed(t *testing.T) {
	body := []byte(`{}`)
	secret := "top-secret"

	assert.False(t, ValidSignature(body, secret, ""), "missing header must be invalid")
	assert.False(t, ValidSignature(body, "", signBody(body, secret)), "missing secret must be invalid")
	assert.False(t, ValidSignature(nil, secret, signBody(nil, secret)), "empty body must be invalid")
}
