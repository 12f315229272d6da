package services

import (
	"github.com/google/go-github/v71/github"
)

// ValidSignature checks the X-Hub-Signature-256 digest of a webhook against
// the raw request body. It fails closed: missing secret, missing header or
// empty body all count as invalid. The caller must pass the exact bytes read
// from the wire, not a re-serialized payload.
func ValidSignature(body []byte, secret, signatureHeader string) bool {
	if secret == "" || signatureHeader == "" || len(body) == 0 {
		return false
	}
	return github.ValidateSignature(signatureHeader, body, []byte(secret)) == nil
}
