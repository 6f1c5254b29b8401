package unsubscribe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
)

// base64Prefix marks a signing secret supplied as base64 rather than raw
// text, so binary keys can live in env vars.
const base64Prefix = "base64:"

// Signer derives deterministic, verifiable unsubscribe links from a
// symmetric key. It is stateless: no table backs it, verification is pure
// recomputation.
type Signer struct {
	key     []byte
	baseURL string
}

// NewSigner builds a signer from the configured secret. A "base64:" prefix
// means the remainder is the base64-encoded key.
func NewSigner(secret, baseURL string) *Signer {
	key := []byte(secret)
	if strings.HasPrefix(secret, base64Prefix) {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, base64Prefix))
		if err != nil {
			// Fall back to the raw bytes rather than silently signing with
			// an empty key.
			log.Printf("[Unsubscribe] signing secret has base64: prefix but does not decode: %v", err)
		} else {
			key = decoded
		}
	}
	return &Signer{key: key, baseURL: strings.TrimRight(baseURL, "/")}
}

// LinkFor returns the signed unsubscribe URL for a contact.
func (s *Signer) LinkFor(contactID string) string {
	return fmt.Sprintf("%s/v1/unsubscribe/%s/%s", s.baseURL, contactID, s.sign(contactID))
}

// Verify reports whether the signature matches the contact id. Comparison
// is constant-time; a mismatch is invalid, never a partial match.
func (s *Signer) Verify(contactID, signature string) bool {
	expected := s.sign(contactID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *Signer) sign(contactID string) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(contactID))
	return hex.EncodeToString(h.Sum(nil))
}
