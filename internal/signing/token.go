package signing

import (
	"crypto/rand"
	"encoding/base64"
)

// tokenBytes gives 256 bits of entropy; the encoded token is 43 characters.
// The token is the sole bearer credential for the review page, so it must
// come from a cryptographically secure source.
const tokenBytes = 32

// TokenLength is the length of an encoded secure token.
const TokenLength = 43

// NewSecureToken returns a URL-safe high-entropy token.
func NewSecureToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
