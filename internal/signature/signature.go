// ABOUTME: Webhook signature verification for the LINE messaging platform.
// ABOUTME: Computes HMAC-SHA256 over the raw request body and compares in constant time.

package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Sign computes the base64-encoded HMAC-SHA256 of body keyed by secret.
// This is what the platform places in the X-Line-Signature header.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether header is a valid signature for body under secret.
// An empty secret or header is never valid. All failure paths collapse to
// false; callers treat false as "unauthenticated" and nothing more.
func Verify(body []byte, header, secret string) bool {
	if secret == "" || header == "" {
		return false
	}
	expected := Sign(body, secret)
	return hmac.Equal([]byte(expected), []byte(header))
}
