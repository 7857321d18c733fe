// Package webhook implements the inbound control-plane event listener:
// signature verification (HMAC, constant-time compare) and event decoding.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
)

const signatureHeader = "X-Remnawave-Signature"

// VerifySignature reports whether sig authenticates body under secret. A
// signature is accepted two ways: either it equals the shared secret
// literally, or it is the hex-encoded HMAC-SHA256 of body keyed by secret.
// Both comparisons are constant-time. An empty secret accepts nothing;
// VerifyMiddleware and Handler skip this check entirely when no secret is
// configured.
func VerifySignature(body []byte, sig, secret string) bool {
	if secret == "" || sig == "" {
		return false
	}

	if hmac.Equal([]byte(sig), []byte(secret)) {
		return true
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(expected))
}

// VerifyMiddleware rejects any request whose X-Remnawave-Signature header
// does not authenticate the request body against secret. If secret is
// empty, verification is skipped (dev mode).
func VerifyMiddleware(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if secret == "" {
			next.ServeHTTP(w, r)
			return
		}

		body, ok := readAndRestoreBody(r)
		if !ok {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		sig := r.Header.Get(signatureHeader)
		if !VerifySignature(body, sig, secret) {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
