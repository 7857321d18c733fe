package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestVerifySignature_LiteralSecret(t *testing.T) {
	if !VerifySignature([]byte(`{"event":"user.created"}`), "shh", "shh") {
		t.Fatal("literal secret match should verify")
	}
}

func TestVerifySignature_HMAC(t *testing.T) {
	body := []byte(`{"event":"node.updated"}`)
	mac := hmac.New(sha256.New, []byte("shh"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	if !VerifySignature(body, sig, "shh") {
		t.Fatal("valid HMAC signature should verify")
	}
}

func TestVerifySignature_Rejects(t *testing.T) {
	body := []byte(`{"event":"node.updated"}`)
	if VerifySignature(body, "wrong", "shh") {
		t.Fatal("mismatched signature should not verify")
	}
	if VerifySignature(body, "shh", "") {
		t.Fatal("empty secret should never verify")
	}
	if VerifySignature(body, "", "shh") {
		t.Fatal("empty signature should never verify")
	}
}
