package node

import "testing"

func TestGenerateToken_UniqueAndNonEmpty(t *testing.T) {
	a, err := generateToken()
	if err != nil {
		t.Fatalf("generateToken: %v", err)
	}
	b, err := generateToken()
	if err != nil {
		t.Fatalf("generateToken: %v", err)
	}

	if a == "" || b == "" {
		t.Fatal("generated token must not be empty")
	}
	if a == b {
		t.Fatal("two rotations must not produce the same token")
	}
}
