package utils

import (
	"encoding/hex"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestGenerateOwnerToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := GenerateOwnerToken()
		if err != nil {
			t.Fatalf("GenerateOwnerToken() error = %v", err)
		}
		raw, err := hex.DecodeString(token)
		if err != nil {
			t.Fatalf("token %q is not hex: %v", token, err)
		}
		if len(raw) != 32 {
			t.Errorf("token carries %d bytes, want 32", len(raw))
		}
		if seen[token] {
			t.Errorf("Duplicate token generated: %s", token)
		}
		seen[token] = true
	}
}

func TestOwnerTokenHashing(t *testing.T) {
	token, err := GenerateOwnerToken()
	if err != nil {
		t.Fatalf("GenerateOwnerToken() error = %v", err)
	}

	hash, err := HashOwnerToken(token, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashOwnerToken() error = %v", err)
	}
	if hash == token {
		t.Fatal("hash equals the clear token")
	}

	if !CheckOwnerToken(hash, token) {
		t.Error("CheckOwnerToken() rejected the right token")
	}
	if CheckOwnerToken(hash, token[:len(token)-1]+"0") && token[len(token)-1] != '0' {
		t.Error("CheckOwnerToken() accepted a wrong token")
	}
	if CheckOwnerToken(hash, "") {
		t.Error("CheckOwnerToken() accepted an empty token")
	}
	if CheckOwnerToken("", token) {
		t.Error("CheckOwnerToken() accepted a token without a hash")
	}
}

func TestNewULID_SortsByTime(t *testing.T) {
	earlier := NewULID(time.Unix(1700000000, 0))
	later := NewULID(time.Unix(1700000001, 0))

	if len(earlier) != 26 {
		t.Errorf("ULID length = %d, want 26", len(earlier))
	}
	if !(earlier < later) {
		t.Errorf("ULID %s should sort before %s", earlier, later)
	}
}
