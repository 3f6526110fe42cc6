package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
)

// ownerTokenBytes gives 256 bits of entropy
const ownerTokenBytes = 32

// GenerateOwnerToken returns a hex-encoded secret from the system CSPRNG
func GenerateOwnerToken() (string, error) {
	buf := make([]byte, ownerTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGenerator, err)
	}
	return hex.EncodeToString(buf), nil
}

// HashOwnerToken returns the bcrypt digest stored in place of the token
func HashOwnerToken(token string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckOwnerToken compares a presented token against its stored digest in constant time
func CheckOwnerToken(hash, token string) bool {
	if hash == "" || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

// NewULID returns a lexicographically sortable id stamped with t
func NewULID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.Monotonic(rand.Reader, 0)).String()
}
