package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// OpaqueToken is a server-tracked random credential (refresh or password
// reset). Raw goes back to the client exactly once; the ledgers store only
// HashToken(Raw) so a leaked database row cannot be redeemed.
type OpaqueToken struct {
	Raw string    `json:"token"`
	Exp time.Time `json:"expires"`
}

// NewOpaqueToken returns a 48-byte random hex value expiring after ttl.
func NewOpaqueToken(ttl time.Duration) (OpaqueToken, error) {
	raw, err := randomHex(48) // 96 hex chars
	if err != nil {
		return OpaqueToken{}, err
	}
	return OpaqueToken{Raw: raw, Exp: time.Now().UTC().Add(ttl)}, nil
}

// HashToken returns the hex SHA-256 digest of a raw opaque token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
