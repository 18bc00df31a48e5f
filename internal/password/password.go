// Package password derives and verifies salted PBKDF2-HMAC-SHA256 hashes in
// the "salt$base64(key)" format.
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2 work factor.
	Iterations = 200_000
	saltBytes  = 16
	keyLength  = sha256.Size
	separator  = "$"
)

// Hash derives a hash of password. An empty salt is replaced by a fresh
// random 16-byte hex salt. The hex string itself is the KDF salt.
func Hash(password, salt string) (string, error) {
	if salt == "" {
		var buf [saltBytes]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return "", err
		}
		salt = hex.EncodeToString(buf[:])
	}
	return salt + separator + digest(password, salt), nil
}

// Verify reports whether candidate matches the stored hash.
// A stored value without a separator never matches.
func Verify(stored, candidate string) bool {
	salt, want, ok := strings.Cut(stored, separator)
	if !ok {
		return false
	}
	got := digest(candidate, salt)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func digest(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), Iterations, keyLength, sha256.New)
	return base64.StdEncoding.EncodeToString(key)
}
