// Package cryptoutil implements the account-security primitives the
// protocol fixes on the wire: opaque bearer tokens, the salted SHA3-256
// password scheme, and base64 framing of both.
package cryptoutil

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"

	"golang.org/x/crypto/sha3"
)

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateToken draws a 48-character alphanumeric bearer token. Entropy is
// a crypto/rand draw per character: stronger than the reference
// implementation's mt19937, but the protocol does not depend on token
// entropy being bounded in either direction (spec §9).
func GenerateToken() (string, error) {
	const length = 48
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(tokenAlphabet))))
		if err != nil {
			return "", err
		}
		buf[i] = tokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// GenerateSalt draws 64 random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, 64)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// ServerHash computes SHA3-256(clientHash || salt), the password-at-rest
// representation submitted by the client and verified on every login.
func ServerHash(clientHash, salt []byte) []byte {
	h := sha3.Sum256(append(append([]byte{}, clientHash...), salt...))
	return h[:]
}

func B64Encode(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func B64Decode(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }
