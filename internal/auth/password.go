package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// digestPrefix tags digests produced by Hasher. The password is reduced with
// SHA-256 before bcrypt so inputs longer than 72 bytes keep all their entropy.
const digestPrefix = "bcrypt-sha256$"

// maxVerifyCost bounds the work a stored digest can request on verification.
const maxVerifyCost = 14

type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > maxVerifyCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a self-describing digest: algorithm tag, bcrypt cost, salt and
// hash packed into one string.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	out, err := bcrypt.GenerateFromPassword(prehash(password), h.cost)
	if err != nil {
		return "", err
	}
	return digestPrefix + string(out), nil
}

// Verify reports whether password matches digest. Malformed digests yield false.
func (h *Hasher) Verify(password, digest string) bool {
	inner, ok := strings.CutPrefix(digest, digestPrefix)
	if !ok || !canonicalBcrypt(inner) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(inner), prehash(password)) == nil
}

func prehash(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	// base64 keeps the bcrypt input free of NUL bytes; 44 bytes < 72
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

const bcryptAlphabet = "./ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// canonicalBcrypt accepts only the exact "$2a$NN$<22 salt><31 hash>" form this
// package writes. bcrypt itself tolerates other minor versions and non-zero
// padding bits in the salt, which would let distinct strings verify alike.
func canonicalBcrypt(s string) bool {
	if len(s) != 60 || !strings.HasPrefix(s, "$2a$") || s[6] != '$' {
		return false
	}
	cost, err := strconv.Atoi(s[4:6])
	if err != nil || cost < bcrypt.MinCost || cost > maxVerifyCost {
		return false
	}
	// 16 salt bytes leave 4 unused bits in the last of 22 characters,
	// 23 hash bytes leave 2 unused bits in the last of 31.
	saltLast := strings.IndexByte(bcryptAlphabet, s[28])
	hashLast := strings.IndexByte(bcryptAlphabet, s[59])
	return saltLast >= 0 && saltLast%16 == 0 && hashLast >= 0 && hashLast%4 == 0
}
