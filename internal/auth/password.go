package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword compares pw against a stored hash. Besides bcrypt it accepts
// the older hex sha256(password+salt) digests when legacySalt is set;
// needsUpgrade reports that the caller should re-hash with bcrypt.
func CheckPassword(hash, pw, legacySalt string) (ok, needsUpgrade bool) {
	if strings.HasPrefix(hash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil, false
	}
	if legacySalt == "" || len(hash) != sha256.Size*2 {
		return false, false
	}
	if subtle.ConstantTimeCompare([]byte(LegacyDigest(pw, legacySalt)), []byte(strings.ToLower(hash))) != 1 {
		return false, false
	}
	return true, true
}

// LegacyDigest is the constant-salt digest older rows were stored with.
func LegacyDigest(pw, salt string) string {
	sum := sha256.Sum256([]byte(pw + salt))
	return hex.EncodeToString(sum[:])
}
