package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id cost parameters for newly hashed passwords (OWASP 2025
// baseline). Verification reads the costs back out of the stored PHC
// string, so these can be raised without invalidating existing hashes.
const (
	hashPasses  uint32 = 3
	hashMemory  uint32 = 64 * 1024 // KiB
	hashLanes   uint8  = 1
	hashSaltLen        = 16
	hashLen     uint32 = 32
)

// phcHash is a decoded $argon2id$ PHC string.
type phcHash struct {
	memory uint32
	passes uint32
	lanes  uint8
	salt   []byte
	digest []byte
}

// HashPassword derives an Argon2id hash of password and encodes it as a
// PHC string ($argon2id$v=19$m=...,t=...,p=...$<salt>$<digest>), the form
// stored in config.yaml for the operator account.
func HashPassword(password string) (string, error) {
	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: generating salt: %w", err)
	}

	digest := argon2.IDKey([]byte(password), salt, hashPasses, hashMemory, hashLanes, hashLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, hashMemory, hashPasses, hashLanes,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest))
	return encoded, nil
}

// VerifyPassword reports whether password matches the stored PHC hash.
// The comparison is constant time; an error means the stored hash could
// not be decoded, not that the password was wrong.
func VerifyPassword(password, stored string) (bool, error) {
	h, err := parsePHC(stored)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), h.salt, h.passes, h.memory, h.lanes,
		uint32(len(h.digest))) //nolint:gosec // G115: digest length is bounded by the PHC field
	return subtle.ConstantTimeCompare(h.digest, candidate) == 1, nil
}

// parsePHC decodes an $argon2id$ PHC string. Other PHC algorithms are
// rejected; the daemon only ever writes argon2id.
func parsePHC(stored string) (phcHash, error) {
	var h phcHash

	fields := strings.Split(stored, "$")
	if len(fields) != 6 || fields[0] != "" {
		return h, fmt.Errorf("auth: malformed password hash")
	}
	algo, version, costs, rawSalt, rawDigest := fields[1], fields[2], fields[3], fields[4], fields[5]

	if algo != "argon2id" {
		return h, fmt.Errorf("auth: unsupported hash algorithm %q", algo)
	}
	if !strings.HasPrefix(version, "v=") {
		return h, fmt.Errorf("auth: malformed password hash version")
	}

	if _, err := fmt.Sscanf(costs, "m=%d,t=%d,p=%d", &h.memory, &h.passes, &h.lanes); err != nil {
		return h, fmt.Errorf("auth: parsing hash costs: %w", err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(rawSalt); err != nil {
		return h, fmt.Errorf("auth: decoding salt: %w", err)
	}
	if h.digest, err = base64.RawStdEncoding.DecodeString(rawDigest); err != nil {
		return h, fmt.Errorf("auth: decoding digest: %w", err)
	}
	return h, nil
}
