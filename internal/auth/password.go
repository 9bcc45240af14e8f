package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2id cost parameters used for new hashes.
const (
	hashTime    uint32 = 3
	hashMemory  uint32 = 64 * 1024 // KiB
	hashThreads uint8  = 1
	hashKeyLen  uint32 = 32
	hashSaltLen        = 16
)

// Bounds accepted when decoding a stored hash. argon2.IDKey panics below the
// minimums and allocates m KiB, so both ends are enforced before deriving.
const (
	maxHashTime   uint32 = 16
	maxHashMemory uint32 = 256 * 1024 // KiB
)

var errMalformedHash = errors.New("malformed password hash")

// HashPassword derives an argon2id hash of password with a random salt.
// The result is a PHC string: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>
func HashPassword(password string) (string, error) {
	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, hashTime, hashMemory, hashThreads, hashKeyLen)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, hashMemory, hashTime, hashThreads,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// VerifyPassword reports whether password matches the PHC-encoded argon2id hash.
// A hash that cannot be decoded is an error, not a mismatch.
func VerifyPassword(password, encoded string) (bool, error) {
	p, err := parseHash(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(p.key, candidate) == 1, nil
}

type parsedHash struct {
	time    uint32
	memory  uint32
	threads uint8
	salt    []byte
	key     []byte
}

func parseHash(encoded string) (parsedHash, error) {
	var p parsedHash

	// "", "argon2id", "v=19", "m=...,t=...,p=...", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return p, errMalformedHash
	}
	if parts[1] != "argon2id" {
		return p, fmt.Errorf("%w: unsupported algorithm %q", errMalformedHash, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, fmt.Errorf("%w: version: %v", errMalformedHash, err)
	}
	if version != argon2.Version {
		return p, fmt.Errorf("%w: unsupported version %d", errMalformedHash, version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, fmt.Errorf("%w: parameters: %v", errMalformedHash, err)
	}
	if p.time < 1 || p.time > maxHashTime {
		return p, fmt.Errorf("%w: time cost %d out of range", errMalformedHash, p.time)
	}
	if p.threads < 1 {
		return p, fmt.Errorf("%w: parallelism %d out of range", errMalformedHash, p.threads)
	}
	if p.memory < 8*uint32(p.threads) || p.memory > maxHashMemory {
		return p, fmt.Errorf("%w: memory cost %d KiB out of range", errMalformedHash, p.memory)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return p, fmt.Errorf("%w: salt: %v", errMalformedHash, err)
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return p, fmt.Errorf("%w: key: %v", errMalformedHash, err)
	}
	if len(p.key) == 0 {
		return p, fmt.Errorf("%w: empty key", errMalformedHash)
	}

	return p, nil
}
