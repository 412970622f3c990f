package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2Params are the Argon2id costs. Memory is in KiB.
type Argon2Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

var (
	// DefaultArgon2Params is the server-side cost profile.
	DefaultArgon2Params = Argon2Params{Time: 1, Memory: 64 * 1024, Threads: 4}
	// PINArgon2Params is the lighter profile the client uses for PINs.
	PINArgon2Params = Argon2Params{Time: 2, Memory: 19 * 1024, Threads: 1}
)

const (
	argon2SaltLen = 16
	argon2KeyLen  = 32
)

var errMalformedHash = errors.New("malformed argon2id hash")

var b64 = base64.RawStdEncoding

// Argon2HashService implements ports.HashService. Hashes use the PHC string
// format, $argon2id$v=19$m=..,t=..,p=..$salt$key, so Verify can check
// hashes produced under other cost profiles.
type Argon2HashService struct {
	params Argon2Params
}

func NewArgon2HashService() *Argon2HashService {
	return NewArgon2HashServiceWithParams(DefaultArgon2Params)
}

func NewArgon2HashServiceWithParams(p Argon2Params) *Argon2HashService {
	return &Argon2HashService{params: p}
}

func (s *Argon2HashService) Hash(secret string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("reading salt: %w", err)
	}
	h := argon2Hash{params: s.params, salt: salt}
	h.key = h.derive(secret, argon2KeyLen)
	return h.String(), nil
}

func (s *Argon2HashService) Verify(secret, encoded string) (bool, error) {
	h, err := parseArgon2Hash(encoded)
	if err != nil {
		return false, err
	}
	candidate := h.derive(secret, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(candidate, h.key) == 1, nil
}

type argon2Hash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func (h argon2Hash) derive(secret string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(secret), h.salt, h.params.Time, h.params.Memory, h.params.Threads, keyLen)
}

func (h argon2Hash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Threads,
		b64.EncodeToString(h.salt), b64.EncodeToString(h.key))
}

func parseArgon2Hash(encoded string) (argon2Hash, error) {
	var h argon2Hash
	fields := strings.Split(strings.TrimPrefix(encoded, "$"), "$")
	if len(fields) != 5 || !strings.HasPrefix(encoded, "$") {
		return h, errMalformedHash
	}
	alg, version, costs, salt, key := fields[0], fields[1], fields[2], fields[3], fields[4]

	if alg != "argon2id" {
		return h, fmt.Errorf("%w: algorithm %q", errMalformedHash, alg)
	}
	if version != fmt.Sprintf("v=%d", argon2.Version) {
		return h, fmt.Errorf("%w: version %q", errMalformedHash, version)
	}
	if _, err := fmt.Sscanf(costs, "m=%d,t=%d,p=%d", &h.params.Memory, &h.params.Time, &h.params.Threads); err != nil {
		return h, fmt.Errorf("%w: costs %q", errMalformedHash, costs)
	}

	var err error
	if h.salt, err = b64.DecodeString(salt); err != nil {
		return h, fmt.Errorf("%w: salt: %v", errMalformedHash, err)
	}
	if h.key, err = b64.DecodeString(key); err != nil || len(h.key) == 0 {
		return h, fmt.Errorf("%w: key", errMalformedHash)
	}
	return h, nil
}
