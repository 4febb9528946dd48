package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher is the one-way, salted primitive used for stored credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	// Handles reports whether encoded was produced by this hasher.
	Handles(encoded string) bool
}

// Argon2Params are the Argon2id cost parameters.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

// DefaultArgon2Params follows the OWASP recommendation.
var DefaultArgon2Params = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 1,
	KeyLen:  32,
	SaltLen: 16,
}

const argonPrefix = "$argon2id$"

// Argon2idHasher hashes into PHC string format:
// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher returns a hasher using params.
func NewArgon2idHasher(params Argon2Params) *Argon2idHasher {
	return &Argon2idHasher{params: params}
}

// Hash hashes a plaintext password with a fresh random salt.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: argon2id salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)
	return phcHash{params: h.params, salt: salt, key: key}.String(), nil
}

// Verify checks password against an encoded hash, using the cost recorded in
// the hash rather than the hasher's current params.
func (h *Argon2idHasher) Verify(password, encoded string) (bool, error) {
	stored, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	p := stored.params
	candidate := argon2.IDKey([]byte(password), stored.salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(stored.key, candidate) == 1, nil
}

// Handles reports whether encoded is an Argon2id PHC string.
func (h *Argon2idHasher) Handles(encoded string) bool {
	return strings.HasPrefix(encoded, argonPrefix)
}

var errMalformedHash = errors.New("auth: malformed argon2id hash")

// phcHash is one decoded $argon2id$ string.
type phcHash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func (ph phcHash) String() string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s", argonPrefix, argon2.Version,
		ph.params.Memory, ph.params.Time, ph.params.Threads,
		b64.EncodeToString(ph.salt), b64.EncodeToString(ph.key))
}

func parsePHC(encoded string) (phcHash, error) {
	var ph phcHash
	rest, ok := strings.CutPrefix(encoded, argonPrefix)
	if !ok {
		return ph, errMalformedHash
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return ph, errMalformedHash
	}
	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil || version != argon2.Version {
		return ph, fmt.Errorf("%w: version %q", errMalformedHash, fields[0])
	}
	p := &ph.params
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return ph, fmt.Errorf("%w: params %q", errMalformedHash, fields[1])
	}
	var err error
	if ph.salt, err = base64.RawStdEncoding.DecodeString(fields[2]); err != nil {
		return ph, fmt.Errorf("%w: salt", errMalformedHash)
	}
	if ph.key, err = base64.RawStdEncoding.DecodeString(fields[3]); err != nil || len(ph.key) == 0 {
		return ph, fmt.Errorf("%w: key", errMalformedHash)
	}
	p.KeyLen = uint32(len(ph.key))
	p.SaltLen = uint32(len(ph.salt))
	return ph, nil
}

// BcryptHasher verifies (and can produce) bcrypt hashes.
type BcryptHasher struct {
	Cost int
}

// Hash hashes password with bcrypt.
func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(b), nil
}

// Verify compares password with a bcrypt hash.
func (h BcryptHasher) Verify(password, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// Handles reports whether encoded looks like a bcrypt hash.
func (h BcryptHasher) Handles(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") || strings.HasPrefix(encoded, "$2b$") || strings.HasPrefix(encoded, "$2y$")
}

// MultiHasher hashes with Primary and verifies with whichever hasher
// recognizes the stored encoding.
type MultiHasher struct {
	Primary PasswordHasher
	Legacy  []PasswordHasher
}

// Hash delegates to the primary hasher.
func (m MultiHasher) Hash(password string) (string, error) {
	return m.Primary.Hash(password)
}

// Verify picks the hasher by encoding prefix.
func (m MultiHasher) Verify(password, encoded string) (bool, error) {
	if m.Primary.Handles(encoded) {
		return m.Primary.Verify(password, encoded)
	}
	for _, h := range m.Legacy {
		if h.Handles(encoded) {
			return h.Verify(password, encoded)
		}
	}
	return false, errors.New("unrecognized password hash format")
}

// Handles reports whether any configured hasher recognizes encoded.
func (m MultiHasher) Handles(encoded string) bool {
	if m.Primary.Handles(encoded) {
		return true
	}
	for _, h := range m.Legacy {
		if h.Handles(encoded) {
			return true
		}
	}
	return false
}

// NewDefaultHasher hashes with Argon2id and still accepts bcrypt hashes.
func NewDefaultHasher() MultiHasher {
	return MultiHasher{
		Primary: NewArgon2idHasher(DefaultArgon2Params),
		Legacy:  []PasswordHasher{BcryptHasher{}},
	}
}
