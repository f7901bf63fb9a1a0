// Package credential stores a user's password as a salted hash and verifies
// candidate passwords against it. Plaintext passwords are never retained.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/tinoosan/bankledger/internal/errs"
)

// SaltSize is the width of every generated salt in bytes.
const SaltSize = 16

// Algorithm names a hashing scheme as persisted alongside the hash.
type Algorithm string

const (
	AlgorithmSHA256   Algorithm = "sha256"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// Hasher derives a password hash from a salt and a plaintext password.
type Hasher interface {
	Algorithm() Algorithm
	Hash(salt []byte, password string) []byte
}

// SHA256 hashes salt ‖ password with a single SHA-256 pass.
type SHA256 struct{}

func (SHA256) Algorithm() Algorithm { return AlgorithmSHA256 }

func (SHA256) Hash(salt []byte, password string) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(password))
	return h.Sum(nil)
}

// Argon2id derives the hash with argon2id keyed by the same salt.
// Parameters are fixed (RFC 9106 second recommended set) since they are not persisted.
type Argon2id struct{}

const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32
)

func (Argon2id) Algorithm() Algorithm { return AlgorithmArgon2id }

func (Argon2id) Hash(salt []byte, password string) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// Lookup resolves a persisted algorithm name. The empty name means sha256,
// which is what documents written without the field used.
func Lookup(name string) (Hasher, error) {
	switch Algorithm(name) {
	case "", AlgorithmSHA256:
		return SHA256{}, nil
	case AlgorithmArgon2id:
		return Argon2id{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown hash algorithm %q", errs.ErrInvalid, name)
	}
}

// Credential is the salted-hash form of one user's password.
type Credential struct {
	Salt      []byte
	Hash      []byte
	Algorithm Algorithm
}

// New generates a fresh salt and hashes password with h.
func New(password string, h Hasher) (Credential, error) {
	if password == "" {
		return Credential{}, fmt.Errorf("%w: password is required", errs.ErrInvalid)
	}
	if h == nil {
		h = SHA256{}
	}
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return Credential{}, fmt.Errorf("generate salt: %w", err)
	}
	return Credential{Salt: salt, Hash: h.Hash(salt, password), Algorithm: h.Algorithm()}, nil
}

// Verify recomputes the hash for password and compares it in constant time.
func (c Credential) Verify(password string) bool {
	h, err := Lookup(string(c.Algorithm))
	if err != nil || len(c.Hash) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(h.Hash(c.Salt, password), c.Hash) == 1
}

// Clone returns a copy that shares no backing arrays with c.
func (c Credential) Clone() Credential {
	return Credential{
		Salt:      append([]byte(nil), c.Salt...),
		Hash:      append([]byte(nil), c.Hash...),
		Algorithm: c.Algorithm,
	}
}
