package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"github.com/porthorian/modeltest/pkg/provider"
	"golang.org/x/crypto/pbkdf2"
)

const encodingScheme = "pbkdf2"

var hashFunctions = map[string]func() hash.Hash{
	"sha256": sha256.New,
	"sha512": sha512.New,
}

type PBKDF2Options struct {
	Iterations int
	SaltBytes  int
	KeyBytes   int
	Hash       string
}

// PBKDF2Hasher encodes as pbkdf2$<hash>$<iterations>$<salt>$<key>, with salt
// and key in unpadded standard base64.
type PBKDF2Hasher struct {
	options PBKDF2Options
}

var _ Hasher = (*PBKDF2Hasher)(nil)

func DefaultPBKDF2Options() PBKDF2Options {
	return PBKDF2Options{
		Iterations: 27500,
		SaltBytes:  16,
		KeyBytes:   32,
		Hash:       "sha256",
	}
}

// PBKDF2OptionsFromScope reads iterations, saltBytes, keyBytes and hash from
// a provider scope, falling back to the defaults.
func PBKDF2OptionsFromScope(scope provider.Scope) PBKDF2Options {
	defaults := DefaultPBKDF2Options()
	return PBKDF2Options{
		Iterations: scope.GetInt("iterations", defaults.Iterations),
		SaltBytes:  scope.GetInt("saltBytes", defaults.SaltBytes),
		KeyBytes:   scope.GetInt("keyBytes", defaults.KeyBytes),
		Hash:       scope.GetDefault("hash", defaults.Hash),
	}
}

func NewPBKDF2Hasher(options PBKDF2Options) (*PBKDF2Hasher, error) {
	defaults := DefaultPBKDF2Options()

	if options.Iterations <= 0 {
		options.Iterations = defaults.Iterations
	}
	if options.SaltBytes <= 0 {
		options.SaltBytes = defaults.SaltBytes
	}
	if options.KeyBytes <= 0 {
		options.KeyBytes = defaults.KeyBytes
	}
	options.Hash = strings.ToLower(strings.TrimSpace(options.Hash))
	if options.Hash == "" {
		options.Hash = defaults.Hash
	}
	if _, ok := hashFunctions[options.Hash]; !ok {
		return nil, ErrInvalidConfig
	}

	return &PBKDF2Hasher{options: options}, nil
}

func (h *PBKDF2Hasher) Hash(password string) (string, error) {
	if h == nil || password == "" {
		return "", ErrInvalidConfig
	}

	salt := make([]byte, h.options.SaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	derived := pbkdf2.Key([]byte(password), salt, h.options.Iterations, h.options.KeyBytes, hashFunctions[h.options.Hash])

	return fmt.Sprintf(
		"%s$%s$%d$%s$%s",
		encodingScheme,
		h.options.Hash,
		h.options.Iterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(derived),
	), nil
}

// Verify accepts any supported hash function and iteration count found in
// the encoding, not only the hasher's own options.
func (h *PBKDF2Hasher) Verify(password string, encodedHash string) (bool, error) {
	if h == nil || password == "" {
		return false, ErrInvalidConfig
	}

	parsed, err := parseEncodedHash(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := pbkdf2.Key([]byte(password), parsed.salt, parsed.iterations, len(parsed.key), parsed.hash)
	return subtle.ConstantTimeCompare(candidate, parsed.key) == 1, nil
}

type encodedHash struct {
	hash       func() hash.Hash
	iterations int
	salt       []byte
	key        []byte
}

func parseEncodedHash(raw string) (encodedHash, error) {
	parts := strings.Split(raw, "$")
	if len(parts) != 5 || parts[0] != encodingScheme {
		return encodedHash{}, ErrInvalidHash
	}

	hashFn, ok := hashFunctions[parts[1]]
	if !ok {
		return encodedHash{}, ErrInvalidHash
	}

	iterations, err := strconv.Atoi(parts[2])
	if err != nil || iterations <= 0 {
		return encodedHash{}, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil || len(salt) == 0 {
		return encodedHash{}, ErrInvalidHash
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(key) == 0 {
		return encodedHash{}, ErrInvalidHash
	}

	return encodedHash{hash: hashFn, iterations: iterations, salt: salt, key: key}, nil
}

// IsEncoded reports whether value looks like a hash produced by this package.
func IsEncoded(value string) bool {
	_, err := parseEncodedHash(value)
	return err == nil
}
