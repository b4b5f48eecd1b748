package crypto

import oerrors "github.com/porthorian/modeltest/pkg/errors"

var (
	ErrInvalidHash   = oerrors.New(oerrors.CodeParameterInvalid, "password: invalid hash", nil)
	ErrInvalidConfig = oerrors.New(oerrors.CodeParameterInvalid, "password: invalid config", nil)
)

// Hasher encodes passwords and verifies candidates against an encoding.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password string, encodedHash string) (bool, error)
}
