package password

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

const (
	AlgoBcrypt   = "bcrypt"
	AlgoArgon2id = "argon2id"
)

// Hasher produces salted one-way password hashes. New hashes use the
// configured algorithm; Compare accepts either encoding so stored hashes
// survive a change of PASSWORD_HASH.
type Hasher struct {
	algo       string
	bcryptCost int
	params     *argon2id.Params
}

func NewHasher(algo string, bcryptCost int) (*Hasher, error) {
	switch algo {
	case AlgoBcrypt:
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
		}
	case AlgoArgon2id:
	default:
		return nil, fmt.Errorf("unknown password hash %q", algo)
	}
	return &Hasher{algo: algo, bcryptCost: bcryptCost, params: argon2id.DefaultParams}, nil
}

func (h *Hasher) Hash(plain string) (string, error) {
	if h.algo == AlgoArgon2id {
		return argon2id.CreateHash(plain, h.params)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare reports whether plain matches encoded. A malformed or unknown
// encoding is an error, a mismatch is (false, nil).
func (h *Hasher) Compare(plain, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return argon2id.ComparePasswordAndHash(plain, encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) || errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return false, nil
		}
		return err == nil, err
	default:
		return false, errors.New("unrecognised password hash encoding")
	}
}
