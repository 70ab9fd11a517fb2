// Package auth handles password hashing, token issuance and request
// authentication.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// Iterations is the PBKDF2 work factor used by HashPassword.
var Iterations = 600000

const (
	saltChars  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	saltLength = 16
)

// ErrUnknownHashFormat is returned by CheckPassword for hashes it cannot parse.
var ErrUnknownHashFormat = errors.New("unknown password hash format")

// HashPassword hashes pw in the werkzeug format
// "pbkdf2:sha256:<iterations>$<salt>$<hex digest>".
func HashPassword(pw string) (string, error) {
	salt, err := genSalt(saltLength)
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	dk := pbkdf2.Key([]byte(pw), []byte(salt), Iterations, sha256.Size, sha256.New)
	return fmt.Sprintf("pbkdf2:sha256:%d$%s$%s", Iterations, salt, hex.EncodeToString(dk)), nil
}

// CheckPassword reports whether pw matches hash. Werkzeug pbkdf2 (sha256,
// sha512) and scrypt hashes are accepted, as are bcrypt hashes.
func CheckPassword(hash, pw string) (bool, error) {
	if strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$") {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return err == nil, err
	}

	method, salt, digest, ok := splitWerkzeug(hash)
	if !ok {
		return false, ErrUnknownHashFormat
	}
	want, err := hex.DecodeString(digest)
	if err != nil {
		return false, fmt.Errorf("%w: bad digest", ErrUnknownHashFormat)
	}

	got, err := derive(method, []byte(pw), []byte(salt))
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func splitWerkzeug(h string) (method, salt, digest string, ok bool) {
	parts := strings.SplitN(h, "$", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// derive computes the key for a werkzeug method string such as
// "pbkdf2:sha256:600000" or "scrypt:32768:8:1".
func derive(method string, pw, salt []byte) ([]byte, error) {
	args := strings.Split(method, ":")
	switch args[0] {
	case "pbkdf2":
		hashName := "sha256"
		if len(args) > 1 {
			hashName = args[1]
		}
		iter := 600000
		if len(args) > 2 {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return nil, fmt.Errorf("%w: bad iterations %q", ErrUnknownHashFormat, args[2])
			}
			iter = n
		}
		var (
			h    func() hash.Hash
			size int
		)
		switch hashName {
		case "sha256":
			h, size = sha256.New, sha256.Size
		case "sha512":
			h, size = sha512.New, sha512.Size
		default:
			return nil, fmt.Errorf("%w: pbkdf2 hash %q", ErrUnknownHashFormat, hashName)
		}
		return pbkdf2.Key(pw, salt, iter, size, h), nil

	case "scrypt":
		n, r, p := 1<<15, 8, 1
		if len(args) == 4 {
			var err error
			if n, err = strconv.Atoi(args[1]); err == nil {
				if r, err = strconv.Atoi(args[2]); err == nil {
					p, err = strconv.Atoi(args[3])
				}
			}
			if err != nil {
				return nil, fmt.Errorf("%w: bad scrypt parameters", ErrUnknownHashFormat)
			}
		}
		return scrypt.Key(pw, salt, n, r, p, 64)

	default:
		return nil, fmt.Errorf("%w: method %q", ErrUnknownHashFormat, args[0])
	}
}

func genSalt(n int) (string, error) {
	b := make([]byte, n)
	max := big.NewInt(int64(len(saltChars)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = saltChars[idx.Int64()]
	}
	return string(b), nil
}
