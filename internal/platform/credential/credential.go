// Package credential verifies staff passwords against stored credentials.
//
// Two encodings coexist in admin_users.password_hash: bcrypt hashes and
// legacy plaintext values carried over from accounts created before hashing
// was introduced. A bcrypt value is recognized by its "$2" prefix and its
// fixed 60 byte length; anything else is legacy. Legacy values are accepted
// only so that existing accounts keep working until their next password
// change or forced rehash; new credentials are always written as bcrypt.
package credential

import (
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Kind tags the encoding of a stored credential.
type Kind int

const (
	Legacy Kind = iota
	Hashed
)

func (k Kind) String() string {
	if k == Hashed {
		return "hashed"
	}
	return "legacy"
}

const (
	bcryptLen        = 60
	bcryptSaltLen    = 22
	bcryptHeaderSize = 7 // "$2a$10$"
)

// Credential is a parsed stored credential.
type Credential struct {
	Kind Kind

	// Hashed fields.
	Algorithm string // "2a", "2b" or "2y"
	Cost      int
	Salt      string
	Digest    string

	raw string
}

// Parse classifies stored. It never fails: a value that does not look like
// a well-formed bcrypt hash is treated as legacy plaintext.
func Parse(stored string) Credential {
	if c, ok := parseBcrypt(stored); ok {
		return c
	}
	return Credential{Kind: Legacy, raw: stored}
}

func parseBcrypt(s string) (Credential, bool) {
	if len(s) != bcryptLen || !strings.HasPrefix(s, "$2") {
		return Credential{}, false
	}
	// $<alg>$<cost>$<22 salt><31 digest>
	parts := strings.SplitN(s[1:], "$", 3)
	if len(parts) != 3 || len(parts[2]) < bcryptSaltLen {
		return Credential{}, false
	}
	cost, err := strconv.Atoi(parts[1])
	if err != nil {
		return Credential{}, false
	}
	return Credential{
		Kind:      Hashed,
		Algorithm: parts[0],
		Cost:      cost,
		Salt:      parts[2][:bcryptSaltLen],
		Digest:    parts[2][bcryptSaltLen:],
		raw:       s,
	}, true
}

// Verify reports whether plain matches stored. It always returns a result;
// malformed hashes and internal panics report false.
func Verify(plain, stored string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return Parse(stored).Matches(plain)
}

// Matches compares plain against this credential. Legacy values are
// compared in constant time.
func (c Credential) Matches(plain string) bool {
	switch c.Kind {
	case Hashed:
		return bcrypt.CompareHashAndPassword([]byte(c.raw), []byte(plain)) == nil
	default:
		if c.raw == "" {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(c.raw), []byte(plain)) == 1
	}
}

// MaxPasswordLength is the longest password bcrypt accepts, in bytes.
const MaxPasswordLength = 72

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrPasswordTooLong is returned for passwords over MaxPasswordLength
	// bytes.
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
)

// Hasher produces bcrypt credentials at a fixed cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher. Costs outside bcrypt's accepted range fall
// back to bcrypt.DefaultCost.
func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return Hasher{cost: cost}
}

// Cost returns the configured bcrypt cost.
func (h Hasher) Cost() int { return h.cost }

// Hash returns the bcrypt encoding of plain.
func (h Hasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	if len(plain) > MaxPasswordLength {
		return "", ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// NeedsRehash reports whether stored should be rewritten: legacy values
// always, hashes when their cost is below the hasher's.
func (h Hasher) NeedsRehash(stored string) bool {
	c := Parse(stored)
	return c.Kind == Legacy || c.Cost < h.cost
}
