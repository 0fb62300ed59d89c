package keys

import (
	"bytes"
	"crypto/sha512"
	"errors"
)

// SeedSize is the entropy carried by a family seed in bytes.
const SeedSize = 16

var (
	// seedPrefixSecp256k1 yields encoded seeds starting with 's'.
	seedPrefixSecp256k1 = []byte{0x21}
	// seedPrefixEd25519 yields encoded seeds starting with 'sEd'.
	seedPrefixEd25519 = []byte{0x01, 0xE1, 0x4B}
)

// ErrInvalidSeed is returned for any seed that fails to decode: wrong
// length, unknown prefix, characters outside the alphabet or a bad
// checksum. The error deliberately carries no detail so that callers
// cannot leak fragments of a mistyped secret into logs.
var ErrInvalidSeed = errors.New("invalid seed")

// EncodeSeed encodes 16 bytes of entropy as a family seed for the given
// scheme.
func EncodeSeed(entropy []byte, keyType KeyType) (string, error) {
	if len(entropy) != SeedSize {
		return "", ErrInvalidSeed
	}
	switch keyType {
	case KeyTypeSecp256k1:
		return Base58CheckEncode(entropy, seedPrefixSecp256k1), nil
	case KeyTypeEd25519:
		return Base58CheckEncode(entropy, seedPrefixEd25519), nil
	default:
		return "", ErrInvalidSeed
	}
}

// DecodeSeed decodes a family seed and reports which scheme it selects.
// Callers holding a real secret should SecureErase the returned entropy
// once they are done with it.
func DecodeSeed(seed string) ([]byte, KeyType, error) {
	raw, err := Base58CheckDecode(seed)
	if err != nil {
		return nil, KeyTypeUnknown, ErrInvalidSeed
	}
	switch {
	case len(raw) == 1+SeedSize && raw[0] == seedPrefixSecp256k1[0]:
		return raw[1:], KeyTypeSecp256k1, nil
	case len(raw) == 3+SeedSize && bytes.Equal(raw[:3], seedPrefixEd25519):
		return raw[3:], KeyTypeEd25519, nil
	default:
		SecureErase(raw)
		return nil, KeyTypeUnknown, ErrInvalidSeed
	}
}

// ValidateSeed reports whether seed is a well-formed family seed without
// retaining its entropy.
func ValidateSeed(seed string) error {
	entropy, _, err := DecodeSeed(seed)
	if err != nil {
		return err
	}
	SecureErase(entropy)
	return nil
}

// SeedFromPassphrase derives deterministic seed entropy from a
// passphrase the way rippled's wallet_propose does: the first 16 bytes
// of its SHA-512 hash.
func SeedFromPassphrase(passphrase string) []byte {
	h := sha512.Sum512([]byte(passphrase))
	entropy := make([]byte, SeedSize)
	copy(entropy, h[:SeedSize])
	return entropy
}
