package keys

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
)

// Alphabet is the base58 dictionary used by the XRP Ledger. The ordering
// differs from Bitcoin's so that account addresses start with 'r'.
const Alphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

var (
	// ErrInvalidChecksum is returned when the trailing four checksum
	// bytes of a base58check string do not match its payload.
	ErrInvalidChecksum = errors.New("invalid base58 checksum")
	// ErrInvalidFormat is returned when a base58check string is too
	// short to carry a payload and checksum.
	ErrInvalidFormat = errors.New("invalid base58 format")
)

var (
	radix        = big.NewInt(58)
	alphabetIdx  [256]int8
	alphabetInit = func() bool {
		for i := range alphabetIdx {
			alphabetIdx[i] = -1
		}
		for i := 0; i < len(Alphabet); i++ {
			alphabetIdx[Alphabet[i]] = int8(i)
		}
		return true
	}()
)

// Base58Encode encodes b as a base58 string using the XRPL alphabet.
// Leading zero bytes are preserved as leading zero digits.
func Base58Encode(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	zeros := 0
	for zeros < len(b) && b[zeros] == 0 {
		zeros++
	}

	n := new(big.Int).SetBytes(b)
	mod := new(big.Int)

	// Digits come out least significant first.
	out := make([]byte, 0, len(b)*2)
	for n.Sign() > 0 {
		n.DivMod(n, radix, mod)
		out = append(out, Alphabet[mod.Int64()])
	}
	for i := 0; i < zeros; i++ {
		out = append(out, Alphabet[0])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

// Base58Decode decodes a base58 string using the XRPL alphabet.
func Base58Decode(s string) ([]byte, error) {
	n := new(big.Int)
	digit := new(big.Int)
	for i := 0; i < len(s); i++ {
		d := alphabetIdx[s[i]]
		if d < 0 {
			return nil, fmt.Errorf("invalid base58 character %q", s[i])
		}
		digit.SetInt64(int64(d))
		n.Mul(n, radix)
		n.Add(n, digit)
	}

	zeros := 0
	for zeros < len(s) && s[zeros] == Alphabet[0] {
		zeros++
	}
	return append(make([]byte, zeros), n.Bytes()...), nil
}

// Base58CheckEncode prepends the type prefix to the payload, appends the
// first four bytes of a double SHA-256 checksum and base58-encodes the
// result.
func Base58CheckEncode(payload, prefix []byte) string {
	buf := make([]byte, 0, len(prefix)+len(payload)+checksumLength)
	buf = append(buf, prefix...)
	buf = append(buf, payload...)
	ck := checksum(buf)
	buf = append(buf, ck[:]...)
	return Base58Encode(buf)
}

// Base58CheckDecode decodes s and verifies its trailing checksum. The
// returned bytes still carry the type prefix.
func Base58CheckDecode(s string) ([]byte, error) {
	raw, err := Base58Decode(s)
	if err != nil {
		return nil, err
	}
	if len(raw) < checksumLength+1 {
		return nil, ErrInvalidFormat
	}
	payload, tail := raw[:len(raw)-checksumLength], raw[len(raw)-checksumLength:]
	ck := checksum(payload)
	if !bytes.Equal(ck[:], tail) {
		return nil, ErrInvalidChecksum
	}
	return payload, nil
}

const checksumLength = 4

func checksum(b []byte) [checksumLength]byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	var ck [checksumLength]byte
	copy(ck[:], second[:checksumLength])
	return ck
}
