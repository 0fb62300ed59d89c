package keys

import "errors"

// classicAddressPrefix is the type byte that makes encoded account
// addresses start with 'r'.
var classicAddressPrefix = []byte{0x00}

// ErrInvalidAddress is returned when a classic address fails to decode,
// carries the wrong type prefix or has a bad checksum.
var ErrInvalidAddress = errors.New("invalid classic address")

// EncodeClassicAddress encodes a 20-byte account ID as a classic
// address ("r...").
func EncodeClassicAddress(accountID []byte) (string, error) {
	if len(accountID) != AccountIDSize {
		return "", ErrInvalidAddress
	}
	return Base58CheckEncode(accountID, classicAddressPrefix), nil
}

// DecodeClassicAddress decodes a classic address back into its 20-byte
// account ID.
func DecodeClassicAddress(address string) ([AccountIDSize]byte, error) {
	var id [AccountIDSize]byte

	raw, err := Base58CheckDecode(address)
	if err != nil {
		return id, ErrInvalidAddress
	}
	if len(raw) != 1+AccountIDSize || raw[0] != classicAddressPrefix[0] {
		return id, ErrInvalidAddress
	}
	copy(id[:], raw[1:])
	return id, nil
}

// IsValidClassicAddress reports whether address is a well-formed classic
// address with a correct checksum.
func IsValidClassicAddress(address string) bool {
	_, err := DecodeClassicAddress(address)
	return err == nil
}

// EncodeClassicAddressFromPublicKeyHex derives the classic address
// controlled by the given hex-encoded public key.
func EncodeClassicAddressFromPublicKeyHex(pubKeyHex string) (string, error) {
	raw, _, err := ParsePublicKeyHex(pubKeyHex)
	if err != nil {
		return "", err
	}
	id := CalcAccountID(raw)
	return EncodeClassicAddress(id[:])
}
