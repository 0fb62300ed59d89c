package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/crypto/ripemd160"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// AccountIDSize is the size of an XRPL account ID in bytes.
const AccountIDSize = 20

// CalcAccountID computes the account ID from a public key. The account
// ID is a 160-bit identifier computed as RIPEMD160(SHA256(publicKey)).
//
// The same computation is used regardless of the cryptographic scheme:
// the entire 33-byte public key including its prefix is hashed.
func CalcAccountID(publicKey []byte) [AccountIDSize]byte {
	sha256Hash := sha256.Sum256(publicKey)

	ripemd160Hasher := ripemd160.New()
	ripemd160Hasher.Write(sha256Hash[:])
	ripemd160Hash := ripemd160Hasher.Sum(nil)

	var result [AccountIDSize]byte
	copy(result[:], ripemd160Hash)
	return result
}

// ParsePublicKeyHex decodes a hex-encoded 33-byte public key and
// validates it for its scheme. secp256k1 keys must be valid curve
// points; Ed25519 keys are accepted on format alone because any 32-byte
// value is a usable point encoding for address derivation purposes.
func ParsePublicKeyHex(pubKeyHex string) ([]byte, KeyType, error) {
	raw, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return nil, KeyTypeUnknown, fmt.Errorf("decode public key hex: %w", err)
	}

	kt := PublicKeyType(raw)
	switch kt {
	case KeyTypeSecp256k1:
		if _, err := secp256k1.ParsePubKey(raw); err != nil {
			return nil, KeyTypeUnknown, fmt.Errorf("parse secp256k1 public key: %w", err)
		}
	case KeyTypeEd25519:
		// Format already checked by PublicKeyType.
	default:
		return nil, KeyTypeUnknown, fmt.Errorf("unrecognized public key format (%d bytes)", len(raw))
	}
	return raw, kt, nil
}
