package keys

import (
	"fmt"

	"github.com/Peersyst/xrpl-go/xrpl/wallet"
)

// VerifyFundingKey checks that a funding secret actually controls the
// configured funding address before the pipeline ever signs with it.
//
// The seed is decoded locally first so malformed input is rejected
// without key derivation. The derived classic address must match, and
// the account ID is recomputed from the compressed public key as an
// independent cross-check on the derivation path.
//
// Error messages never include the seed.
func VerifyFundingKey(seed, address string) error {
	entropy, _, err := DecodeSeed(seed)
	if err != nil {
		return err
	}
	SecureErase(entropy)

	if !IsValidClassicAddress(address) {
		return ErrInvalidAddress
	}

	w, err := wallet.FromSeed(seed, "")
	if err != nil {
		return fmt.Errorf("derive funding wallet: %w", err)
	}
	if string(w.ClassicAddress) != address {
		return fmt.Errorf("funding secret does not control %s", address)
	}

	derived, err := EncodeClassicAddressFromPublicKeyHex(w.PublicKey)
	if err != nil {
		return fmt.Errorf("cross-check funding public key: %w", err)
	}
	if derived != address {
		return fmt.Errorf("funding key cross-check derived %s, expected %s", derived, address)
	}
	return nil
}
