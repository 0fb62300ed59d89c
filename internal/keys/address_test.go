package keys

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// masterPubKeyHex is the secp256k1 account public key derived from the
// rippled "masterpassphrase" seed. Its classic address is the genesis
// account rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh.
const masterPubKeyHex = "0330E7FC9D56BB25D6893BA3F317AE5BCF33B3291BD63DB32654A313222F7FD020"

func TestIsValidClassicAddress(t *testing.T) {
	testcases := []struct {
		name    string
		address string
		valid   bool
	}{
		{
			name:    "genesis account",
			address: "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
			valid:   true,
		},
		{
			name:    "genesis account with corrupted checksum",
			address: "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTi",
			valid:   false,
		},
		{
			name:    "ACCOUNT_ZERO",
			address: "rrrrrrrrrrrrrrrrrrrrrhoLvTp",
			valid:   true,
		},
		{
			name:    "ACCOUNT_ONE",
			address: "rrrrrrrrrrrrrrrrrrrrBZbvji",
			valid:   true,
		},
		{
			name:    "empty string",
			address: "",
			valid:   false,
		},
		{
			name:    "character outside the alphabet",
			address: "rHb9CJAWyB4rj91VRWn96DkukG4bwdty0h",
			valid:   false,
		},
		{
			name:    "seed is not an address",
			address: "snoPBrXtMeMyMHUVTgbuqAfg1SUTb",
			valid:   false,
		},
		{
			name:    "too short",
			address: "r",
			valid:   false,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, IsValidClassicAddress(tc.address))
		})
	}
}

// TestAccountZeroEncoding checks that leading zero bytes survive the
// base58 round trip. ACCOUNT_ZERO is the all-zeros account ID and
// ACCOUNT_ONE ends in a single one bit; both are rippled constants.
func TestAccountZeroEncoding(t *testing.T) {
	zero := make([]byte, AccountIDSize)
	addr, err := EncodeClassicAddress(zero)
	require.NoError(t, err)
	require.Equal(t, "rrrrrrrrrrrrrrrrrrrrrhoLvTp", addr)

	one := make([]byte, AccountIDSize)
	one[AccountIDSize-1] = 1
	addr, err = EncodeClassicAddress(one)
	require.NoError(t, err)
	require.Equal(t, "rrrrrrrrrrrrrrrrrrrrBZbvji", addr)

	id, err := DecodeClassicAddress("rrrrrrrrrrrrrrrrrrrrrhoLvTp")
	require.NoError(t, err)
	assert.Equal(t, zero, id[:])
}

func TestClassicAddressRoundTrip(t *testing.T) {
	id := make([]byte, AccountIDSize)
	for i := range id {
		id[i] = byte(i*7 + 3)
	}

	addr, err := EncodeClassicAddress(id)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(addr, "r"))

	decoded, err := DecodeClassicAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, id, decoded[:])
}

func TestEncodeClassicAddressRejectsBadLength(t *testing.T) {
	_, err := EncodeClassicAddress([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestEncodeClassicAddressFromPublicKeyHex(t *testing.T) {
	t.Run("secp256k1 masterpassphrase vector", func(t *testing.T) {
		addr, err := EncodeClassicAddressFromPublicKeyHex(masterPubKeyHex)
		require.NoError(t, err)
		require.Equal(t, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", addr)
	})

	t.Run("ed25519 masterpassphrase vector", func(t *testing.T) {
		// Same derivation rippled uses: the Ed25519 signing key is
		// SHA512Half of the seed entropy, the account key is the public
		// half behind an 0xED prefix.
		entropy := SeedFromPassphrase("masterpassphrase")
		keyMaterial := sha512.Sum512(entropy)
		priv := ed25519.NewKeyFromSeed(keyMaterial[:32])
		pub := priv.Public().(ed25519.PublicKey)

		pubKeyHex := strings.ToUpper(hex.EncodeToString(append([]byte{0xED}, pub...)))
		addr, err := EncodeClassicAddressFromPublicKeyHex(pubKeyHex)
		require.NoError(t, err)
		require.Equal(t, "rGWrZyQqhTp9Xu7G5Pkayo7bXjH4k4QYpf", addr)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		cases := map[string]string{
			"not hex":            "zz30E7FC9D56BB25D6893BA3F317AE5BCF33B3291BD63DB32654A313222F7FD020",
			"wrong length":       "0330E7FC",
			"unknown prefix":     "04" + masterPubKeyHex[2:],
			"not on curve":       "02FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF",
			"empty":              "",
			"odd length nibbles": "0330E",
		}
		for name, pubKeyHex := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := EncodeClassicAddressFromPublicKeyHex(pubKeyHex)
				require.Error(t, err)
			})
		}
	})
}

func TestCalcAccountID(t *testing.T) {
	raw, err := hex.DecodeString(masterPubKeyHex)
	require.NoError(t, err)

	id := CalcAccountID(raw)

	expected, err := DecodeClassicAddress("rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh")
	require.NoError(t, err)
	assert.Equal(t, expected, id)
}

func TestBase58RoundTrip(t *testing.T) {
	payloads := [][]byte{
		{0},
		{0, 0, 0, 1},
		{0xFF},
		{0x00, 0xFF, 0x00, 0xFF},
		SeedFromPassphrase("roundtrip"),
	}
	for _, payload := range payloads {
		encoded := Base58Encode(payload)
		decoded, err := Base58Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, payload, decoded)
	}
}
