package ledger

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"

	binarycodec "github.com/Peersyst/xrpl-go/binary-codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goXRPLpay/internal/payout"
)

func TestWalletSignerAddress(t *testing.T) {
	signer, err := NewWalletSigner(WalletSignerConfig{
		Seed:    testSeed,
		Indexer: stubIndexer(100),
	})
	require.NoError(t, err)
	assert.Equal(t, testAddress, signer.Address())
}

func TestWalletSignerRejectsBadSeed(t *testing.T) {
	_, err := NewWalletSigner(WalletSignerConfig{
		Seed:    "not a seed",
		Indexer: stubIndexer(100),
	})
	require.Error(t, err)
}

func TestWalletSignerRequiresIndexer(t *testing.T) {
	_, err := NewWalletSigner(WalletSignerConfig{Seed: testSeed})
	require.Error(t, err)
}

func TestSignPaymentNative(t *testing.T) {
	signer, err := NewWalletSigner(WalletSignerConfig{
		Seed:            testSeed,
		Indexer:         stubIndexer(1000),
		FeeDrops:        12,
		MaxLedgerOffset: 50,
	})
	require.NoError(t, err)

	p := &payout.Payment{
		ID:          1,
		Destination: testDest,
		Amount:      payout.NewNativeAmount(10_000_000),
		Memo:        "invoice 42",
	}
	artifact, err := signer.SignPayment(context.Background(), p, 42)
	require.NoError(t, err)
	require.NotEmpty(t, artifact)

	tx, err := binarycodec.Decode(strings.ToUpper(hex.EncodeToString(artifact)))
	require.NoError(t, err)

	assert.Equal(t, "Payment", tx["TransactionType"])
	assert.Equal(t, testAddress, tx["Account"])
	assert.Equal(t, testDest, tx["Destination"])
	assert.Equal(t, "10000000", tx["Amount"])
	assert.Equal(t, uint32(42), tx["Sequence"])
	assert.Equal(t, "12", tx["Fee"])
	assert.Equal(t, uint32(1050), tx["LastLedgerSequence"])
	assert.NotEmpty(t, tx["TxnSignature"], "artifact must carry a signature")
	assert.NotEmpty(t, tx["SigningPubKey"])

	memos, ok := tx["Memos"].([]any)
	require.True(t, ok, "memo must survive signing")
	require.Len(t, memos, 1)
}

func TestSignPaymentIssued(t *testing.T) {
	signer, err := NewWalletSigner(WalletSignerConfig{
		Seed:    testSeed,
		Indexer: stubIndexer(1000),
	})
	require.NoError(t, err)

	p := &payout.Payment{
		ID:          2,
		Destination: testDest,
		Amount:      payout.NewIssuedAmount("12.5", "USD", testAddress),
	}
	artifact, err := signer.SignPayment(context.Background(), p, 43)
	require.NoError(t, err)

	tx, err := binarycodec.Decode(strings.ToUpper(hex.EncodeToString(artifact)))
	require.NoError(t, err)

	amount, ok := tx["Amount"].(map[string]any)
	require.True(t, ok, "issued amounts serialize as objects")
	assert.Equal(t, "12.5", amount["value"])
	assert.Equal(t, "USD", amount["currency"])
	assert.Equal(t, testAddress, amount["issuer"])
}

func TestSignPaymentDistinctSequencesDistinctArtifacts(t *testing.T) {
	signer, err := NewWalletSigner(WalletSignerConfig{
		Seed:    testSeed,
		Indexer: stubIndexer(1000),
	})
	require.NoError(t, err)

	p := &payout.Payment{ID: 3, Destination: testDest, Amount: payout.NewNativeAmount(1)}

	first, err := signer.SignPayment(context.Background(), p, 10)
	require.NoError(t, err)
	second, err := signer.SignPayment(context.Background(), p, 11)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
