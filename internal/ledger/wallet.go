package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/Peersyst/xrpl-go/xrpl/transaction"
	"github.com/Peersyst/xrpl-go/xrpl/wallet"

	"github.com/LeJamon/goXRPLpay/internal/payout"
)

// Default transaction stamping parameters.
const (
	DefaultFeeDrops        int64  = 12
	DefaultMaxLedgerOffset uint32 = 120
)

// LedgerIndexer supplies the latest validated ledger index for
// LastLedgerSequence stamping. The JSON-RPC Client implements it.
type LedgerIndexer interface {
	LedgerIndex(ctx context.Context) (uint32, error)
}

// WalletSignerConfig wires a WalletSigner.
type WalletSignerConfig struct {
	// Seed is the funding account's family seed. It is consumed during
	// construction and not retained.
	Seed string

	// Indexer supplies validated ledger indexes. Required.
	Indexer LedgerIndexer

	// FeeDrops is the flat fee stamped on every payment. Defaults to
	// DefaultFeeDrops.
	FeeDrops int64

	// MaxLedgerOffset bounds how far past the current validated ledger a
	// payment stays valid. Defaults to DefaultMaxLedgerOffset.
	MaxLedgerOffset uint32

	// NetworkID is stamped when nonzero (sidechains; mainnet omits it).
	NetworkID uint32
}

// WalletSigner turns payment rows into signed transaction blobs with the
// funding account's key. It implements payout.ArtifactSigner.
type WalletSigner struct {
	wallet          wallet.Wallet
	indexer         LedgerIndexer
	feeDrops        int64
	maxLedgerOffset uint32
	networkID       uint32
}

var _ payout.ArtifactSigner = (*WalletSigner)(nil)

// NewWalletSigner derives the funding wallet from the seed.
func NewWalletSigner(cfg WalletSignerConfig) (*WalletSigner, error) {
	if cfg.Indexer == nil {
		return nil, fmt.Errorf("wallet signer requires a ledger indexer")
	}
	w, err := wallet.FromSeed(cfg.Seed, "")
	if err != nil {
		return nil, fmt.Errorf("deriving funding wallet: %w", err)
	}
	feeDrops := cfg.FeeDrops
	if feeDrops <= 0 {
		feeDrops = DefaultFeeDrops
	}
	maxLedgerOffset := cfg.MaxLedgerOffset
	if maxLedgerOffset == 0 {
		maxLedgerOffset = DefaultMaxLedgerOffset
	}
	return &WalletSigner{
		wallet:          w,
		indexer:         cfg.Indexer,
		feeDrops:        feeDrops,
		maxLedgerOffset: maxLedgerOffset,
		networkID:       cfg.NetworkID,
	}, nil
}

// Address returns the funding account's classic address.
func (s *WalletSigner) Address() string {
	return string(s.wallet.ClassicAddress)
}

// SignPayment builds and signs the payment transaction carrying the given
// sequence number. LastLedgerSequence is stamped relative to the latest
// validated ledger so an artifact that fails to land expires instead of
// lingering forever.
func (s *WalletSigner) SignPayment(ctx context.Context, p *payout.Payment, sequence uint32) ([]byte, error) {
	validated, err := s.indexer.LedgerIndex(ctx)
	if err != nil {
		return nil, err
	}

	tx := transaction.FlatTransaction{
		"TransactionType":    "Payment",
		"Account":            string(s.wallet.ClassicAddress),
		"Destination":        p.Destination,
		"Amount":             p.Amount.Flat(),
		"Sequence":           sequence,
		"Fee":                strconv.FormatInt(s.feeDrops, 10),
		"LastLedgerSequence": validated + s.maxLedgerOffset,
	}
	if s.networkID != 0 {
		tx["NetworkID"] = s.networkID
	}
	if p.Memo != "" {
		tx["Memos"] = []any{
			map[string]any{
				"Memo": map[string]any{
					"MemoData": strings.ToUpper(hex.EncodeToString([]byte(p.Memo))),
				},
			},
		}
	}

	blob, _, err := s.wallet.Sign(tx)
	if err != nil {
		return nil, fmt.Errorf("signing payment %d: %w", p.ID, err)
	}

	artifact, err := hex.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("decoding signed blob for payment %d: %w", p.ID, err)
	}
	return artifact, nil
}
