package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goXRPLpay/internal/payout"
)

const (
	testSeed    = "snoPBrXtMeMyMHUVTgbuqAfg1SUTb"
	testAddress = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	testDest    = "rGWrZyQqhTp9Xu7G5Pkayo7bXjH4k4QYpf"
)

// rpcHandler routes rippled JSON-RPC methods to canned result objects.
type rpcHandler struct {
	results map[string]any
	calls   map[string]int
}

func newRPCHandler() *rpcHandler {
	return &rpcHandler{
		results: make(map[string]any),
		calls:   make(map[string]int),
	}
}

func (h *rpcHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.calls[req.Method]++

	result, ok := h.results[req.Method]
	if !ok {
		result = map[string]any{"error": "unknownCmd", "status": "error"}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
}

func setupClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)
	client.backoff = time.Millisecond
	return client
}

func TestAccountInfo(t *testing.T) {
	handler := newRPCHandler()
	handler.results["account_info"] = map[string]any{
		"status": "success",
		"account_data": map[string]any{
			"Account":  testAddress,
			"Sequence": 42,
			"Balance":  "99999000000",
		},
	}
	client := setupClient(t, handler)

	info, err := client.AccountInfo(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, testAddress, info.Address)
	assert.Equal(t, uint32(42), info.NextSequence)
	assert.Equal(t, int64(99999000000), info.BalanceDrops)
}

func TestAccountInfoNotFound(t *testing.T) {
	handler := newRPCHandler()
	handler.results["account_info"] = map[string]any{
		"status":        "error",
		"error":         "actNotFound",
		"error_message": "Account not found.",
	}
	client := setupClient(t, handler)

	_, err := client.AccountInfo(context.Background(), testAddress)
	require.Error(t, err)
	assert.False(t, payout.IsTransient(err), "a refused request is not retryable")
	assert.Contains(t, err.Error(), "actNotFound")
}

func TestAccountInfoTransportFaultIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)
	server.Close()

	_, err = client.AccountInfo(context.Background(), testAddress)
	require.Error(t, err)
	assert.True(t, payout.IsTransient(err))
}

func TestSubmitClassification(t *testing.T) {
	tests := []struct {
		name         string
		engineResult string
		wantStatus   payout.SubmitStatus
	}{
		{"accepted", "tesSUCCESS", payout.SubmitAccepted},
		{"rejected", "tecUNFUNDED_PAYMENT", payout.SubmitReject},
		{"resign", "tefPAST_SEQ", payout.SubmitResign},
		{"transient", "terPRE_SEQ", payout.SubmitTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newRPCHandler()
			handler.results["submit"] = map[string]any{
				"status":        "success",
				"engine_result": tt.engineResult,
				"accepted":      tt.wantStatus == payout.SubmitAccepted,
			}
			client := setupClient(t, handler)

			res, err := client.Submit(context.Background(), []byte{0x12, 0x00})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.engineResult, res.EngineResult)
		})
	}
}

func TestSubmitTransportFaultIsTransientOutcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)
	server.Close()

	res, err := client.Submit(context.Background(), []byte{0x12, 0x00})
	require.NoError(t, err, "network faults fold into the outcome")
	assert.Equal(t, payout.SubmitTransient, res.Status)
}

func TestPostRetries503(t *testing.T) {
	var served atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if served.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{
			"status":       "success",
			"ledger_index": 7777,
		}})
	})
	client := setupClient(t, handler)

	index, err := client.LedgerIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(7777), index)
	assert.Equal(t, int32(3), served.Load())
}

func TestPostGivesUpAfterMaxRetries(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client := setupClient(t, handler)
	client.maxRetries = 2

	_, err := client.LedgerIndex(context.Background())
	require.Error(t, err)
	assert.True(t, payout.IsTransient(err))
	assert.Contains(t, err.Error(), "overloaded")
}

// signedTestArtifact signs a real payment so Confirm can hash and decode
// it the way production artifacts are.
func signedTestArtifact(t *testing.T, lastLedgerSequence uint32) []byte {
	t.Helper()
	signer, err := NewWalletSigner(WalletSignerConfig{
		Seed:            testSeed,
		Indexer:         stubIndexer(lastLedgerSequence - DefaultMaxLedgerOffset),
		FeeDrops:        12,
		MaxLedgerOffset: DefaultMaxLedgerOffset,
	})
	require.NoError(t, err)

	artifact, err := signer.SignPayment(context.Background(), &payout.Payment{
		ID:          1,
		Destination: testDest,
		Amount:      payout.NewNativeAmount(1_000_000),
	}, 7)
	require.NoError(t, err)
	return artifact
}

type stubIndexer uint32

func (s stubIndexer) LedgerIndex(context.Context) (uint32, error) {
	return uint32(s), nil
}

func TestConfirmValidated(t *testing.T) {
	artifact := signedTestArtifact(t, 5000)

	handler := newRPCHandler()
	handler.results["tx"] = map[string]any{
		"status":    "success",
		"validated": true,
		"meta":      map[string]any{"TransactionResult": "tesSUCCESS"},
	}
	client := setupClient(t, handler)

	res, err := client.Confirm(context.Background(), artifact)
	require.NoError(t, err)
	assert.Equal(t, payout.ConfirmValidated, res.Status)
	assert.Equal(t, "tesSUCCESS", res.EngineResult)

	// The second sweep answers from the cache.
	res, err = client.Confirm(context.Background(), artifact)
	require.NoError(t, err)
	assert.Equal(t, payout.ConfirmValidated, res.Status)
	assert.Equal(t, 1, handler.calls["tx"])

	hits, _ := client.CacheStats()
	assert.Equal(t, uint64(1), hits)
}

func TestConfirmStillPendingWithinWindow(t *testing.T) {
	artifact := signedTestArtifact(t, 5000)

	handler := newRPCHandler()
	handler.results["tx"] = map[string]any{
		"status":        "error",
		"error":         "txnNotFound",
		"error_message": "Transaction not found.",
	}
	// Validated ledger has not reached the artifact's expiry.
	handler.results["ledger"] = map[string]any{
		"status":       "success",
		"ledger_index": 4999,
	}
	client := setupClient(t, handler)

	res, err := client.Confirm(context.Background(), artifact)
	require.NoError(t, err)
	assert.Equal(t, payout.ConfirmPending, res.Status)
}

func TestConfirmLostPastWindow(t *testing.T) {
	artifact := signedTestArtifact(t, 5000)

	handler := newRPCHandler()
	handler.results["tx"] = map[string]any{
		"status": "error",
		"error":  "txnNotFound",
	}
	handler.results["ledger"] = map[string]any{
		"status":       "success",
		"ledger_index": 5001,
	}
	client := setupClient(t, handler)

	res, err := client.Confirm(context.Background(), artifact)
	require.NoError(t, err)
	assert.Equal(t, payout.ConfirmLost, res.Status)
}

func TestConfirmNotYetValidated(t *testing.T) {
	artifact := signedTestArtifact(t, 5000)

	handler := newRPCHandler()
	handler.results["tx"] = map[string]any{
		"status":    "success",
		"validated": false,
	}
	client := setupClient(t, handler)

	res, err := client.Confirm(context.Background(), artifact)
	require.NoError(t, err)
	assert.Equal(t, payout.ConfirmPending, res.Status)
}
