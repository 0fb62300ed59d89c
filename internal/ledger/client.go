// Package ledger implements the pipeline's window on an XRPL JSON-RPC
// endpoint: account state, submission with engine-result classification,
// and confirmation against validated ledgers.
package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	binarycodec "github.com/Peersyst/xrpl-go/binary-codec"
	"github.com/Peersyst/xrpl-go/xrpl/hash"
	log "github.com/sirupsen/logrus"

	"github.com/LeJamon/goXRPLpay/internal/payout"
)

// Default client tuning.
const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultMaxRetries     = 3
	DefaultCacheSize      = 1024

	retryBackoff = time.Second
)

// Config holds the JSON-RPC client settings.
type Config struct {
	// URL of the rippled/Clio JSON-RPC endpoint.
	URL string

	// HTTPClient defaults to one with DefaultRequestTimeout.
	HTTPClient *http.Client

	// MaxRetries bounds the 503 retry loop. Defaults to DefaultMaxRetries.
	MaxRetries int

	// CacheSize bounds the validated-result cache. Defaults to
	// DefaultCacheSize.
	CacheSize int

	Logger *log.Entry
}

// Client talks JSON-RPC to a single XRPL endpoint and classifies raw
// protocol responses into the pipeline's outcome types. Safe for
// concurrent use.
type Client struct {
	url        string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration

	confirmed *confirmCache

	log *log.Entry
}

var _ payout.LedgerClient = (*Client)(nil)

// NewClient creates a Client for the configured endpoint.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("ledger client requires an endpoint URL")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := newConfirmCache(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating confirmation cache: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Client{
		url:        cfg.URL,
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    retryBackoff,
		confirmed:  cache,
		log:        logger.WithField("component", "ledger"),
	}, nil
}

// rpcRequest is the rippled JSON-RPC envelope: a method name and a single
// params object.
type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
}

type rpcStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

// rpcError is a request the endpoint answered but refused.
type rpcError struct {
	Method  string
	Code    string
	Message string
}

func (e *rpcError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Method, e.Code)
}

// call posts one JSON-RPC request and decodes the result object into out.
// 503 responses are retried with doubling backoff; transport failures come
// back wrapped as rpc errors do not.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	var reqParams []any
	if params != nil {
		reqParams = []any{params}
	}
	body, err := json.Marshal(rpcRequest{Method: method, Params: reqParams})
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", method, err)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: endpoint returned HTTP %d", method, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", method, err)
	}

	var envelope rpcEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%s: decoding response: %w", method, err)
	}

	var status rpcStatus
	if err := json.Unmarshal(envelope.Result, &status); err != nil {
		return fmt.Errorf("%s: decoding result status: %w", method, err)
	}
	if status.Error != "" {
		return &rpcError{Method: method, Code: status.Error, Message: status.ErrorMessage}
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("%s: decoding result: %w", method, err)
		}
	}
	return nil
}

// post sends the body, retrying 503 responses with doubling backoff.
func (c *Client) post(ctx context.Context, body []byte) (*http.Response, error) {
	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusServiceUnavailable {
			return resp, nil
		}
		resp.Body.Close()

		if attempt == c.maxRetries {
			return nil, errors.New("endpoint is overloaded (HTTP 503)")
		}
		c.log.WithField("backoff", backoff).Debug("endpoint overloaded; retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

type accountInfoResult struct {
	AccountData struct {
		Account  string `json:"Account"`
		Sequence uint32 `json:"Sequence"`
		Balance  string `json:"Balance"`
	} `json:"account_data"`
}

// AccountInfo fetches the funding account's state from the current open
// ledger, including the next usable sequence number. Transport failures
// are transient; a refused request (unknown account, bad address) is not.
func (c *Client) AccountInfo(ctx context.Context, address string) (*payout.AccountInfo, error) {
	var result accountInfoResult
	err := c.call(ctx, "account_info", map[string]any{
		"account":      address,
		"ledger_index": "current",
	}, &result)
	if err != nil {
		var rerr *rpcError
		if errors.As(err, &rerr) || ctx.Err() != nil {
			return nil, err
		}
		return nil, payout.NewTransientError("account_info", 0, err)
	}

	balance, _ := strconv.ParseInt(result.AccountData.Balance, 10, 64)
	return &payout.AccountInfo{
		Address:      result.AccountData.Account,
		NextSequence: result.AccountData.Sequence,
		BalanceDrops: balance,
	}, nil
}

type submitResult struct {
	EngineResult        string `json:"engine_result"`
	EngineResultMessage string `json:"engine_result_message"`
	Accepted            bool   `json:"accepted"`
}

// Submit pushes a signed artifact and classifies the engine result.
// Network faults fold into a transient outcome; an error return means the
// context was cancelled.
func (c *Client) Submit(ctx context.Context, artifact []byte) (payout.SubmitResult, error) {
	var result submitResult
	err := c.call(ctx, "submit", map[string]any{
		"tx_blob": blobHex(artifact),
	}, &result)
	if err != nil {
		if ctx.Err() != nil {
			return payout.SubmitResult{}, ctx.Err()
		}
		return payout.SubmitResult{
			Status: payout.SubmitTransient,
			Reason: err.Error(),
		}, nil
	}

	return classifySubmit(result.EngineResult, result.EngineResultMessage), nil
}

type txResult struct {
	Validated bool            `json:"validated"`
	Meta      json.RawMessage `json:"meta"`
}

// Confirm reports whether a previously submitted artifact reached a
// validated ledger. Validated results are cached by transaction hash so
// repeat sweeps stay off the wire.
func (c *Client) Confirm(ctx context.Context, artifact []byte) (payout.ConfirmResult, error) {
	blob := blobHex(artifact)
	txHash, err := hash.SignTxBlob(blob)
	if err != nil {
		return payout.ConfirmResult{}, fmt.Errorf("hashing artifact: %w", err)
	}

	if engineResult, ok := c.confirmed.get(txHash); ok {
		return payout.ConfirmResult{Status: payout.ConfirmValidated, EngineResult: engineResult}, nil
	}

	var result txResult
	err = c.call(ctx, "tx", map[string]any{"transaction": txHash}, &result)
	switch {
	case err == nil:
		if !result.Validated {
			return payout.ConfirmResult{Status: payout.ConfirmPending}, nil
		}
		engineResult := metaResult(result.Meta)
		c.confirmed.put(txHash, engineResult)
		return payout.ConfirmResult{Status: payout.ConfirmValidated, EngineResult: engineResult}, nil

	case isTxNotFound(err):
		return c.classifyMissing(ctx, blob)

	case ctx.Err() != nil:
		return payout.ConfirmResult{}, ctx.Err()

	default:
		// Treat everything else as still pending; the next sweep retries.
		c.log.WithError(err).Warn("confirmation lookup failed")
		return payout.ConfirmResult{Status: payout.ConfirmPending}, nil
	}
}

// classifyMissing decides between StillPending and Lost for a transaction
// the endpoint has never seen: once the validated ledger index passes the
// artifact's LastLedgerSequence, the transaction can no longer land.
func (c *Client) classifyMissing(ctx context.Context, blob string) (payout.ConfirmResult, error) {
	tx, err := binarycodec.Decode(blob)
	if err != nil {
		return payout.ConfirmResult{}, fmt.Errorf("decoding artifact: %w", err)
	}
	lastLedger, ok := tx["LastLedgerSequence"].(uint32)
	if !ok {
		// No expiry stamped; the transaction could land in any future
		// ledger, so it can never be declared lost.
		return payout.ConfirmResult{Status: payout.ConfirmPending}, nil
	}

	validated, err := c.LedgerIndex(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return payout.ConfirmResult{}, ctx.Err()
		}
		c.log.WithError(err).Warn("validated ledger lookup failed")
		return payout.ConfirmResult{Status: payout.ConfirmPending}, nil
	}

	if validated > lastLedger {
		return payout.ConfirmResult{Status: payout.ConfirmLost}, nil
	}
	return payout.ConfirmResult{Status: payout.ConfirmPending}, nil
}

type ledgerResult struct {
	LedgerIndex uint32 `json:"ledger_index"`
}

// LedgerIndex returns the latest validated ledger index.
func (c *Client) LedgerIndex(ctx context.Context) (uint32, error) {
	var result ledgerResult
	err := c.call(ctx, "ledger", map[string]any{"ledger_index": "validated"}, &result)
	if err != nil {
		var rerr *rpcError
		if errors.As(err, &rerr) || ctx.Err() != nil {
			return 0, err
		}
		return 0, payout.NewTransientError("ledger", 0, err)
	}
	return result.LedgerIndex, nil
}

// CacheStats exposes confirmation-cache hit counters for diagnostics.
func (c *Client) CacheStats() (hits, misses uint64) {
	return c.confirmed.stats()
}

func blobHex(artifact []byte) string {
	return strings.ToUpper(hex.EncodeToString(artifact))
}

func isTxNotFound(err error) bool {
	var rerr *rpcError
	return errors.As(err, &rerr) && rerr.Code == "txnNotFound"
}

// metaResult digs the TransactionResult out of tx metadata, which arrives
// as an object for JSON requests but may be a hex string on some
// endpoints.
func metaResult(meta json.RawMessage) string {
	var obj struct {
		TransactionResult string `json:"TransactionResult"`
	}
	if err := json.Unmarshal(meta, &obj); err == nil && obj.TransactionResult != "" {
		return obj.TransactionResult
	}
	return ""
}
