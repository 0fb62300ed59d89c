package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/LeJamon/goXRPLpay/internal/admin"
	"github.com/LeJamon/goXRPLpay/internal/config"
	"github.com/LeJamon/goXRPLpay/internal/keys"
	"github.com/LeJamon/goXRPLpay/internal/ledger"
	"github.com/LeJamon/goXRPLpay/internal/payout"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the payout pipeline daemon",
	Long: `Run opens the payment store, verifies the funding key, and drives the
pipeline until interrupted: each tick signs queued payments with the next
sequence numbers, submits them, and sweeps confirmations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runDaemon(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(parent context.Context, cfg *config.Config) error {
	logger := log.NewEntry(log.StandardLogger())

	if err := cfg.RequireFunding(); err != nil {
		return err
	}
	// Refuse to start when the configured secret does not control the
	// configured address. Catching the mismatch here beats burning
	// sequence numbers on transactions the ledger will reject.
	if err := keys.VerifyFundingKey(cfg.Funding.Secret, cfg.Funding.Address); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := ledger.NewClient(ledger.Config{
		URL:    cfg.Ledger.URL,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	walletSigner, err := ledger.NewWalletSigner(ledger.WalletSignerConfig{
		Seed:            cfg.Funding.Secret,
		Indexer:         client,
		FeeDrops:        cfg.Ledger.FeeDrops,
		MaxLedgerOffset: cfg.Ledger.MaxLedgerOffset,
		NetworkID:       cfg.Ledger.NetworkID,
	})
	if err != nil {
		return err
	}

	var events payout.EventSink
	var feed *admin.Feed
	var feedServer *admin.FeedServer
	if cfg.Admin.WSAddress != "" {
		feed = admin.NewFeed(logger)
		feedServer, err = admin.NewFeedServer(cfg.Admin.WSAddress, feed, logger)
		if err != nil {
			return err
		}
		events = feed
	}

	signer := payout.NewSigner(store, walletSigner, events, logger)
	submitter := payout.NewSubmitter(store, client, events, logger)
	driver, err := payout.NewDriver(payout.DriverConfig{
		Store:          store,
		Ledger:         client,
		Signer:         signer,
		Submitter:      submitter,
		FundingAddress: cfg.Funding.Address,
		MaxInFlight:    cfg.Pipeline.MaxInFlight,
		Events:         events,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	var healthServer *admin.GRPCServer
	if cfg.Admin.GRPCAddress != "" {
		healthServer, err = admin.NewGRPCServer(admin.GRPCConfig{
			Address: cfg.Admin.GRPCAddress,
			Target:  driver,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
	}

	if feedServer != nil {
		if err := feedServer.Start(); err != nil {
			return err
		}
	}
	if healthServer != nil {
		if err := healthServer.Start(); err != nil {
			if feedServer != nil {
				_ = feedServer.Stop(context.Background())
			}
			return err
		}
	}

	logger.WithFields(log.Fields{
		"account":       cfg.Funding.Address,
		"ledger_url":    cfg.Ledger.URL,
		"backend":       cfg.Storage.Backend,
		"max_in_flight": cfg.Pipeline.MaxInFlight,
		"poll_interval": cfg.Pipeline.PollInterval,
	}).Info("payout pipeline starting")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tickLoop(ctx, driver, cfg.Pipeline.PollInterval, logger)
	})

	err = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if healthServer != nil {
		healthServer.Stop()
	}
	if feedServer != nil {
		_ = feedServer.Stop(shutdownCtx)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("payout pipeline stopped")
	return nil
}

// tickLoop drives the pipeline on a fixed cadence. Fatal errors are
// re-surfaced by the driver every tick until the operator aborts the
// offending row, so the loop keeps ticking through them.
func tickLoop(ctx context.Context, driver *payout.Driver, interval time.Duration, logger *log.Entry) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := driver.Tick(ctx); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				// Already logged at promotion; keep the loop alive.
				logger.WithError(err).Debug("tick ended in error")
			}
		}
	}
}
