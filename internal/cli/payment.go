package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/LeJamon/goXRPLpay/internal/payout"
)

var paymentCmd = &cobra.Command{
	Use:   "payment",
	Short: "Create, inspect and abort payments",
}

var (
	createDest     string
	createAmount   string
	createDrops    int64
	createCurrency string
	createIssuer   string
	createMemo     string
	listLimit      int
)

var paymentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Queue a new payment",
	Long: `Create validates and queues a payment for the pipeline to sign and
submit. Native payments take --amount in XRP or --drops directly; issued
currency payments take --amount as the decimal value plus --currency and
--issuer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		amount, err := buildAmount()
		if err != nil {
			return err
		}

		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		creator := payout.NewCreator(store, cfg.Funding.Address, nil, log.NewEntry(log.StandardLogger()))
		id, err := creator.CreatePayment(cmd.Context(), payout.CreateRequest{
			Destination: createDest,
			Amount:      amount,
			Memo:        createMemo,
		})
		if err != nil {
			return err
		}

		fmt.Printf("payment %d queued\n", id)
		return nil
	},
}

var paymentAbortCmd = &cobra.Command{
	Use:   "abort <id>",
	Short: "Abort a pending or errored payment",
	Long: `Abort marks a payment Aborted. Pending rows simply leave the queue;
aborting a fatally errored row is how a wedged pipeline is released, and the
daemon resigns the trailing window on its next tick.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid payment id %q", args[0])
		}

		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		creator := payout.NewCreator(store, cfg.Funding.Address, nil, log.NewEntry(log.StandardLogger()))
		if err := creator.AbortPayment(cmd.Context(), id); err != nil {
			return err
		}

		fmt.Printf("payment %d aborted\n", id)
		return nil
	},
}

var paymentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent payments, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		payments, err := store.ListRecent(cmd.Context(), listLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tSEQ\tDESTINATION\tAMOUNT\tERROR")
		for _, p := range payments {
			seq := "-"
			if s, ok := p.SequenceValue(); ok {
				seq = strconv.FormatUint(uint64(s), 10)
			}
			errKind := p.ErrorKind
			if errKind != "" && p.Fatal {
				errKind += " (fatal)"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				p.ID, p.State, seq, p.Destination, p.Amount, errKind)
		}
		return w.Flush()
	},
}

var paymentShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one payment in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid payment id %q", args[0])
		}

		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := store.GetPayment(cmd.Context(), id)
		if err != nil {
			return err
		}

		fmt.Printf("id:          %d\n", p.ID)
		fmt.Printf("state:       %s\n", p.State)
		fmt.Printf("destination: %s\n", p.Destination)
		fmt.Printf("amount:      %s\n", p.Amount)
		if p.Memo != "" {
			fmt.Printf("memo:        %s\n", p.Memo)
		}
		if seq, ok := p.SequenceValue(); ok {
			fmt.Printf("sequence:    %d\n", seq)
		}
		if len(p.SignedArtifact) > 0 {
			fmt.Printf("artifact:    %d bytes\n", len(p.SignedArtifact))
		}
		if p.ErrorKind != "" {
			fmt.Printf("error:       %s (fatal=%t)\n", p.ErrorKind, p.Fatal)
		}
		fmt.Printf("created:     %s\n", p.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		if p.SubmittedAt != nil {
			fmt.Printf("submitted:   %s\n", p.SubmittedAt.Format("2006-01-02 15:04:05 MST"))
		}
		if p.ConfirmedAt != nil {
			fmt.Printf("confirmed:   %s\n", p.ConfirmedAt.Format("2006-01-02 15:04:05 MST"))
		}
		return nil
	},
}

// buildAmount resolves the create flags into an Amount. Exactly one of
// the native forms (--amount as XRP, --drops) or the issued form
// (--amount + --currency + --issuer) must be given.
func buildAmount() (payout.Amount, error) {
	issued := createCurrency != "" || createIssuer != ""

	switch {
	case issued:
		if createDrops != 0 {
			return payout.Amount{}, fmt.Errorf("--drops cannot be combined with --currency/--issuer")
		}
		if createAmount == "" {
			return payout.Amount{}, fmt.Errorf("issued payments require --amount")
		}
		return payout.NewIssuedAmount(createAmount, createCurrency, createIssuer), nil
	case createDrops != 0:
		if createAmount != "" {
			return payout.Amount{}, fmt.Errorf("--amount and --drops are mutually exclusive")
		}
		return payout.NewNativeAmount(createDrops), nil
	case createAmount != "":
		drops, err := payout.ParseXRP(createAmount)
		if err != nil {
			return payout.Amount{}, err
		}
		return payout.NewNativeAmount(drops), nil
	default:
		return payout.Amount{}, fmt.Errorf("one of --amount or --drops is required")
	}
}

func init() {
	paymentCreateCmd.Flags().StringVar(&createDest, "dest", "", "destination classic address (required)")
	paymentCreateCmd.Flags().StringVar(&createAmount, "amount", "", "amount in XRP, or issued value with --currency")
	paymentCreateCmd.Flags().Int64Var(&createDrops, "drops", 0, "native amount in drops")
	paymentCreateCmd.Flags().StringVar(&createCurrency, "currency", "", "issued currency code")
	paymentCreateCmd.Flags().StringVar(&createIssuer, "issuer", "", "issued currency issuer address")
	paymentCreateCmd.Flags().StringVar(&createMemo, "memo", "", "optional memo")
	_ = paymentCreateCmd.MarkFlagRequired("dest")

	paymentListCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum rows to list")

	paymentCmd.AddCommand(paymentCreateCmd, paymentAbortCmd, paymentListCmd, paymentShowCmd)
	rootCmd.AddCommand(paymentCmd)
}
