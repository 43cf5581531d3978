// cmd/swapctl/main.go

// swapctl quotes crypto swaps and ranks wallet balances from the terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"crypto-swap/internal/config"
	"crypto-swap/internal/exchange"
	"crypto-swap/internal/feed"
	"crypto-swap/internal/sumton"
	"crypto-swap/internal/wallet"
	"crypto-swap/pkg/logger"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	configFile string
	pricesFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "swapctl",
		Short:         "Quote crypto swaps against the live price feed",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path (default: ./config/config.yaml)")
	root.PersistentFlags().StringVar(&opts.pricesFile, "prices", "", "read prices from a local feed file instead of FEED_URL")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log feed activity to stderr")

	root.AddCommand(
		newQuoteCmd(opts),
		newCurrenciesCmd(opts),
		newWalletCmd(opts),
		newSumCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "swapctl %s (%s)\n", version, commit)
		},
	}
}

func newQuoteCmd(opts *options) *cobra.Command {
	var reverse bool

	cmd := &cobra.Command{
		Use:   "quote FROM TO AMOUNT",
		Short: "Convert AMOUNT of FROM into TO",
		Long: `Convert AMOUNT of FROM into TO at the current rate.

With --reverse AMOUNT is what should be received in TO and the
required FROM amount is printed instead.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := exchange.Selection{From: args[0], To: args[1]}
			if err := exchange.ValidateSelection(sel); err != nil {
				return err
			}
			if _, ok := exchange.ParseAmount(args[2]); !ok {
				return fmt.Errorf("%s: %w", args[2], exchange.ErrInvalidAmount)
			}

			table, err := loadTable(cmd.Context(), opts)
			if err != nil {
				return err
			}

			dir := exchange.Forward
			if reverse {
				dir = exchange.Reverse
			}
			amount, ok := table.Derive(sel, args[2], dir)
			if !ok {
				return fmt.Errorf("%s/%s: %w", sel.From, sel.To, exchange.ErrRateUnavailable)
			}
			rate, _ := table.Rate(sel)

			out := cmd.OutOrStdout()
			if reverse {
				fmt.Fprintf(out, "%s %s = %s %s\n", amount, sel.From, args[2], sel.To)
			} else {
				fmt.Fprintf(out, "%s %s = %s %s\n", args[2], sel.From, amount, sel.To)
			}
			fmt.Fprintf(out, "rate: 1 %s = %s %s\n", sel.From, rate.StringFixed(exchange.Precision), sel.To)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reverse, "reverse", false, "treat AMOUNT as the TO amount")
	return cmd
}

func newCurrenciesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "currencies [query]",
		Short: "List priced currencies",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := loadTable(cmd.Context(), opts)
			if err != nil {
				return err
			}

			query := ""
			if len(args) == 1 {
				query = args[0]
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SYMBOL\tPRICE\tUPDATED")
			for _, q := range table.Search(query) {
				fmt.Fprintf(w, "%s\t%s\t%s\n", q.Symbol, q.Price.String(), q.Date.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func newWalletCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "wallet FILE",
		Short: "Rank the balances in a JSON file",
		Long:  "Rank the balances in FILE, a JSON array of {currency, amount, blockchain}. Use - for stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			var balances []wallet.Balance
			if err := json.NewDecoder(r).Decode(&balances); err != nil {
				return fmt.Errorf("decode balances: %w", err)
			}

			table, err := loadTable(cmd.Context(), opts)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BLOCKCHAIN\tCURRENCY\tAMOUNT\tUSD")
			for _, row := range wallet.Rank(balances, table) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.Blockchain, row.Currency, row.Formatted, row.USDValue.StringFixed(2))
			}
			return w.Flush()
		},
	}
}

func newSumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sum N",
		Short: "Sum the integers 1..N three ways",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid N %q: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "iterative: %d\n", sumton.SumIterative(n))
			fmt.Fprintf(out, "formula:   %d\n", sumton.SumFormula(n))
			// deep recursion is slow and grows the stack
			if n <= 1_000_000 {
				fmt.Fprintf(out, "recursive: %d\n", sumton.SumRecursive(n))
			}
			return nil
		},
	}
}

func loadTable(ctx context.Context, opts *options) (*exchange.PriceTable, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.pricesFile != "" {
		body, err := os.ReadFile(opts.pricesFile)
		if err != nil {
			return nil, err
		}
		records, _, err := feed.Decode(body)
		if err != nil {
			return nil, err
		}
		return feed.BuildTable(records), nil
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := zap.NewNop()
	if opts.verbose {
		if log, err = logger.New("swapctl", "development", "debug"); err != nil {
			return nil, err
		}
		defer log.Sync()
	}

	src := feed.NewHTTPSource(cfg.FeedURL, feed.HTTPOptions{
		Timeout: cfg.FeedTimeout,
		Retries: cfg.FeedRetries,
	}, log)
	records, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return feed.BuildTable(records), nil
}
