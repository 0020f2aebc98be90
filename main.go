package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/username/optionledger/src/broker"
	"github.com/username/optionledger/src/config"
	"github.com/username/optionledger/src/database"
	"github.com/username/optionledger/src/handlers"
	"github.com/username/optionledger/src/ledger"
	"github.com/username/optionledger/src/logger"
	"github.com/username/optionledger/src/models"
	"github.com/username/optionledger/src/security/validation"
	"github.com/username/optionledger/src/services"
	"golang.org/x/time/rate"
)

var dbPathFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:           "optionledger",
		Short:         "Track option assignment events from a brokerage account",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadConfig()
			logger.InitLogger(config.Cfg.LogLevel)
			if dbPathFlag != "" {
				config.Cfg.DatabasePath = dbPathFlag
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db-path", "", "database path (overrides DATABASE_PATH)")

	rootCmd.AddCommand(newBackfillCmd(), newStatusCmd(), newTickerCmd(), newCheckCmd(), newSnapshotCmd(), newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openLedger() (*sql.DB, ledger.Ledger, error) {
	db, err := database.Open(config.Cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, ledger.NewSQLiteLedger(db), nil
}

func newBrokerClient() (services.BrokerClient, error) {
	if config.Cfg.BrokerProvider == "sim" {
		return broker.NewSimClient(), nil
	}
	return broker.NewSchwabClient(config.Cfg)
}

func newBackfillCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Backfill historical assignments from the broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("days") {
				days = config.Cfg.DefaultLookbackDays
			}
			if err := validation.ValidateLookbackDays(days); err != nil {
				return err
			}
			db, ldg, err := openLedger()
			if err != nil {
				return err
			}
			defer db.Close()

			client, err := newBrokerClient()
			if err != nil {
				return err
			}

			sync := services.NewAssignmentSyncService(client, ldg, config.Cfg.SchwabAccountID)
			end := time.Now().UTC()
			start := end.AddDate(0, 0, -days)

			summary, err := sync.Backfill(context.Background(), start, end)
			if err != nil {
				return fmt.Errorf("backfill failed: %w", err)
			}

			printSyncSummary(summary)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "days to look back")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var recent int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show assignment ledger statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, ldg, err := openLedger()
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := context.Background()

			summary, err := ldg.Summary(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Total assignments recorded: %d\n", summary.TotalAssignments)
			fmt.Printf("Recent assignments (30d):   %d\n\n", summary.RecentAssignments)

			if len(summary.ByTicker) > 0 {
				table := tablewriter.NewWriter(os.Stdout)
				table.SetHeader([]string{"Ticker", "Assignments", "Total Shares"})
				for _, ts := range summary.ByTicker {
					table.Append([]string{ts.Ticker, strconv.FormatInt(ts.Count, 10), strconv.FormatInt(ts.TotalShares, 10)})
				}
				table.Render()
			}

			if recent > 0 {
				events, err := ldg.RecentAssignments(ctx, recent)
				if err != nil {
					return err
				}
				fmt.Printf("\nRecent assignments (%d days):\n", recent)
				printEvents(events)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 0, "also list assignments from the last N days")
	return cmd
}

func newTickerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ticker <SYMBOL>",
		Short: "Show assignment impact for one ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, ldg, err := openLedger()
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := context.Background()
			ticker := strings.ToUpper(strings.TrimSpace(args[0]))
			if err := validation.ValidateTicker(ticker); err != nil {
				return err
			}

			basis, err := ldg.Basis(ctx, ticker)
			if err != nil {
				return err
			}
			if basis == nil {
				fmt.Printf("No assignments recorded for %s\n", ticker)
				return nil
			}

			fmt.Printf("Assignment impact for %s\n", ticker)
			fmt.Printf("  Total assigned shares: %d\n", basis.TotalShares)
			fmt.Printf("  Total cost:            $%.2f\n", basis.TotalCost)
			fmt.Printf("  Average basis:         $%.2f\n", basis.AvgBasis)
			fmt.Printf("  Assignments:           %d\n", basis.AssignmentCount)
			fmt.Printf("  Last assignment:       %s\n\n", basis.LastAssignment.Format("2006-01-02"))

			events, err := ldg.AssignmentsForTicker(ctx, ticker, 10)
			if err != nil {
				return err
			}
			printEvents(events)
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	var lookback int
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the recent window for new assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("lookback") {
				lookback = config.Cfg.CheckLookbackDays
			}
			if err := validation.ValidateLookbackDays(lookback); err != nil {
				return err
			}
			db, ldg, err := openLedger()
			if err != nil {
				return err
			}
			defer db.Close()

			client, err := newBrokerClient()
			if err != nil {
				return err
			}

			sync := services.NewAssignmentSyncService(client, ldg, config.Cfg.SchwabAccountID)
			summary, err := sync.CheckRecent(context.Background(), lookback)
			if err != nil {
				return fmt.Errorf("assignment check failed: %w", err)
			}

			if summary.New > 0 {
				fmt.Printf("NEW ASSIGNMENTS DETECTED (%d)\n\n", summary.New)
				printEvents(summary.Events)
			} else {
				fmt.Println("No new assignments detected")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&lookback, "lookback", 3, "days to look back")
	return cmd
}

func newSnapshotCmd() *cobra.Command {
	var checkAssignments bool
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print an account snapshot, checking for new assignments first",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, ldg, err := openLedger()
			if err != nil {
				return err
			}
			defer db.Close()

			client, err := newBrokerClient()
			if err != nil {
				return err
			}

			sync := services.NewAssignmentSyncService(client, ldg, config.Cfg.SchwabAccountID)
			snapshotService := services.NewSnapshotService(client, sync, config.Cfg.CheckLookbackDays)
			snapshotService.CheckAssignments = checkAssignments

			snapshot, err := snapshotService.Run(context.Background())
			if err != nil {
				return fmt.Errorf("snapshot failed: %w", err)
			}

			printSnapshot(snapshot)
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkAssignments, "check-assignments", true, "check the recent window for new assignments")
	return cmd
}

var serveLimiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !serveLimiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the assignment ledger over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, ldg, err := openLedger()
			if err != nil {
				return err
			}
			defer db.Close()

			client, err := newBrokerClient()
			if err != nil {
				return err
			}
			sync := services.NewAssignmentSyncService(client, ldg, config.Cfg.SchwabAccountID)

			r := chi.NewRouter()
			r.Use(middleware.RequestID)
			r.Use(middleware.Recoverer)
			r.Use(rateLimitMiddleware)

			handler := handlers.NewAssignmentHandler(ldg, sync, config.Cfg.CheckLookbackDays)
			r.Route("/api/assignments", handler.RegisterRoutes)

			addr := ":" + config.Cfg.Port
			logger.L.Info("HTTP server listening", "addr", addr)
			return http.ListenAndServe(addr, r)
		},
	}
}

func printSyncSummary(summary models.SyncSummary) {
	fmt.Printf("Processed %d transactions: %d new, %d skipped, %d failed\n",
		summary.Processed, summary.New, summary.Skipped, summary.Failed)
	if summary.New > 0 {
		fmt.Println()
		printEvents(summary.Events)
	}
}

func printEvents(events []models.AssignmentEvent) {
	if len(events) == 0 {
		fmt.Println("  (none)")
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Date", "Ticker", "Contract", "Shares", "Price"})
	for _, e := range events {
		price := "TBD"
		if e.PricePerShare != nil {
			price = fmt.Sprintf("$%.2f", *e.PricePerShare)
		}
		table.Append([]string{
			e.AssignedAt.Format("2006-01-02"),
			e.Ticker,
			e.OptionSymbol,
			strconv.FormatInt(e.Shares, 10),
			price,
		})
	}
	table.Render()
}

func printSnapshot(snapshot *models.AccountSnapshot) {
	fmt.Printf("Account snapshot at %s\n", snapshot.GeneratedAt.Format(time.RFC3339))
	fmt.Printf("  Cash:         $%s\n", snapshot.Cash.StringFixed(2))
	fmt.Printf("  Buying power: $%s\n", snapshot.BuyingPower.StringFixed(2))
	if snapshot.LiquidationValue != nil {
		fmt.Printf("  Liquidation:  $%s\n", snapshot.LiquidationValue.StringFixed(2))
	} else {
		fmt.Printf("  Total value:  $%s\n", snapshot.TotalValue().StringFixed(2))
	}

	if len(snapshot.Stocks) > 0 {
		fmt.Println("\nStocks:")
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Symbol", "Qty", "Avg Cost", "Price", "P&L"})
		for _, p := range snapshot.Stocks {
			table.Append([]string{
				p.Symbol, p.Qty.String(),
				p.AvgCost.StringFixed(2), p.MarketPrice.StringFixed(2),
				p.PNL().StringFixed(2),
			})
		}
		table.Render()
	}

	if len(snapshot.Funds) > 0 {
		fmt.Println("\nFunds:")
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Symbol", "Qty", "Avg Cost", "NAV", "P&L"})
		for _, p := range snapshot.Funds {
			table.Append([]string{
				p.Symbol, p.Qty.String(),
				p.AvgCost.StringFixed(2), p.MarketPrice.StringFixed(2),
				p.PNL().StringFixed(2),
			})
		}
		table.Render()
	}

	if len(snapshot.Options) > 0 {
		fmt.Println("\nOptions:")
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Contract", "Qty", "Avg Cost", "Price", "Total P&L"})
		for _, p := range snapshot.Options {
			table.Append([]string{
				p.ContractSymbol, p.Qty.String(),
				p.AvgCost.StringFixed(2), p.MarketPrice.StringFixed(2),
				p.TotalPNL().StringFixed(2),
			})
		}
		table.Render()
	}
}
