package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aslanbekov/dormassign/internal/config"
	"github.com/aslanbekov/dormassign/pkg/clients/gmailclient"
	"github.com/aslanbekov/dormassign/pkg/core/model"
	"github.com/aslanbekov/dormassign/pkg/core/services"
	"github.com/aslanbekov/dormassign/pkg/postgres"
	"github.com/aslanbekov/dormassign/pkg/utils/logging"
)

// App holds the application dependencies
type App struct {
	cfg      *config.Config
	oauthCfg *config.OAuthClientConfig
	database *postgres.DB
	logger   *zap.Logger
	ctx      context.Context

	gmailClient *gmailclient.Client
}

var (
	env string
	app *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Dormassign CLI - Manage dormitory admission batches",
		Long:  `A CLI tool for running the dormitory admission pipeline: selection, tier rebalancing, payment reconciliation, room allocation and order issuance.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				if app.database != nil {
					app.database.Close()
				}
				if app.logger != nil {
					app.logger.Sync()
				}
			}
		},
	}

	// Add persistent environment flag
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")

	// Add all commands
	rootCmd.AddCommand(generateSelectionCmd())
	rootCmd.AddCommand(notifyApprovedCmd())
	rootCmd.AddCommand(confirmPaymentsCmd())
	rootCmd.AddCommand(allocateRoomsCmd())
	rootCmd.AddCommand(issueOrdersCmd())
	rootCmd.AddCommand(remindPartialPaymentsCmd())
	rootCmd.AddCommand(reviewEvidenceCmd())
	rootCmd.AddCommand(listDormsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config and database
func initApp() error {
	var err error
	app = &App{
		ctx: context.Background(),
	}

	// Initialize logger
	app.logger, err = logging.InitLogger(env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.logger.Info("Starting application", zap.String("environment", env))

	// Load configuration
	app.logger.Info("Loading configuration")
	app.cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.logger.Debug("Configuration loaded successfully")

	// Load OAuth client configuration
	app.oauthCfg, err = config.LoadOAuthClientWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load OAuth client config: %w", err)
	}

	// Connect to the database and apply pending migrations
	app.logger.Info("Connecting to database")
	connString, err := config.DatabaseURL()
	if err != nil {
		return err
	}
	app.database, err = postgres.NewDB(app.ctx, connString)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := app.database.RunMigrations(app.ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	app.logger.Info("Database initialized successfully")

	return nil
}

// gmail initializes the Gmail client lazily: only notifying commands pay the
// OAuth round trip.
func (a *App) gmail() (*gmailclient.Client, error) {
	if a.gmailClient != nil {
		return a.gmailClient, nil
	}

	a.logger.Info("Initializing gmail client")
	client, err := gmailclient.NewClient(a.ctx, a.oauthCfg, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail client: %w", err)
	}
	a.gmailClient = client

	return client, nil
}

// Command definitions

func generateSelectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generateSelection",
		Short: "Rank pending applications and fill the available places",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.GenerateSelection(app.ctx, app.database, app.logger)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Selection generated!\n\n")
			fmt.Printf("Total places: %d\n", result.TotalPlaces)
			fmt.Printf("Accepted:     %d\n", len(result.Accepted))
			fmt.Printf("Rejected:     %d\n\n", result.RejectedCount)

			for i, a := range result.Accepted {
				fmt.Printf("  %3d. %s %s (score %.2f)\n", i+1, a.FirstName, a.LastName, a.Score)
			}
			fmt.Println()

			return nil
		},
	}
}

func notifyApprovedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notifyApproved",
		Short: "Rebalance cost tiers and request payment from accepted applicants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gmail, err := app.gmail()
			if err != nil {
				return err
			}

			result, err := services.NotifyApproved(app.ctx, app.database, gmail, app.logger)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Payment requests sent!\n\n")
			fmt.Printf("Notified:    %d\n", result.Notified)
			fmt.Printf("Transferred: %d\n", len(result.Transfers))
			for _, t := range result.Transfers {
				fmt.Printf("  application %d: %d -> %d\n", t.ApplicationID, t.FromCost, t.ToCost)
			}

			if len(result.UnresolvedOverflow) > 0 {
				fmt.Printf("\n⚠️  Tiers still over capacity:\n")
				for cost, over := range result.UnresolvedOverflow {
					fmt.Printf("  cost %d: %d applicants over\n", cost, over)
				}
			}

			printFailedNotifications(result.FailedNotifications)

			return nil
		},
	}
}

func confirmPaymentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirmPayments <ledger.csv>",
		Short: "Reconcile a bank ledger export against awaiting payments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := readLedger(args[0])
			if err != nil {
				return err
			}

			result, err := services.ConfirmPayments(app.ctx, app.database, ledger, app.logger)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Payments reconciled!\n\n")
			fmt.Printf("Full payments:    %d\n", result.FullCount)
			fmt.Printf("Half payments:    %d\n", result.HalfCount)
			fmt.Printf("Unresolved:       %d\n", result.UnresolvedCount)
			fmt.Printf("Unmatched apps:   %d\n", result.UnmatchedApplications)

			if len(result.InvalidRows) > 0 {
				fmt.Printf("\n⚠️  Invalid ledger rows: %d\n", len(result.InvalidRows))
			}
			if len(result.UnmatchedRows) > 0 {
				fmt.Printf("\n⚠️  Ledger rows matching no application:\n")
				for _, iin := range result.UnmatchedRows {
					fmt.Printf("  %s\n", iin)
				}
			}
			fmt.Println()

			return nil
		},
	}
}

func allocateRoomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocateRooms",
		Short: "Place paid applicants into rooms by compatibility groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			result, err := services.AllocateRooms(app.ctx, app.database, services.AllocationConfig{
				LowFloorMaxFloor: app.cfg.LowFloor(),
				Languages:        app.cfg.Languages,
				DryRun:           dryRun,
			}, app.logger)
			if err != nil {
				return err
			}

			if result.DryRun {
				fmt.Printf("\n✓ Allocation computed (DRY RUN - nothing saved)\n\n")
			} else {
				fmt.Printf("\n✓ Rooms allocated!\n\n")
			}

			fmt.Printf("Placed:   %d\n", len(result.Placements))
			fmt.Printf("Unplaced: %d\n\n", len(result.Unplaced))

			for _, p := range result.Placements {
				fmt.Printf("  %s -> %s room %s (group %s)\n",
					p.Applicant.FirstName, p.DormName, p.RoomNumber, p.Group)
			}
			if len(result.Unplaced) > 0 {
				fmt.Printf("\n⚠️  No room found for:\n")
				for _, a := range result.Unplaced {
					fmt.Printf("  application %d (%s)\n", a.ApplicationID, a.FirstName)
				}
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "Compute the allocation without saving it")

	return cmd
}

func issueOrdersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issueOrders",
		Short: "Issue move-in orders to room-assigned applicants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gmail, err := app.gmail()
			if err != nil {
				return err
			}

			result, err := services.IssueOrders(app.ctx, app.database, gmail, app.cfg.Concurrency(), app.logger)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Orders issued: %d\n", result.Issued)
			printFailedNotifications(result.FailedNotifications)

			return nil
		},
	}
}

func remindPartialPaymentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remindPartialPayments",
		Short: "Remind half-paid students of the next payment deadline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, err := app.cfg.ReminderSchedule()
			if err != nil {
				return err
			}

			gmail, err := app.gmail()
			if err != nil {
				return err
			}

			result, err := services.RemindPartialPayments(app.ctx, app.database, gmail, schedule, app.logger)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Reminders sent: %d (deadline %s)\n",
				result.Reminded, result.Deadline.Format("2006-01-02"))
			printFailedNotifications(result.FailedNotifications)

			return nil
		},
	}
}

func reviewEvidenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviewEvidence <evidence_id> <approve|reject>",
		Short: "Record a review decision on an evidence record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			evidenceID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("evidence_id must be a number: %w", err)
			}

			var decision model.ReviewState
			switch args[1] {
			case "approve":
				decision = model.ReviewApproved
			case "reject":
				decision = model.ReviewRejected
			default:
				return fmt.Errorf("decision must be approve or reject, got %q", args[1])
			}

			var extractedText string
			if textFile, _ := cmd.Flags().GetString("text-file"); textFile != "" {
				data, err := os.ReadFile(textFile)
				if err != nil {
					return fmt.Errorf("failed to read text file: %w", err)
				}
				extractedText = string(data)
			}

			if err := services.ReviewEvidence(app.ctx, app.database, evidenceID, decision, extractedText, app.logger); err != nil {
				return err
			}

			fmt.Printf("\n✓ Evidence %d %sd\n", evidenceID, args[1])

			return nil
		},
	}

	cmd.Flags().String("text-file", "", "File with the document's extracted text, checked against the type's keywords on approval")

	return cmd
}

func listDormsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listDorms",
		Short: "List all dorms with their rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dorms, err := app.database.GetDorms(app.ctx)
			if err != nil {
				return fmt.Errorf("failed to list dorms: %w", err)
			}

			fmt.Printf("\nFound %d dorms:\n\n", len(dorms))
			for _, d := range dorms {
				fmt.Printf("- %s (cost %d, %d places, %d rooms)\n",
					d.Name, d.Cost, d.TotalPlaces, len(d.Rooms))
				for _, r := range d.Rooms {
					fmt.Printf("    room %s: %d beds\n", r.Number, r.Capacity)
				}
			}
			fmt.Println()

			return nil
		},
	}
}

// readLedger parses a two-column CSV export (identity key, amount). A header
// row is tolerated; anything else that fails to parse is kept as an invalid
// entry so the batch summary reports it.
func readLedger(path string) ([]services.LedgerEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var ledger []services.LedgerEntry
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger row %d: %w", row, err)
		}
		row++

		if len(record) < 2 {
			ledger = append(ledger, services.LedgerEntry{})
			continue
		}

		paid, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			if row == 1 {
				// header row
				continue
			}
			ledger = append(ledger, services.LedgerEntry{IdentityKey: record[0]})
			continue
		}

		ledger = append(ledger, services.LedgerEntry{
			IdentityKey: record[0],
			Paid:        paid,
		})
	}

	return ledger, nil
}

func printFailedNotifications(failed []services.FailedNotification) {
	if len(failed) == 0 {
		return
	}

	fmt.Printf("\n⚠️  Failed to send %d emails:\n", len(failed))
	for _, f := range failed {
		fmt.Printf("  ✗ %s: %s\n", f.Email, f.Error)
	}
	fmt.Println()
}
