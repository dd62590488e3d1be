package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"keepmore/internal/domain/item"
	"keepmore/internal/domain/plaidsync"
	"keepmore/internal/domain/subscription"
	"keepmore/internal/domain/user"
	"keepmore/internal/infrastructure/crypto"
	"keepmore/internal/infrastructure/plaid"
	"keepmore/internal/infrastructure/postgres"
	"keepmore/internal/infrastructure/supabase"
	"keepmore/internal/shared/config"
	"keepmore/internal/shared/logger"
)

const usage = `KeepMore Admin CLI - Management commands for the KeepMore API

Usage:
  admin <command> [options]

Commands:
  migrate up|down|version   Apply, roll back or inspect the database schema
  sync                      Sync Plaid data for every linked item
  delete-user               Delete a user's data and auth identity
  subscription              Show a user's stored RevenueCat subscription

Examples:
  # Apply all pending migrations
  admin migrate up

  # Sync all banking items
  admin sync

  # Sync only transactions for one user
  admin sync --user-id=6b1f5c2e-0c1d-4e4a-9d35-2f0a3f9e2a10 --resources=transactions

  # Sync investment holdings with a longer timeout
  admin sync --kind=investments --timeout=15m

  # Delete a user
  admin delete-user --user-id=6b1f5c2e-0c1d-4e4a-9d35-2f0a3f9e2a10

  # Check whether a user's entitlement is active
  admin subscription --user-id=6b1f5c2e-0c1d-4e4a-9d35-2f0a3f9e2a10
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage, "\n")
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "migrate":
		runMigrate(os.Args[2:])
	case "sync":
		runSync(os.Args[2:])
	case "delete-user":
		runDeleteUser(os.Args[2:])
	case "subscription":
		runSubscription(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage, "\n")
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage, "\n")
		os.Exit(1)
	}
}

// setup loads config and opens the database. Failures exit the process.
func setup() (*config.Config, *postgres.DB, *zap.Logger) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: "console", Output: "stderr"})

	db, err := postgres.New(cfg.Database.ConnectionString(), postgres.Pool{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	return cfg, db, log
}

func runMigrate(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: admin migrate up|down|version")
		os.Exit(1)
	}

	_, db, log := setup()
	defer db.Close()

	migrator, err := postgres.NewMigrator(db, log)
	if err != nil {
		log.Fatal("failed to create migrator", zap.Error(err))
	}

	switch args[0] {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down()
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = migrator.Version()
		if err == nil {
			fmt.Printf("version=%d dirty=%t\n", version, dirty)
		}
	default:
		fmt.Printf("Unknown migrate action: %s\n", args[0])
		os.Exit(1)
	}
	if err != nil {
		log.Fatal("migration failed", zap.String("action", args[0]), zap.Error(err))
	}
}

func runSync(args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)

	userID := fs.String("user-id", "", "Only sync this user's items")
	kindStr := fs.String("kind", "transactions", "Item kind: transactions or investments")
	resourcesStr := fs.String("resources", "", "Comma-separated resources (accounts, transactions, recurring, investments)")
	timeout := fs.Duration("timeout", 0, "Timeout for the run (default SYNC_TIMEOUT)")

	fs.Usage = func() {
		fmt.Println("Usage: admin sync [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	kind, err := item.ParseKind(*kindStr)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	var resources []plaidsync.Resource
	for _, part := range strings.Split(*resourcesStr, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		res, err := plaidsync.ParseResource(kind, part)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		resources = append(resources, res)
	}

	cfg, db, log := setup()
	defer db.Close()

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		log.Fatal("failed to create encryptor", zap.Error(err))
	}
	if missing := cfg.Plaid.MissingSettings(); len(missing) > 0 {
		log.Fatal("Plaid is not configured", zap.Strings("missing", missing))
	}

	plaidClient := plaid.NewClient(plaid.BaseURL(cfg.Plaid.Env), cfg.Plaid.ClientID, cfg.Plaid.Secret)
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	recurringRepo := postgres.NewRecurringRepository(db)
	investmentRepo := postgres.NewInvestmentRepository(db)

	items := item.NewService(postgres.NewItemRepository(db), plaidClient, encryptor, nil, item.LinkConfig{}, log)
	engine := plaidsync.NewEngine(items, plaidClient, plaidsync.Stores{
		Accounts:     accountRepo,
		Transactions: transactionRepo,
		Recurring:    recurringRepo,
		Holdings:     investmentRepo,
	}, plaidsync.Options{
		TransactionDays: cfg.Sync.TransactionDays,
		MaxPages:        cfg.Sync.MaxPages,
	}, log)

	if *timeout <= 0 {
		*timeout = cfg.Sync.Timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	run, err := engine.SyncAll(ctx, plaidsync.Filter{UserID: *userID, Kind: kind, Resources: resources})
	if err != nil {
		log.Fatal("sync failed", zap.Error(err))
	}
	printRunResult(run)

	if run.ItemsFailed > 0 {
		os.Exit(2)
	}
}

func printRunResult(run *plaidsync.RunResult) {
	fmt.Printf("\n%s\n", run.Message)
	fmt.Printf("  Items:      %d\n", run.TotalItems)
	fmt.Printf("  Succeeded:  %d\n", run.ItemsSucceeded)
	fmt.Printf("  Failed:     %d\n", run.ItemsFailed)
	fmt.Printf("  Duration:   %v\n", time.Duration(run.Duration)*time.Millisecond)

	for _, r := range run.ItemResults {
		status := "ok"
		if !r.Success {
			status = "FAILED"
		}
		institution := "-"
		if r.InstitutionName != nil {
			institution = *r.InstitutionName
		}
		fmt.Printf("\n=== Item %s (%s) %s ===\n", r.PlaidItemID, institution, status)
		if r.Error != "" {
			fmt.Printf("  Error: %s\n", r.Error)
		}

		names := make([]string, 0, len(r.Results))
		for name := range r.Results {
			names = append(names, string(name))
		}
		sort.Strings(names)
		for _, name := range names {
			rr := r.Results[plaidsync.Resource(name)]
			if rr == nil {
				continue
			}
			if rr.Success {
				fmt.Printf("  %-22s count=%d inserted=%d updated=%d\n", name, rr.Count, rr.Inserted, rr.Updated)
			} else {
				fmt.Printf("  %-22s error=%s\n", name, rr.Error)
			}
		}
	}
}

func runDeleteUser(args []string) {
	fs := flag.NewFlagSet("delete-user", flag.ExitOnError)

	userID := fs.String("user-id", "", "User to delete (required)")
	timeout := fs.Duration("timeout", 2*time.Minute, "Timeout for the operation")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *userID == "" {
		fmt.Println("Error: --user-id is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, db, log := setup()
	defer db.Close()

	deletion := user.NewDeletionService(
		postgres.NewUserDataRepository(db),
		supabase.NewAdminClient(cfg.Supabase.URL, cfg.Supabase.ServiceRoleKey),
		log,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := deletion.DeleteUser(ctx, *userID)
	if err != nil {
		log.Fatal("delete user failed", zap.Error(err))
	}

	fmt.Printf("\n=== User %s deleted ===\n", *userID)
	for _, t := range report.Tables {
		if t.Error != "" {
			fmt.Printf("  %-34s error=%s\n", t.Table, t.Error)
			continue
		}
		fmt.Printf("  %-34s rows=%d\n", t.Table, t.Deleted)
	}
}

func runSubscription(args []string) {
	fs := flag.NewFlagSet("subscription", flag.ExitOnError)

	userID := fs.String("user-id", "", "RevenueCat app user id (required)")
	asJSON := fs.Bool("json", false, "Print the stored row as JSON")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *userID == "" {
		fmt.Println("Error: --user-id is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, db, log := setup()
	defer db.Close()

	reconciler := subscription.NewReconciler(postgres.NewSubscriptionRepository(db), subscription.Options{
		SkipStaleEvents: cfg.RevenueCat.SkipStaleEvents,
	}, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	state, err := reconciler.State(ctx, *userID)
	if err != nil {
		log.Fatal("failed to load subscription", zap.Error(err))
	}
	if state == nil {
		fmt.Printf("No subscription recorded for %s\n", *userID)
		os.Exit(3)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(state); err != nil {
			log.Fatal("failed to encode subscription", zap.Error(err))
		}
		return
	}
	printSubscription(state)
}

func printSubscription(st *subscription.State) {
	deref := func(s *string) string {
		if s == nil {
			return "-"
		}
		return *s
	}
	stamp := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.UTC().Format(time.RFC3339)
	}

	fmt.Printf("\n=== Subscription %s ===\n", st.AppUserID)
	fmt.Printf("  Active:       %t\n", st.IsActive)
	fmt.Printf("  Entitlement:  %s\n", deref(st.EntitlementID))
	fmt.Printf("  Product:      %s\n", deref(st.ProductID))
	fmt.Printf("  Store:        %s (%s)\n", deref(st.Store), deref(st.Environment))
	fmt.Printf("  Period:       %s\n", deref(st.PeriodType))
	fmt.Printf("  Purchased:    %s\n", stamp(st.PurchasedAt))
	fmt.Printf("  Expires:      %s\n", stamp(st.ExpirationAt))
	fmt.Printf("  Last event:   %s %s at %s\n", st.LatestEventType, st.LatestEventID, st.LatestEventAt.UTC().Format(time.RFC3339))
}
