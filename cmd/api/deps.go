package main

import (
	"context"

	"go.uber.org/zap"

	"keepmore/internal/domain/analytics"
	"keepmore/internal/domain/embedding"
	"keepmore/internal/domain/item"
	"keepmore/internal/domain/notification"
	"keepmore/internal/domain/plaidsync"
	"keepmore/internal/domain/subscription"
	"keepmore/internal/domain/user"
	"keepmore/internal/domain/waitlist"
	"keepmore/internal/infrastructure/crypto"
	"keepmore/internal/infrastructure/embedder"
	"keepmore/internal/infrastructure/firebase"
	"keepmore/internal/infrastructure/plaid"
	"keepmore/internal/infrastructure/postgres"
	"keepmore/internal/infrastructure/postgres/listener"
	"keepmore/internal/infrastructure/supabase"
	httphandlers "keepmore/internal/interfaces/http"
	"keepmore/internal/shared/auth"
	"keepmore/internal/shared/config"
	"keepmore/internal/shared/messages"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	WebhookHandler   *httphandlers.WebhookHandler
	PlaidHandler     *httphandlers.PlaidHandler
	AccountHandler   *httphandlers.AccountHandler
	AdminHandler     *httphandlers.AdminHandler
	EmbeddingHandler *httphandlers.EmbeddingHandler
	WaitlistHandler  *httphandlers.WaitlistHandler

	// Auth
	Verifier *auth.Verifier

	// Sync (for scheduler and link listener)
	ItemService *item.Service
	Engine      *plaidsync.Engine

	// LinkListener is nil unless SYNC_ON_LINK is set.
	LinkListener *listener.ItemListener
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString(), postgres.Pool{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database")

	if cfg.Database.AutoMigrate {
		migrator, err := postgres.NewMigrator(db, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		if err := migrator.Up(); err != nil {
			db.Close()
			return nil, err
		}
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		db.Close()
		return nil, err
	}

	// Repositories
	itemRepo := postgres.NewItemRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	recurringRepo := postgres.NewRecurringRepository(db)
	investmentRepo := postgres.NewInvestmentRepository(db)
	subscriptionRepo := postgres.NewSubscriptionRepository(db)
	userDataRepo := postgres.NewUserDataRepository(db)
	analyticsRepo := postgres.NewAnalyticsRepository(db)
	embeddingRepo := postgres.NewEmbeddingRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	waitlistRepo := postgres.NewWaitlistRepository(db)

	// External clients
	plaidClient := plaid.NewClient(plaid.BaseURL(cfg.Plaid.Env), cfg.Plaid.ClientID, cfg.Plaid.Secret)
	supabaseAdmin := supabase.NewAdminClient(cfg.Supabase.URL, cfg.Supabase.ServiceRoleKey)

	// Domain services
	cascade := map[item.Kind][]item.ScopedDeleter{
		item.KindBanking:     {transactionRepo, accountRepo, recurringRepo},
		item.KindInvestments: {investmentRepo},
	}
	itemService := item.NewService(itemRepo, plaidClient, encryptor, cascade, item.LinkConfig{
		ClientName:         cfg.Plaid.ClientName,
		Products:           cfg.Plaid.Products,
		CountryCodes:       cfg.Plaid.CountryCodes,
		RedirectURI:        cfg.Plaid.RedirectURI,
		AndroidPackageName: cfg.Plaid.AndroidPackageName,
		WebhookURL:         cfg.Plaid.WebhookURL,
	}, logger)

	engine := plaidsync.NewEngine(itemService, plaidClient, plaidsync.Stores{
		Accounts:     accountRepo,
		Transactions: transactionRepo,
		Recurring:    recurringRepo,
		Holdings:     investmentRepo,
	}, plaidsync.Options{
		TransactionDays: cfg.Sync.TransactionDays,
		MaxPages:        cfg.Sync.MaxPages,
	}, logger)

	if cfg.Firebase.CredentialsFile != "" {
		texts, err := messages.Load(cfg.Firebase.MessagesFile)
		if err != nil {
			db.Close()
			return nil, err
		}
		fcm, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, notificationRepo.DeactivateToken, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		engine.SetNotifier(notification.NewService(notificationRepo, fcm, texts, logger))
		logger.Info("push notifications enabled")
	} else {
		logger.Info("FIREBASE_CREDENTIALS_FILE not set, push notifications disabled")
	}

	reconciler := subscription.NewReconciler(subscriptionRepo, subscription.Options{
		SkipStaleEvents: cfg.RevenueCat.SkipStaleEvents,
	}, logger)
	deletion := user.NewDeletionService(userDataRepo, supabaseAdmin, logger)
	metrics := analytics.NewService(analyticsRepo, supabaseAdmin, logger)
	waitlistService := waitlist.NewService(waitlistRepo, logger)

	var embedClient embedding.Embedder
	if cfg.Embeddings.URL != "" {
		embedClient = embedder.NewClient(cfg.Embeddings.URL, cfg.Embeddings.Model, cfg.Embeddings.APIKey)
	}
	embeddings := embedding.NewService(embeddingRepo, embedClient, logger)

	deps := &Dependencies{
		DB:               db,
		WebhookHandler:   httphandlers.NewWebhookHandler(reconciler, cfg.RevenueCat.WebhookSecret, logger),
		PlaidHandler:     httphandlers.NewPlaidHandler(itemService, engine, cfg.Sync.Timeout, cfg.Plaid.MissingSettings(), logger),
		AccountHandler:   httphandlers.NewAccountHandler(deletion, logger),
		AdminHandler:     httphandlers.NewAdminHandler(metrics, logger),
		EmbeddingHandler: httphandlers.NewEmbeddingHandler(embeddings, logger),
		WaitlistHandler:  httphandlers.NewWaitlistHandler(waitlistService, logger),
		Verifier:         auth.NewVerifier(cfg.Supabase.JWTSecret),
		ItemService:      itemService,
		Engine:           engine,
	}

	if cfg.Sync.OnLink {
		deps.LinkListener = listener.NewItemListener(cfg.Database.ConnectionString(), syncLinkedItem(itemService, engine, cfg, logger), logger)
	}

	return deps, nil
}

// syncLinkedItem runs the first sync of a freshly linked item.
func syncLinkedItem(items *item.Service, engine *plaidsync.Engine, cfg *config.Config, logger *zap.Logger) listener.Handler {
	return func(ctx context.Context, linked listener.LinkedItem) {
		ctx, cancel := context.WithTimeout(ctx, cfg.Sync.Timeout)
		defer cancel()

		it, err := items.Get(ctx, linked.Kind, linked.ID)
		if err != nil {
			logger.Error("failed to load linked item", zap.String("plaid_item_id", linked.ID), zap.Error(err))
			return
		}
		res := engine.SyncItem(ctx, it, plaidsync.ResourcesFor(linked.Kind))
		logger.Info("initial sync finished",
			zap.String("plaid_item_id", linked.ID),
			zap.String("kind", string(linked.Kind)),
			zap.Bool("success", res.Success),
		)
	}
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.LinkListener != nil {
		d.LinkListener.Stop()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
