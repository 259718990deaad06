package cmd

import (
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/frahmantamala/payment-core/internal"
	"github.com/frahmantamala/payment-core/internal/core/events"
	paymentpkg "github.com/frahmantamala/payment-core/internal/payment"
	paymentpostgres "github.com/frahmantamala/payment-core/internal/payment/postgres"
	"github.com/frahmantamala/payment-core/internal/paymentgateway"
	"github.com/frahmantamala/payment-core/internal/wallet"
	walletpostgres "github.com/frahmantamala/payment-core/internal/wallet/postgres"
	"github.com/frahmantamala/payment-core/pkg/logger"
)

// paymentStack is everything a command needs to run payment operations.
type paymentStack struct {
	Config       *internal.Config
	DB           *sqlx.DB
	Gorm         *gorm.DB
	Logger       *slog.Logger
	EventBus     *events.EventBus
	Gateways     *paymentpkg.Registry
	Orchestrator *paymentpkg.Orchestrator
	Wallets      *wallet.Service
}

func (s *paymentStack) Close() {
	if err := s.DB.Close(); err != nil {
		s.Logger.Error("database close error", "error", err)
	}
}

func newPaymentStack(cfg *internal.Config) (*paymentStack, error) {
	log := logger.LoggerWrapper()

	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	precision := paymentpkg.NewPrecision(cfg.Payment.CurrencyPrecision)
	registry, err := paymentgateway.NewRegistry(cfg.Payment.Gateways, precision, cfg.Payment.GatewayTimeout, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to register payment gateways: %w", err)
	}

	eventBus := events.NewEventBus(log)
	txManager := paymentpostgres.NewTxManager(gormDB)

	orchestrator := paymentpkg.NewOrchestrator(
		paymentpostgres.NewPaymentRepository(gormDB),
		paymentpostgres.NewTransactionRepository(gormDB),
		txManager,
		registry,
		eventBus,
		log,
		paymentpkg.Config{
			GatewayTimeout: cfg.Payment.GatewayTimeout,
			Precision:      precision,
		},
	)

	wallets := wallet.NewService(walletpostgres.NewWalletRepository(gormDB), orchestrator, txManager, log)

	return &paymentStack{
		Config:       cfg,
		DB:           db,
		Gorm:         gormDB,
		Logger:       log,
		EventBus:     eventBus,
		Gateways:     registry,
		Orchestrator: orchestrator,
		Wallets:      wallets,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
