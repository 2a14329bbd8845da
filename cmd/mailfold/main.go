package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mailfold/mailfold/internal/api"
	"github.com/mailfold/mailfold/internal/delivery"
	"github.com/mailfold/mailfold/internal/email"
	"github.com/mailfold/mailfold/internal/idempotency"
	"github.com/mailfold/mailfold/internal/store"
	"github.com/mailfold/mailfold/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for mailfold state data
	DefaultStateDir = "/var/lib/mailfold"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "mailfold.db"
	// DefaultAPIAddr is the default HTTP listen address
	DefaultAPIAddr = ":8080"
	// DefaultDeliveryWorkers is the default number of concurrent delivery workers
	DefaultDeliveryWorkers = 1
)

// Config holds environment configuration
type Config struct {
	DatabaseURL      string
	StateDir         string
	APIAddr          string
	BaseURL          string
	EmailProviderURL string
	EmailSender      string
	EmailServerToken string
	EmailSendTimeout time.Duration
	DeliveryWorkers  int
	RetryLimit       int
	RetryWait        time.Duration
	IdempotencyTTL   time.Duration
	ReapInterval     time.Duration
}

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	parseCommandLineFlags(&config)

	if err := run(config); err != nil {
		slog.Error("mailfold failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("mailfold exited successfully")
}

// initializeLogger sets up structured logging
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StateDir:         os.Getenv("MAILFOLD_STATE_DIR"),
		APIAddr:          os.Getenv("API_ADDR"),
		BaseURL:          os.Getenv("BASE_URL"),
		EmailProviderURL: os.Getenv("EMAIL_PROVIDER_URL"),
		EmailSender:      os.Getenv("EMAIL_SENDER"),
		EmailServerToken: os.Getenv("EMAIL_SERVER_TOKEN"),
		EmailSendTimeout: util.ParseDurationEnv("EMAIL_SEND_TIMEOUT", email.DefaultTimeout),
		DeliveryWorkers:  util.ParseIntEnv("DELIVERY_WORKERS", DefaultDeliveryWorkers),
		RetryLimit:       util.ParseIntEnv("DELIVERY_RETRY_LIMIT", delivery.DefaultRetryLimit),
		RetryWait:        util.ParseDurationEnv("DELIVERY_RETRY_WAIT", delivery.DefaultRetryWait),
		IdempotencyTTL:   util.ParseDurationEnv("IDEMPOTENCY_TTL", idempotency.DefaultRecordTTL),
		ReapInterval:     util.ParseDurationEnv("IDEMPOTENCY_REAP_INTERVAL", idempotency.DefaultReapInterval),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No MAILFOLD_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost" + config.APIAddr
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"MAILFOLD_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"BASE_URL", config.BaseURL,
		"EMAIL_PROVIDER_URL", config.EmailProviderURL,
		"EMAIL_SERVER_TOKEN_SET", config.EmailServerToken != "",
		"DELIVERY_WORKERS", config.DeliveryWorkers,
		"DELIVERY_RETRY_LIMIT", config.RetryLimit,
		"DELIVERY_RETRY_WAIT", config.RetryWait,
		"IDEMPOTENCY_TTL", config.IdempotencyTTL)

	return config
}

// parseCommandLineFlags overrides environment configuration with command line arguments
func parseCommandLineFlags(config *Config) {
	addr := flag.String("addr", config.APIAddr, "HTTP listen address")
	dbDSN := flag.String("db-dsn", config.DatabaseURL, "Postgres DSN (falls back to SQLite in the state dir when empty)")
	stateDir := flag.String("state-dir", config.StateDir, "Directory for mailfold state data")
	workers := flag.Int("workers", config.DeliveryWorkers, "Number of concurrent delivery workers")
	flag.Parse()

	config.APIAddr = *addr
	config.DatabaseURL = *dbDSN
	config.StateDir = *stateDir
	config.DeliveryWorkers = *workers
}

// openStore opens the Postgres store when a DSN is configured, and falls
// back to SQLite in the state directory otherwise.
func openStore(config Config) (store.Store, error) {
	if config.DatabaseURL != "" {
		return store.NewPostgresStore(store.WithDSN(config.DatabaseURL))
	}
	dsn := filepath.Join(config.StateDir, DefaultDBFileName)
	slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

func run(config Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(config)
	if err != nil {
		return err
	}
	defer st.Close()

	emailClient := email.NewClient(config.EmailProviderURL, config.EmailSender, config.EmailServerToken, config.EmailSendTimeout)
	gateway := idempotency.NewGateway(st)
	server := api.NewServer(st, gateway, emailClient, config.BaseURL)
	reaper := idempotency.NewReaper(st, config.IdempotencyTTL, config.ReapInterval)

	var wg sync.WaitGroup
	for i := 0; i < config.DeliveryWorkers; i++ {
		worker := delivery.NewWorker(st, emailClient, config.RetryLimit, config.RetryWait)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		reaper.Run(ctx)
	}()

	slog.Info("Bootstrapping mailfold", "addr", config.APIAddr, "workers", config.DeliveryWorkers)
	err = server.Run(ctx, config.APIAddr)

	stop()
	wg.Wait()
	return err
}
