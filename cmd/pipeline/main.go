package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/johnquangdev/meeting-intelligence/internal/adapter/repository"
	"github.com/johnquangdev/meeting-intelligence/internal/infrastructure/cache"
	"github.com/johnquangdev/meeting-intelligence/internal/infrastructure/database"
	"github.com/johnquangdev/meeting-intelligence/internal/infrastructure/storage"
	"github.com/johnquangdev/meeting-intelligence/internal/usecase/audit"
	"github.com/johnquangdev/meeting-intelligence/pkg/ai"
	"github.com/johnquangdev/meeting-intelligence/pkg/config"
)

const usage = `Usage: pipeline <command> [flags]

Commands:
  migrate             apply database migrations
  ingest              store a raw transcript read from a JSON file
  import-assemblyai   fetch a completed AssemblyAI transcript and ingest it
  normalize           build the PII-tagged normalized transcript of a raw one
  extract             extract decisions and action items for a meeting
  process             run the document pipeline on one file
  batch               run the document pipeline on several files
  export              upload the training-safe copy of a normalized transcript
  purge               delete normalized transcripts past their retention

Run "pipeline <command> -h" for command flags.
`

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"migrate":           runMigrate,
	"ingest":            runIngest,
	"import-assemblyai": runImportAssemblyAI,
	"normalize":         runNormalize,
	"extract":           runExtract,
	"process":           runProcess,
	"batch":             runBatch,
	"export":            runExport,
	"purge":             runPurge,
}

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("❌ Failed to initialize dependencies", zap.Error(err))
		return 1
	}
	defer a.Close()

	if err := cmd(ctx, a, os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		logger.Error("❌ Command failed", zap.String("command", os.Args[1]), zap.Error(err))
		return 1
	}
	return 0
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Server.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg.Level = level
	return zcfg.Build()
}

// app holds the dependencies shared by every command
type app struct {
	cfg      *config.Config
	policy   *config.Policy
	logger   *zap.Logger
	db       *gorm.DB
	recorder *audit.Recorder

	// store is nil unless object storage is enabled
	store storage.ObjectStore
	minio *storage.MinIOClient

	// completer is nil when no completion API key is configured
	completer ai.Completer
	model     string
	cache     interface{ Close() error }
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	policy, err := config.LoadPolicy(cfg.Pipeline.PolicyFile)
	if err != nil {
		return nil, err
	}

	logger.Info("📦 Connecting to database...", zap.String("driver", cfg.Database.Driver))
	db, err := database.Open(cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		policy:   policy,
		logger:   logger,
		db:       db,
		recorder: audit.NewRecorder(repository.NewIssueRepository(db), repository.NewAuditLogRepository(db), logger),
		model:    cfg.Completion.Model,
	}

	if cfg.Storage.Enabled {
		logger.Info("📦 Connecting to object storage...", zap.String("endpoint", cfg.Storage.Endpoint))
		client, err := storage.NewMinIOClient(ctx, &cfg.Storage)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.minio = client
		a.store = client
	}

	if cfg.Completion.APIKey != "" {
		chat := ai.NewChatClient(&cfg.Completion, ai.WithLogger(logger))
		store, err := responseStore(ctx, cfg, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.cache = store
		a.model = chat.Model()
		a.completer = ai.NewCachingCompleter(chat, store, chat.Model(), cfg.Completion.CacheTTL, logger)
	} else {
		logger.Warn("⚠️  No completion API key configured; analysis and completion generation are unavailable")
	}

	return a, nil
}

type closingStore interface {
	ai.ResponseStore
	Close() error
}

func responseStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (closingStore, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryStore(time.Minute), nil
	}
	logger.Info("📦 Connecting to Redis...", zap.String("addr", cfg.GetRedisAddr()))
	store, err := cache.NewRedisStore(ctx, cfg, "completion:")
	if err != nil {
		return nil, err
	}
	return store, nil
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("Failed to close response cache", zap.Error(err))
		}
	}
	if err := database.CloseDB(a.db); err != nil {
		a.logger.Warn("Failed to close database", zap.Error(err))
	}
}
