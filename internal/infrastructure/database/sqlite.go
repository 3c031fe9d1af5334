package database

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	_ "modernc.org/sqlite"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

// NewSQLiteDB opens a pure-Go SQLite database and hands the connection to GORM.
// ":memory:" is pinned to one connection so every query sees the same database.
func NewSQLiteDB(path string, gcfg *gorm.Config, log *zap.Logger) (*gorm.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if gcfg == nil {
		gcfg = &gorm.Config{}
	}
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", Conn: sqlDB}), gcfg)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open gorm sqlite: %w", err)
	}

	if log != nil {
		log.Info("✅ Database connected successfully",
			zap.String("driver", "sqlite"),
			zap.String("path", path),
		)
	}
	return db, nil
}

// Models lists every persisted entity
func Models() []interface{} {
	return []interface{}{
		&entities.RawTranscript{},
		&entities.NormalizedTranscript{},
		&entities.SpeakerMapping{},
		&entities.PIITag{},
		&entities.EvidencePointer{},
		&entities.ExtractionRun{},
		&entities.Decision{},
		&entities.ActionItem{},
		&entities.Issue{},
		&entities.AuditLogEntry{},
		&entities.DocumentProcessingResult{},
	}
}

// AutoMigrateModels creates or updates tables from the entity definitions
func AutoMigrateModels(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
