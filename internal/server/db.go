// Package server manages the sysreport database layer and the read-only
// report viewer. The collector writes through DB; the viewer only reads.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/vesaa/sysreport/internal/config"
	"github.com/vesaa/sysreport/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const insertBatchSize = 100

// DB persists the rolling store, the archive and the domain report.
type DB struct {
	gorm   *gorm.DB
	logger *slog.Logger
}

// Open opens the database and runs AutoMigrate.
func Open(cfg *config.Config, log *slog.Logger) (*DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite", "":
		dialector = sqlite.Open(sqliteDSN(cfg.DBPath))
	default:
		return nil, fmt.Errorf("unsupported db_driver %q (use 'sqlite')", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(&models.StoreRow{}, &models.ArchiveRow{}, &models.DomainRecord{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	log = log.With("component", "db")
	log.Info("database opened", "driver", cfg.DBDriver, "path", cfg.DBPath)
	return &DB{gorm: db, logger: log}, nil
}

// OpenReader opens an existing database read-only for the viewer. It never
// creates the file, migrates the schema or changes the journal mode.
func OpenReader(cfg *config.Config, log *slog.Logger) (*DB, error) {
	switch cfg.DBDriver {
	case "sqlite", "":
	default:
		return nil, fmt.Errorf("unsupported db_driver %q (use 'sqlite')", cfg.DBDriver)
	}
	if _, err := os.Stat(cfg.DBPath); err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(sqliteReadOnlyDSN(cfg.DBPath)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	log = log.With("component", "db")
	log.Info("database opened read-only", "driver", cfg.DBDriver, "path", cfg.DBPath)
	return &DB{gorm: db, logger: log}, nil
}

// sqliteReadOnlyDSN opens path as a read-only URI; busy_timeout lets reads
// wait out a collector checkpoint.
func sqliteReadOnlyDSN(path string) string {
	return "file:" + path + "?mode=ro&_pragma=busy_timeout(5000)"
}

// sqliteDSN applies per-connection pragmas: WAL lets the viewer read while
// the collector writes, busy_timeout turns short lock waits into retries.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LoadStore returns the persisted window, oldest first. An empty table
// yields an empty slice.
func (d *DB) LoadStore(ctx context.Context) ([]models.Sample, error) {
	var rows []models.StoreRow
	if err := d.gorm.WithContext(ctx).Order("position asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Sample, len(rows))
	for i, r := range rows {
		out[i] = r.Sample()
	}
	return out, nil
}

// SaveStore replaces the whole store table with rows in one transaction.
func (d *DB) SaveStore(ctx context.Context, rows []models.Sample) error {
	records := make([]models.StoreRow, len(rows))
	for i, s := range rows {
		records[i] = models.NewStoreRow(i+1, s)
	}
	return d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.StoreRow{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, insertBatchSize).Error
	})
}

// AppendArchive appends evicted rows in the given order. Existing archive
// rows are never touched.
func (d *DB) AppendArchive(ctx context.Context, rows []models.Sample) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now()
	records := make([]models.ArchiveRow, len(rows))
	for i, s := range rows {
		records[i] = models.NewArchiveRow(s, now)
	}
	err := d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(records, insertBatchSize).Error
	})
	if err != nil {
		return err
	}
	d.logger.Debug("archive appended", "rows", len(records))
	return nil
}

// LoadArchive returns every archived row in append order.
func (d *DB) LoadArchive(ctx context.Context) ([]models.Sample, error) {
	var rows []models.ArchiveRow
	if err := d.gorm.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Sample, len(rows))
	for i, r := range rows {
		out[i] = r.Sample()
	}
	return out, nil
}

// CountArchive returns the number of archived rows.
func (d *DB) CountArchive(ctx context.Context) (int64, error) {
	var n int64
	err := d.gorm.WithContext(ctx).Model(&models.ArchiveRow{}).Count(&n).Error
	return n, err
}

// SaveDomains replaces the domain report with records.
func (d *DB) SaveDomains(ctx context.Context, records []models.DomainRecord) error {
	return d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.DomainRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, insertBatchSize).Error
	})
}

// LoadDomains returns the latest domain report, busiest domain first.
func (d *DB) LoadDomains(ctx context.Context) ([]models.DomainRecord, error) {
	var out []models.DomainRecord
	err := d.gorm.WithContext(ctx).Order("request_count desc").Order("domain asc").Find(&out).Error
	return out, err
}
