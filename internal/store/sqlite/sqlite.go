// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/MahdiBaghbani/pairinbox-go/internal/store"
)

// DBFile is the database file name inside the data dir.
const DBFile = "pairinbox.db"

func init() {
	store.Register("sqlite", NewDriver)
}

// Driver implements store.Driver and store.UIStateStore using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init opens the database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	if err := os.MkdirAll(d.dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(d.dataDir, DBFile)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	if err := db.WithContext(ctx).AutoMigrate(&store.TagState{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsOpen reports the stored state for tag, defaulting to open.
func (d *Driver) IsOpen(ctx context.Context, tag string) (bool, error) {
	if d.db == nil {
		return false, store.ErrClosed
	}
	var st store.TagState
	result := d.db.WithContext(ctx).First(&st, "tag = ?", tag)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return true, nil
		}
		return false, result.Error
	}
	return st.Open, nil
}

// SetOpen upserts the state for tag.
func (d *Driver) SetOpen(ctx context.Context, tag string, open bool) error {
	if d.db == nil {
		return store.ErrClosed
	}
	st := store.TagState{Tag: tag, Open: open, UpdatedAt: time.Now().Unix()}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&st).Error
}
