// Package capture persists raw memory captures so derivations can be replayed
// offline against a frozen tick.
package capture

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when no capture matches.
var ErrNotFound = errors.New("capture not found")

// Config selects the database backing the store.
type Config struct {
	Driver string // "sqlite" or "postgres"
	DSN    string // file path for sqlite, connection string for postgres
}

// Store reads and writes captures.
type Store struct {
	DB     *gorm.DB
	logger *slog.Logger
}

// Open connects to the configured database.
func Open(cfg Config, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	gormCfg := &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        500,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		db, err = gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
	case "postgres":
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		}), gormCfg)
	default:
		return nil, fmt.Errorf("unknown capture driver: %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening capture db: %w", err)
	}

	log.Debug("Opened capture store", "driver", db.Dialector.Name())
	return &Store{DB: db, logger: log}, nil
}

// Migrate creates or updates the capture tables.
func (s *Store) Migrate() error {
	if err := s.DB.AutoMigrate(&Capture{}, &Region{}, &EntityRow{}); err != nil {
		return fmt.Errorf("migrating capture tables: %w", err)
	}
	return nil
}

// Save inserts c with its regions and entities and assigns c.ID.
func (s *Store) Save(c *Capture) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(c).Error
	})
	if err != nil {
		return fmt.Errorf("saving capture: %w", err)
	}
	s.logger.Info("Saved capture", "id", c.ID, "label", c.Label,
		"regions", len(c.Regions), "entities", len(c.Entities))
	return nil
}

// Load returns the capture with the given id.
func (s *Store) Load(id uint) (*Capture, error) {
	return s.first(s.DB.Where("id = ?", id))
}

// Latest returns the most recently saved capture.
func (s *Store) Latest() (*Capture, error) {
	return s.first(s.DB.Order("id DESC"))
}

func (s *Store) first(q *gorm.DB) (*Capture, error) {
	var c Capture
	err := q.
		Preload("Regions", func(db *gorm.DB) *gorm.DB { return db.Order("base") }).
		Preload("Entities", func(db *gorm.DB) *gorm.DB { return db.Order("slot") }).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("loading capture: %w", err)
	}
	return &c, nil
}

// Delete removes a capture and its rows.
func (s *Store) Delete(id uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("capture_id = ?", id).Delete(&Region{}).Error; err != nil {
			return err
		}
		if err := tx.Where("capture_id = ?", id).Delete(&EntityRow{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Capture{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
