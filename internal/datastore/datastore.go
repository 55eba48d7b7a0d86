// Package datastore persists published indicator tables to a relational
// database so downstream reporting can query them without re-running the
// pipeline.
package datastore

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ninanor/villrein-go/internal/conf"
	"github.com/ninanor/villrein-go/internal/indicator"
)

// IndicatorRow is one published indicator value as stored in the database.
// The (area, year_label) pair is unique: re-exporting a run replaces the
// previous values instead of accumulating duplicates.
type IndicatorRow struct {
	ID         uint   `gorm:"primaryKey"`
	RunID      string `gorm:"index"`
	Area       string `gorm:"uniqueIndex:idx_area_year"`
	YearLabel  string `gorm:"uniqueIndex:idx_area_year"`
	Value      float64
	Lower      float64
	Upper      float64
	Unit       string
	Datasource string
	CreatedAt  time.Time
}

// Interface defines the operations the export stage needs from a database.
type Interface interface {
	Open() error
	Close() error
	SaveIndicator(runID string, records []indicator.Record) error
	GetAllRows() ([]IndicatorRow, error)
	AreaRows(area string) ([]IndicatorRow, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// SQLiteStore implements Interface for SQLite.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// New creates a datastore for the configured output database, or nil when
// no database output is enabled.
func New(settings *conf.Settings) Interface {
	if settings.Output.SQLite.Enabled {
		return &SQLiteStore{Settings: settings}
	}
	return nil
}

// Open sets up the SQLite database connection and migrates the schema.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Output.SQLite.Path
	if path == "" {
		return fmt.Errorf("sqlite output enabled but no path configured")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "SQLite", path)
}

// Close closes the underlying database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveIndicator upserts one indicator table. Rows are keyed on
// (area, year_label), so writing a newer run overwrites the older values
// in place.
func (ds *DataStore) SaveIndicator(runID string, records []indicator.Record) error {
	if ds.DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	rows := make([]IndicatorRow, 0, len(records))
	for i := range records {
		r := &records[i]
		rows = append(rows, IndicatorRow{
			RunID:      runID,
			Area:       r.AreaID,
			YearLabel:  r.YearLabel,
			Value:      r.Value,
			Lower:      r.Lower,
			Upper:      r.Upper,
			Unit:       r.Unit,
			Datasource: string(r.Datasource),
		})
	}
	if len(rows) == 0 {
		return nil
	}

	return ds.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "area"}, {Name: "year_label"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"run_id", "value", "lower", "upper", "unit", "datasource", "created_at",
			}),
		}).Create(&rows).Error
	})
}

// GetAllRows returns every stored indicator row ordered by area and year.
func (ds *DataStore) GetAllRows() ([]IndicatorRow, error) {
	var rows []IndicatorRow
	err := ds.DB.Order("area ASC, year_label ASC").Find(&rows).Error
	return rows, err
}

// AreaRows returns the stored rows for a single management area.
func (ds *DataStore) AreaRows(area string) ([]IndicatorRow, error) {
	var rows []IndicatorRow
	err := ds.DB.Where("area = ?", area).Order("year_label ASC").Find(&rows).Error
	return rows, err
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&IndicatorRow{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      false,
		},
	)
}
