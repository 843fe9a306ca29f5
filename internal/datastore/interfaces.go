// interfaces.go defines the interface for the storage operations used by
// the fetch-and-persist pipeline and the query surface.
package datastore

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/weatherdash/weather-api-handler/internal/models"
)

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error
	// UpsertLocation looks up by (name, country, region); on a hit it
	// refreshes the mutable fields and returns the existing id, otherwise
	// it inserts a new row. Not atomic across the read-then-write; a
	// concurrent duplicate insert surfaces as a storage error from the
	// unique constraint.
	UpsertLocation(loc *models.Location) (uint, error)
	// AppendReading inserts one immutable reading tied to locationID,
	// storing both the normalized fields and the raw payload verbatim.
	AppendReading(locationID uint, snap *models.Snapshot, raw []byte) (uint, error)
	// RecentReadings returns the most recent reading per distinct city
	// name among the given names, reconstructed into the provider shape.
	RecentReadings(cityNames []string, limit int) ([]models.Snapshot, error)
	Counts() (locations, readings int64, err error)
	Ping() error
}

// Config holds connection settings for the relational store.
type Config struct {
	Engine   string // "mysql" or "sqlite"
	Host     string
	Port     string
	Database string // file path for sqlite
	Username string
	Password string
	Debug    bool
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a store for the configured engine.
func New(cfg *Config) (Interface, error) {
	switch cfg.Engine {
	case "mysql":
		return &MySQLStore{cfg: cfg}, nil
	case "sqlite":
		return &SQLiteStore{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("unsupported storage engine %q", cfg.Engine)
	}
}

// performAutoMigration creates or updates the locations and weather tables
// with their indexes. Called from Open; mirrors the schema bootstrap the
// service performs at startup.
func performAutoMigration(db *gorm.DB) error {
	if err := db.AutoMigrate(&Location{}, &Weather{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
