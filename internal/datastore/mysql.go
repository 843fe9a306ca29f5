package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MySQLStore implements Interface for MySQL.
type MySQLStore struct {
	DataStore
	cfg *Config
}

// Open sets up the MySQL connection and migrates the schema.
func (store *MySQLStore) Open() error {
	if store.cfg.Host == "" || store.cfg.Database == "" {
		return fmt.Errorf("mysql host and database are required")
	}
	port := store.cfg.Port
	if port == "" {
		port = "3306"
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		store.cfg.Username, store.cfg.Password,
		store.cfg.Host, port, store.cfg.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogLevel(store.cfg.Debug)})
	if err != nil {
		return fmt.Errorf("failed to open MySQL database: %w", err)
	}

	store.DB = db
	return performAutoMigration(db)
}

func gormLogLevel(debug bool) logger.Interface {
	if debug {
		return logger.Default.LogMode(logger.Info)
	}
	return logger.Default.LogMode(logger.Silent)
}
