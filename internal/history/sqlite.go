package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/leafscan/internal/errors"
)

// OpenSQLite opens or creates the SQLite database at path.
func OpenSQLite(path string, slowThreshold time.Duration) (*Store, error) {
	if path == "" {
		return nil, errors.Newf("sqlite path is empty").
			Component("history").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(err).
				Component("history").
				Category(errors.CategoryFileIO).
				FileContext(path, 0).
				Build()
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(slowThreshold))
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: open sqlite: %w", ErrPersistence, err)).
			Component("history").
			Category(errors.CategoryDatabase).
			FileContext(path, 0).
			Build()
	}

	// One writer at a time avoids SQLITE_BUSY under concurrent API requests.
	sqlDB, err := db.DB()
	if err != nil {
		closePool(db)
		return nil, errors.New(fmt.Errorf("%w: %w", ErrPersistence, err)).
			Component("history").
			Category(errors.CategoryDatabase).
			Build()
	}
	sqlDB.SetMaxOpenConns(1)

	return newStore(db, "sqlite", path)
}
