package history

import (
	"fmt"
	"net"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/leafscan/internal/conf"
	"github.com/tphakala/leafscan/internal/errors"
)

// mysqlDSN builds the driver DSN from settings.
func mysqlDSN(settings conf.MySQLSettings) string {
	cfg := gomysql.NewConfig()
	cfg.User = settings.Username
	cfg.Passwd = settings.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(settings.Host, settings.Port)
	cfg.DBName = settings.Database
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// OpenMySQL connects to the MySQL database in settings.
func OpenMySQL(settings conf.MySQLSettings, slowThreshold time.Duration) (*Store, error) {
	location := fmt.Sprintf("%s:%s/%s", settings.Host, settings.Port, settings.Database)

	db, err := gorm.Open(mysql.Open(mysqlDSN(settings)), gormConfig(slowThreshold))
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: open mysql: %w", ErrPersistence, err)).
			Component("history").
			Category(errors.CategoryDatabase).
			Context("location", location).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		closePool(db)
		return nil, errors.New(fmt.Errorf("%w: %w", ErrPersistence, err)).
			Component("history").
			Category(errors.CategoryDatabase).
			Build()
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return newStore(db, "mysql", location)
}
