package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/elishakaranja/Mindset-coach/internal/chat"
	"github.com/elishakaranja/Mindset-coach/internal/users"
)

// Open connects to MySQL or SQLite. SQLite connections always run with
// foreign keys enabled so conversation deletes cascade to messages.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	maxOpen := 20
	switch strings.ToLower(driver) {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "", "sqlite":
		dialector = sqlite.Open(withForeignKeys(dsn))
		// one writer at a time; avoids SQLITE_BUSY between pooled connections
		maxOpen = 1
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER=%q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(min(maxOpen, 10))
	if maxOpen > 1 {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return gdb, nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

// Migrate creates or updates users, conversations, messages and chat_jobs.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&users.User{}, &chat.Conversation{}, &chat.Message{}, &chat.Job{})
}

func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
