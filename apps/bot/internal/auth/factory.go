package auth

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	ModeMemory = "memory"
	ModeSQLite = "sqlite"
)

// NewService builds the manager for mode. db is only used in sqlite mode.
func NewService(mode string, db *sql.DB, sessionTTL time.Duration, allow Allowlist) (Service, error) {
	switch mode {
	case ModeMemory:
		return NewManager(sessionTTL, allow), nil
	case ModeSQLite:
		if db == nil {
			return nil, fmt.Errorf("auth mode %s needs a database", ModeSQLite)
		}
		return NewSQLiteManager(db, sessionTTL, allow)
	default:
		return nil, fmt.Errorf("invalid auth mode %q (supported: %s, %s)", mode, ModeMemory, ModeSQLite)
	}
}
