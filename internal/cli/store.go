package cli

import (
	"fmt"

	"go.uber.org/zap"

	"rlm/config"
	"rlm/internal/adapter/memstore"
	"rlm/internal/adapter/store"
	"rlm/internal/port"
)

// openLedgerStore opens the project's ledger database and brings its schema
// up to date. With noDB the results live in memory for this run only.
func openLedgerStore(noDB bool) (port.LedgerStore, error) {
	if noDB {
		return memstore.NewMemoryStore(), nil
	}

	cfg := GetConfig()
	rootDir := GetRootDir()

	if err := config.EnsureRLMDir(rootDir); err != nil {
		return nil, fmt.Errorf("failed to create .rlm directory: %w", err)
	}

	dbPath := cfg.LedgerDBPath(rootDir)
	st, err := store.NewBoltStore(dbPath, cfg.Ledger.OpenTimeout)
	if err != nil {
		return nil, err
	}

	migrationResult, err := st.CheckMigration()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to check migration: %w", err)
	}

	if migrationResult.NeedsRebuild {
		GetLogger().Warn("clearing stored results",
			zap.String("db", dbPath),
			zap.String("reason", migrationResult.Reason))
		if err := st.Clear(); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to clear ledger: %w", err)
		}
	}
	if migrationResult.NeedsRebuild || migrationResult.NeedsMigration {
		if err := st.Migrate(); err != nil {
			st.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	return st, nil
}
