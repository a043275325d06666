package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 5

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial ledger schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id INTEGER,
					name TEXT NOT NULL,
					type TEXT NOT NULL CHECK (type IN ('INCOME', 'EXPENSE')),
					grp TEXT NOT NULL,
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE UNIQUE INDEX idx_categories_owner_name ON categories(COALESCE(user_id, 0), name)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					user_id INTEGER NOT NULL,
					type TEXT NOT NULL CHECK (type IN ('INCOME', 'EXPENSE')),
					amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
					date DATETIME NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					category_id INTEGER REFERENCES categories(id),
					recurrence_unit TEXT,
					recurrence_interval INTEGER,
					is_paid INTEGER NOT NULL DEFAULT 0,
					hash TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL,
					deleted_at DATETIME
				)`,
				`CREATE INDEX idx_transactions_user_date ON transactions(user_id, date)`,
				`CREATE INDEX idx_transactions_user_hash ON transactions(user_id, hash)`,

				`CREATE TABLE IF NOT EXISTS transaction_links (
					id TEXT PRIMARY KEY,
					user_id INTEGER NOT NULL,
					source_id TEXT NOT NULL REFERENCES transactions(id),
					target_id TEXT NOT NULL REFERENCES transactions(id),
					amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
					link_type TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					CHECK (source_id <> target_id)
				)`,
				`CREATE INDEX idx_links_source ON transaction_links(source_id)`,
				`CREATE INDEX idx_links_target ON transaction_links(target_id)`,
				`CREATE INDEX idx_links_user_type ON transaction_links(user_id, link_type)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Add financial profiles with indicator cache",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS profiles (
					user_id INTEGER PRIMARY KEY,
					level INTEGER NOT NULL DEFAULT 1 CHECK (level >= 1),
					xp INTEGER NOT NULL DEFAULT 0 CHECK (xp >= 0),
					target_tps TEXT NOT NULL,
					target_rdr TEXT NOT NULL,
					target_ili TEXT NOT NULL,
					cache_tps TEXT,
					cache_rdr TEXT,
					cache_ili TEXT,
					cache_income TEXT,
					cache_expense TEXT,
					cache_debt TEXT,
					cache_updated_at DATETIME,
					locked_at DATETIME,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Add missions, mission progress and XP awards",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS missions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					title TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					mission_type TEXT NOT NULL,
					strategy TEXT NOT NULL,
					target_tps TEXT,
					target_rdr TEXT,
					min_ili TEXT,
					target_reduction_pct TEXT,
					spending_limit TEXT,
					target_change_pct TEXT,
					target_amount TEXT,
					target_goal_pct TEXT,
					target_category_id INTEGER REFERENCES categories(id),
					goal_id INTEGER,
					min_transactions INTEGER NOT NULL DEFAULT 0,
					min_weekly_transactions INTEGER NOT NULL DEFAULT 0,
					duration_days INTEGER NOT NULL CHECK (duration_days >= 0),
					reward_xp INTEGER NOT NULL CHECK (reward_xp >= 0),
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS mission_progress (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id INTEGER NOT NULL,
					mission_id INTEGER NOT NULL REFERENCES missions(id),
					status TEXT NOT NULL CHECK (status IN ('PENDING', 'ACTIVE', 'COMPLETED', 'FAILED')),
					progress REAL NOT NULL DEFAULT 0 CHECK (progress >= 0 AND progress <= 100),
					baseline TEXT,
					metrics TEXT,
					message TEXT NOT NULL DEFAULT '',
					started_at DATETIME,
					completed_at DATETIME,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL,
					UNIQUE (user_id, mission_id)
				)`,
				`CREATE INDEX idx_progress_user_status ON mission_progress(user_id, status)`,

				`CREATE TABLE IF NOT EXISTS xp_awards (
					id TEXT PRIMARY KEY,
					user_id INTEGER NOT NULL,
					progress_id INTEGER NOT NULL UNIQUE REFERENCES mission_progress(id),
					mission_id INTEGER NOT NULL,
					points INTEGER NOT NULL,
					level_before INTEGER NOT NULL,
					xp_before INTEGER NOT NULL,
					level_after INTEGER NOT NULL,
					xp_after INTEGER NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_xp_awards_user ON xp_awards(user_id)`,

				// Audit records are append-only.
				`CREATE TRIGGER xp_awards_no_update
				BEFORE UPDATE ON xp_awards
				BEGIN
					SELECT RAISE(ABORT, 'xp_awards is append-only');
				END`,
				`CREATE TRIGGER xp_awards_no_delete
				BEFORE DELETE ON xp_awards
				BEGIN
					SELECT RAISE(ABORT, 'xp_awards is append-only');
				END`,
			})
		},
	},
	{
		Version:     4,
		Description: "Add goals and goal contributions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS goals (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id INTEGER NOT NULL,
					name TEXT NOT NULL,
					target_cents INTEGER NOT NULL CHECK (target_cents > 0),
					current_cents INTEGER NOT NULL DEFAULT 0,
					deadline DATETIME,
					created_at DATETIME NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS goal_contributions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					goal_id INTEGER NOT NULL REFERENCES goals(id),
					amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
					date DATETIME NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_goal_contributions_goal_date ON goal_contributions(goal_id, date)`,
			})
		},
	},
	{
		Version:     5,
		Description: "Seed default global categories",
		Up: func(tx *sql.Tx) error {
			defaults := []struct {
				name string
				typ  string
				grp  string
			}{
				{"Salary", "INCOME", "income"},
				{"Other Income", "INCOME", "income"},
				{"Savings Deposit", "INCOME", "savings"},
				{"Investment Contribution", "INCOME", "investment"},
				{"Housing", "EXPENSE", "essential_expense"},
				{"Groceries", "EXPENSE", "essential_expense"},
				{"Utilities", "EXPENSE", "essential_expense"},
				{"Transportation", "EXPENSE", "essential_expense"},
				{"Health", "EXPENSE", "essential_expense"},
				{"Dining Out", "EXPENSE", "lifestyle_expense"},
				{"Entertainment", "EXPENSE", "lifestyle_expense"},
				{"Shopping", "EXPENSE", "lifestyle_expense"},
				{"Savings Withdrawal", "EXPENSE", "savings"},
				{"Investment Redemption", "EXPENSE", "investment"},
				{"Loan Payment", "EXPENSE", "debt"},
				{"Credit Card Payment", "EXPENSE", "debt"},
			}

			stmt, err := tx.Prepare(`INSERT OR IGNORE INTO categories (user_id, name, type, grp, is_active) VALUES (NULL, ?, ?, ?, 1)`)
			if err != nil {
				return fmt.Errorf("failed to prepare category insert: %w", err)
			}
			defer func() { _ = stmt.Close() }()

			for _, cat := range defaults {
				if _, err := stmt.Exec(cat.name, cat.typ, cat.grp); err != nil {
					return fmt.Errorf("failed to seed category %q: %w", cat.name, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
