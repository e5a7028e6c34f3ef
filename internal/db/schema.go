package db

// SchemaSQL is the complete schema for fresh podium installs.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. Tests load it
// via GetSchemaSQL() instead of hardcoding CREATE TABLE statements, so
// repository code referencing a column that does not exist here fails
// immediately with "no such column" at development time.
const SchemaSQL = `
-- Contests (one row per upstream contest, including synthetic stages)
CREATE TABLE IF NOT EXISTS contests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	key TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	rated INTEGER NOT NULL DEFAULT 0,
	invisible INTEGER NOT NULL DEFAULT 0,
	calculate_time INTEGER NOT NULL DEFAULT 0,
	stage INTEGER NOT NULL DEFAULT 0,
	info_json TEXT NOT NULL DEFAULT '{}',
	fields_json TEXT NOT NULL DEFAULT '[]',
	problems_json TEXT NOT NULL DEFAULT '[]',
	next_attempt_time DATETIME,
	last_success_time DATETIME,
	consecutive_errors INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(source, key)
);

CREATE INDEX IF NOT EXISTS idx_contests_source ON contests(source);
CREATE INDEX IF NOT EXISTS idx_contests_next_attempt ON contests(next_attempt_time);
CREATE INDEX IF NOT EXISTS idx_contests_window ON contests(start_time, end_time);

-- Accounts (one row per participant per source)
CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	key TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	rating INTEGER,
	n_contests INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(source, key)
);

-- Statistics (the canonical contest x account join)
CREATE TABLE IF NOT EXISTS statistics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	contest_id INTEGER NOT NULL,
	account_id INTEGER NOT NULL,
	place TEXT NOT NULL DEFAULT '',
	place_as_int INTEGER NOT NULL DEFAULT 0,
	solving REAL NOT NULL DEFAULT 0,
	addition_json TEXT NOT NULL DEFAULT '{}',
	skip_in_stats INTEGER NOT NULL DEFAULT 0,
	new_rating INTEGER,
	rating_change INTEGER,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(contest_id, account_id),
	FOREIGN KEY (contest_id) REFERENCES contests(id) ON DELETE CASCADE,
	FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_statistics_contest ON statistics(contest_id);
CREATE INDEX IF NOT EXISTS idx_statistics_account ON statistics(account_id);

-- Problem aggregates (recomputed per reconciliation pass)
CREATE TABLE IF NOT EXISTS problem_aggregates (
	contest_id INTEGER NOT NULL,
	short TEXT NOT NULL,
	n_attempts INTEGER NOT NULL DEFAULT 0,
	n_accepted INTEGER NOT NULL DEFAULT 0,
	UNIQUE(contest_id, short),
	FOREIGN KEY (contest_id) REFERENCES contests(id) ON DELETE CASCADE
);

-- Rating runs (content hash of the last successful rating computation)
CREATE TABLE IF NOT EXISTS rating_runs (
	contest_id INTEGER PRIMARY KEY,
	content_hash TEXT NOT NULL,
	computed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (contest_id) REFERENCES contests(id) ON DELETE CASCADE
);
`

// InitSchema creates the database schema
func InitSchema() error {
	db, err := GetDB()
	if err != nil {
		return err
	}

	if _, err := db.Exec(SchemaSQL); err != nil {
		return err
	}

	// Version marker so future migrations have a hook point.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (1)")
	return err
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
