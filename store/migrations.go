package store

func (s *Store) runMigrations() error {
	migrations := []string{
		// one row per model bundle present on disk
		`CREATE TABLE IF NOT EXISTS models (
			tag TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			sha256 TEXT NOT NULL DEFAULT '',
			downloaded_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
