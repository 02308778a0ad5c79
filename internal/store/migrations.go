package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Registrations table - one row per gallery enrolment
		`CREATE TABLE IF NOT EXISTS registrations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			samples INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Sightings table - recognised people, newest last
		`CREATE TABLE IF NOT EXISTS sightings (
			id TEXT PRIMARY KEY,
			registration_id TEXT REFERENCES registrations(id) ON DELETE SET NULL,
			name TEXT NOT NULL,
			distance REAL NOT NULL,
			tracking_id INTEGER,
			seen_at DATETIME NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_registrations_name ON registrations(name)`,
		`CREATE INDEX IF NOT EXISTS idx_sightings_name ON sightings(name)`,
		`CREATE INDEX IF NOT EXISTS idx_sightings_seen_at ON sightings(seen_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
