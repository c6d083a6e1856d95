package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Benchmarks table - rating cut-offs per age group and gender
		`CREATE TABLE IF NOT EXISTS benchmarks (
			age_group TEXT NOT NULL,
			gender TEXT NOT NULL CHECK(gender IN ('M', 'F')),
			excellent_max_s REAL NOT NULL,
			good_max_s REAL NOT NULL,
			average_max_s REAL NOT NULL,
			PRIMARY KEY (age_group, gender)
		)`,

		// Analysis jobs table - one row per uploaded video
		`CREATE TABLE IF NOT EXISTS analysis_jobs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL CHECK(status IN ('queued', 'running', 'done', 'failed')),
			filename TEXT NOT NULL,
			athlete TEXT NOT NULL DEFAULT '{}',
			result TEXT,
			error TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_analysis_jobs_status ON analysis_jobs(status)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}

// seedBenchmarks inserts the default rating cut-offs. Existing rows are
// left untouched so operators can tune them.
func (s *Store) seedBenchmarks() error {
	seeds := []struct {
		group                    string
		gender                   string
		excellent, good, average float64
	}{
		{"U6", "M", 14.0, 16.0, 18.0},
		{"U6", "F", 15.0, 17.0, 19.0},
		{"U8", "M", 13.0, 15.0, 17.0},
		{"U8", "F", 14.0, 16.0, 18.0},
		{"U10", "M", 12.0, 14.0, 16.0},
		{"U10", "F", 13.0, 15.0, 17.0},
		{"U12", "M", 11.5, 13.0, 15.0},
		{"U12", "F", 12.5, 14.0, 16.0},
		{"U14", "M", 10.5, 12.0, 14.0},
		{"U14", "F", 11.5, 13.0, 15.0},
		{"U16", "M", 9.5, 11.0, 13.0},
		{"U16", "F", 10.5, 12.0, 14.0},
		{"U18", "M", 9.0, 10.5, 12.5},
		{"U18", "F", 10.0, 11.5, 13.5},
		{"U20", "M", 8.7, 10.2, 12.2},
		{"U20", "F", 9.7, 11.2, 13.2},
		{"Senior", "M", 8.5, 10.0, 12.0},
		{"Senior", "F", 9.5, 11.0, 13.0},
		{"Masters-35-44", "M", 9.0, 10.5, 12.5},
		{"Masters-35-44", "F", 10.0, 11.5, 13.5},
		{"Masters-45-54", "M", 9.8, 11.3, 13.3},
		{"Masters-45-54", "F", 10.8, 12.3, 14.3},
		{"Masters-55-plus", "M", 10.8, 12.3, 14.3},
		{"Masters-55-plus", "F", 11.8, 13.3, 15.3},
	}

	for _, b := range seeds {
		_, err := s.db.Exec(
			`INSERT OR IGNORE INTO benchmarks (age_group, gender, excellent_max_s, good_max_s, average_max_s)
			 VALUES (?, ?, ?, ?, ?)`,
			b.group, b.gender, b.excellent, b.good, b.average,
		)
		if err != nil {
			return err
		}
	}

	return nil
}
