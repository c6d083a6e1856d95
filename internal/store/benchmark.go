package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/fieldside/shuttlerun/internal/scoring"
)

// BenchmarkRepository resolves rating cut-offs. It implements
// scoring.BenchmarkSource.
type BenchmarkRepository struct {
	db *sql.DB
}

// Benchmarks returns the benchmark repository for this store.
func (s *Store) Benchmarks() *BenchmarkRepository {
	return &BenchmarkRepository{db: s.db}
}

// Benchmark retrieves the cut-offs for one age group and gender.
func (r *BenchmarkRepository) Benchmark(ageGroup, gender string) (scoring.Benchmark, error) {
	b := scoring.Benchmark{AgeGroup: ageGroup, Gender: gender}

	err := r.db.QueryRow(
		`SELECT excellent_max_s, good_max_s, average_max_s
		 FROM benchmarks WHERE age_group = ? AND gender = ?`,
		ageGroup, gender,
	).Scan(&b.ExcellentMaxS, &b.GoodMaxS, &b.AverageMaxS)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scoring.Benchmark{}, fmt.Errorf("benchmark age_group=%s gender=%s: %w", ageGroup, gender, ErrNotFound)
		}
		return scoring.Benchmark{}, err
	}

	return b, nil
}

// All lists every benchmark row ordered by age group and gender.
func (r *BenchmarkRepository) All() ([]scoring.Benchmark, error) {
	rows, err := r.db.Query(
		`SELECT age_group, gender, excellent_max_s, good_max_s, average_max_s
		 FROM benchmarks ORDER BY age_group, gender`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scoring.Benchmark
	for rows.Next() {
		var b scoring.Benchmark
		if err := rows.Scan(&b.AgeGroup, &b.Gender, &b.ExcellentMaxS, &b.GoodMaxS, &b.AverageMaxS); err != nil {
			return nil, err
		}
		out = append(out, b)
	}

	return out, rows.Err()
}

// Upsert replaces the cut-offs for one age group and gender.
func (r *BenchmarkRepository) Upsert(b scoring.Benchmark) error {
	_, err := r.db.Exec(
		`INSERT INTO benchmarks (age_group, gender, excellent_max_s, good_max_s, average_max_s)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(age_group, gender) DO UPDATE SET
			excellent_max_s = excluded.excellent_max_s,
			good_max_s = excluded.good_max_s,
			average_max_s = excluded.average_max_s`,
		b.AgeGroup, b.Gender, b.ExcellentMaxS, b.GoodMaxS, b.AverageMaxS,
	)
	return err
}
