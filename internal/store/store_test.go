package store

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/fieldside/shuttlerun/internal/scoring"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := testStore(t)

	tables := []string{"benchmarks", "analysis_jobs"}
	for _, table := range tables {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s should exist: %v", table, err)
		}
	}
}

func TestBenchmarks_SeededForAllGroups(t *testing.T) {
	s := testStore(t)
	repo := s.Benchmarks()

	for _, group := range scoring.AgeGroups() {
		for _, gender := range []string{"M", "F"} {
			b, err := repo.Benchmark(group, gender)
			if err != nil {
				t.Fatalf("missing seed for %s/%s: %v", group, gender, err)
			}
			if !(b.ExcellentMaxS < b.GoodMaxS && b.GoodMaxS < b.AverageMaxS) {
				t.Errorf("%s/%s cut-offs out of order: %+v", group, gender, b)
			}
		}
	}
}

func TestBenchmarks_SeniorValues(t *testing.T) {
	s := testStore(t)

	b, err := s.Benchmarks().Benchmark("Senior", "M")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.ExcellentMaxS != 8.5 || b.GoodMaxS != 10.0 || b.AverageMaxS != 12.0 {
		t.Errorf("unexpected Senior/M cut-offs: %+v", b)
	}

	b, err = s.Benchmarks().Benchmark("Senior", "F")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.ExcellentMaxS != 9.5 {
		t.Errorf("unexpected Senior/F excellent cut-off: %+v", b)
	}
}

func TestBenchmarks_NotFoundNamesTheLookup(t *testing.T) {
	s := testStore(t)

	_, err := s.Benchmarks().Benchmark("U99", "M")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "U99") || !strings.Contains(err.Error(), "gender=M") {
		t.Errorf("error must name the failed lookup: %v", err)
	}
}

func TestBenchmarks_Upsert(t *testing.T) {
	s := testStore(t)
	repo := s.Benchmarks()

	custom := scoring.Benchmark{AgeGroup: "Senior", Gender: "M", ExcellentMaxS: 8.0, GoodMaxS: 9.5, AverageMaxS: 11.5}
	if err := repo.Upsert(custom); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	got, err := repo.Benchmark("Senior", "M")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ExcellentMaxS != 8.0 {
		t.Errorf("upsert did not replace the row: %+v", got)
	}
}

func TestBenchmarks_All(t *testing.T) {
	s := testStore(t)

	all, err := s.Benchmarks().All()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 24 {
		t.Errorf("expected 24 seeded rows, got %d", len(all))
	}
}

func TestJobs_Lifecycle(t *testing.T) {
	s := testStore(t)
	repo := s.Jobs()

	job := &Job{ID: uuid.NewString(), Filename: "run.mp4", Athlete: `{"name":"Jo","age":25,"gender":"M"}`}
	if err := repo.Create(job); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := repo.GetByID(job.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != JobQueued {
		t.Errorf("new jobs must be queued, got %s", got.Status)
	}

	if err := repo.SetRunning(job.ID); err != nil {
		t.Fatalf("set running failed: %v", err)
	}
	if err := repo.SetDone(job.ID, `{"session_id":"x"}`); err != nil {
		t.Fatalf("set done failed: %v", err)
	}

	got, err = repo.GetByID(job.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != JobDone {
		t.Errorf("expected done, got %s", got.Status)
	}
	if got.Result == "" {
		t.Error("result JSON must be stored")
	}
	if got.Error != "" {
		t.Errorf("error must be cleared on success, got %q", got.Error)
	}
}

func TestJobs_Failure(t *testing.T) {
	s := testStore(t)
	repo := s.Jobs()

	job := &Job{ID: uuid.NewString(), Filename: "bad.mp4"}
	if err := repo.Create(job); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.SetFailed(job.ID, "video unreadable"); err != nil {
		t.Fatalf("set failed failed: %v", err)
	}

	got, err := repo.GetByID(job.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != JobFailed || got.Error != "video unreadable" {
		t.Errorf("unexpected job state: %+v", got)
	}
}

func TestJobs_NotFound(t *testing.T) {
	s := testStore(t)

	if _, err := s.Jobs().GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Jobs().SetRunning("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on update, got %v", err)
	}
}

func TestJobs_ListNewestFirst(t *testing.T) {
	s := testStore(t)
	repo := s.Jobs()

	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		if err := repo.Create(&Job{ID: uuid.NewString(), Filename: name}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	jobs, err := repo.List(10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
}
