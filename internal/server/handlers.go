package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldside/shuttlerun/internal/analysis"
	"github.com/fieldside/shuttlerun/internal/report"
	"github.com/fieldside/shuttlerun/internal/scoring"
	"github.com/fieldside/shuttlerun/internal/store"
	"github.com/fieldside/shuttlerun/internal/video"
)

// maxUploadBytes caps the multipart form size (500 MB).
const maxUploadBytes = 500 << 20

// uploadResponse is returned after a successful submission.
type uploadResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// handleUpload handles POST requests to /api/upload. The multipart form
// carries the video file plus the athlete fields.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	athlete, err := athleteFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := optionsFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "video file is required")
		return
	}
	defer file.Close()

	if !video.FormatAllowed(header.Filename) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q; use .mp4, .mov or .webm", header.Filename))
		return
	}

	jobID := uuid.NewString()
	path := filepath.Join(s.config.UploadDir, jobID+filepath.Ext(header.Filename))
	if err := saveUpload(file, path); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	athleteJSON, _ := json.Marshal(athlete)
	job := &store.Job{ID: jobID, Filename: header.Filename, Athlete: string(athleteJSON)}
	if err := s.config.Store.Jobs().Create(job); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	go s.process(jobID, path, athlete, opts)

	writeJSON(w, http.StatusAccepted, uploadResponse{JobID: jobID, Status: string(store.JobQueued)})
}

// athleteFromForm validates the athlete fields of the upload form. The
// API accepts only M/F because ratings need a benchmark row.
func athleteFromForm(r *http.Request) (report.Athlete, error) {
	a := report.Athlete{Name: strings.TrimSpace(r.FormValue("name"))}

	age, err := strconv.Atoi(r.FormValue("age"))
	if err != nil {
		return a, errors.New("age must be an integer")
	}
	if age < 4 || age > 100 {
		return a, fmt.Errorf("age %d out of range [4,100]", age)
	}
	a.Age = age

	gender, ok := scoring.NormalizeGender(r.FormValue("gender"))
	if !ok {
		return a, fmt.Errorf("gender %q not supported (want M or F)", r.FormValue("gender"))
	}
	a.Gender = gender

	if v := r.FormValue("height_cm"); v != "" {
		h, err := strconv.ParseFloat(v, 64)
		if err != nil || h <= 0 {
			return a, errors.New("height_cm must be a positive number")
		}
		a.HeightCM = h
	}
	if v := r.FormValue("weight_kg"); v != "" {
		kg, err := strconv.ParseFloat(v, 64)
		if err != nil || kg <= 0 {
			return a, errors.New("weight_kg must be a positive number")
		}
		a.WeightKG = kg
	}

	return a, a.Validate()
}

func optionsFromForm(r *http.Request) (analysis.Options, error) {
	var opts analysis.Options
	if v := r.FormValue("known_distance_m"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil || d <= 0 {
			return opts, errors.New("known_distance_m must be a positive number")
		}
		opts.KnownDistanceM = d
	}
	if v := r.FormValue("audio_go_s"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t < 0 {
			return opts, errors.New("audio_go_s must be a non-negative number")
		}
		opts.AudioGoS = &t
	}
	return opts, nil
}

func saveUpload(src io.Reader, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}

// handleStatus handles GET requests to /api/status/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/status/")
	job, err := s.config.Store.Jobs().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	resp := map[string]any{
		"job_id":   job.ID,
		"status":   string(job.Status),
		"filename": job.Filename,
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleResult handles GET requests to /api/result/{id}. The stored
// report JSON is returned verbatim once the job is done.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/result/")
	job, err := s.config.Store.Jobs().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	switch job.Status {
	case store.JobDone:
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, job.Result)
	case store.JobFailed:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"status": string(job.Status),
			"error":  job.Error,
		})
	default:
		writeJSON(w, http.StatusConflict, map[string]string{
			"status": string(job.Status),
			"error":  "analysis not finished",
		})
	}
}

// handleBenchmarks handles GET requests to /api/benchmarks.
func (s *Server) handleBenchmarks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	benchmarks, err := s.config.Store.Benchmarks().All()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load benchmarks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"benchmarks": benchmarks})
}

// handleAgeGroups handles GET requests to /api/age-groups.
func (s *Server) handleAgeGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"age_groups": scoring.AgeGroups()})
}
