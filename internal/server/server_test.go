package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldside/shuttlerun/internal/analysis"
	"github.com/fieldside/shuttlerun/internal/pose"
	"github.com/fieldside/shuttlerun/internal/store"
	"github.com/fieldside/shuttlerun/internal/track"
	"github.com/fieldside/shuttlerun/internal/video"
)

// syntheticExtract replays a scripted clean run instead of decoding a
// real video, keeping the tests free of OpenCV.
func syntheticExtract(ctx context.Context, path string) (*video.Extraction, error) {
	script := pose.DefaultRunScript()
	samples := pose.SyntheticRun(script)

	ext := &video.Extraction{
		Meta: video.Meta{
			Filename: filepath.Base(path), FPS: script.FPS,
			Width: 1920, Height: 1080, TotalFrames: len(samples),
		},
		Samples: samples,
		Stats:   video.ContentStats{LineVisibleFrac: 0.95, AthleteVisibleFrac: 0.9, AvgMotionPct: 8},
	}
	a := pose.Point2D{X: script.AX, Y: script.LaneY}
	b := pose.Point2D{X: script.BX, Y: script.LaneY}
	for _, s := range samples {
		ext.TimestampsS = append(ext.TimestampsS, s.TimestampS)
		ext.Observations = append(ext.Observations, track.Observation{
			FrameIdx:   s.FrameIdx,
			TimestampS: s.TimestampS,
			A:          track.Marker{Center: a, Confidence: 0.95, Found: true},
			B:          track.Marker{Center: b, Confidence: 0.95, Found: true},
		})
	}
	ext.Meta.DurationS = ext.TimestampsS[len(ext.TimestampsS)-1]
	return ext, nil
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	s := New(Config{
		Store:     st,
		Analyzer:  analysis.NewAnalyzer(st.Benchmarks()),
		UploadDir: t.TempDir(),
		Extract:   syntheticExtract,
	})
	return s, st
}

func uploadBody(t *testing.T, filename string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("video", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte("not a real video")); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	mw.Close()
	return body, mw.FormDataContentType()
}

func athleteFields() map[string]string {
	return map[string]string{"name": "Jo", "age": "25", "gender": "M"}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestUpload_FullFlow(t *testing.T) {
	s, _ := newTestServer(t)

	body, contentType := uploadBody(t, "run.mp4", athleteFields())
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("expected a job id")
	}

	status := waitForJob(t, s, resp.JobID)
	if status != string(store.JobDone) {
		t.Fatalf("expected job to finish, got %s", status)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/result/"+resp.JobID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result struct {
		SessionID       string `json:"session_id"`
		Completed       bool   `json:"completed"`
		TouchesDetected int    `json:"touches_detected"`
		AgeGroup        string `json:"age_group"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("bad result JSON: %v", err)
	}
	if result.SessionID == "" {
		t.Error("result must carry a session id")
	}
	if !result.Completed || result.TouchesDetected != 4 {
		t.Errorf("expected a completed 4-touch run, got %+v", result)
	}
	if result.AgeGroup != "Senior" {
		t.Errorf("expected Senior age group, got %q", result.AgeGroup)
	}
}

func waitForJob(t *testing.T, s *Server, jobID string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status/"+jobID, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status returned %d: %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad status JSON: %v", err)
		}
		switch store.JobStatus(resp.Status) {
		case store.JobDone:
			return resp.Status
		case store.JobFailed:
			t.Fatalf("job failed: %s", resp.Error)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("job did not finish in time")
	return ""
}

func TestUpload_Validation(t *testing.T) {
	s, _ := newTestServer(t)

	cases := []struct {
		name     string
		filename string
		fields   map[string]string
		mention  string
	}{
		{"missing file", "", athleteFields(), "video file"},
		{"bad format", "run.avi", athleteFields(), "format"},
		{"missing age", "run.mp4", map[string]string{"name": "Jo", "gender": "M"}, "age"},
		{"age too low", "run.mp4", map[string]string{"name": "Jo", "age": "3", "gender": "M"}, "age"},
		{"age too high", "run.mp4", map[string]string{"name": "Jo", "age": "101", "gender": "M"}, "age"},
		{"bad gender", "run.mp4", map[string]string{"name": "Jo", "age": "25", "gender": "X"}, "gender"},
		{"missing name", "run.mp4", map[string]string{"name": " ", "age": "25", "gender": "M"}, "name"},
		{"bad distance", "run.mp4", mergeFields(athleteFields(), "known_distance_m", "-5"), "known_distance_m"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			body, contentType := uploadBody(t, c.filename, c.fields)
			req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), c.mention) {
				t.Errorf("error must mention %q: %s", c.mention, rec.Body.String())
			}
		})
	}
}

func mergeFields(base map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(base)+1)
	for key, val := range base {
		out[key] = val
	}
	out[k] = v
	return out
}

func TestStatus_NotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestResult_Pending(t *testing.T) {
	s, st := newTestServer(t)

	job := &store.Job{ID: "pending-job", Filename: "run.mp4"}
	if err := st.Jobs().Create(job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/result/pending-job", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for a pending job, got %d", rec.Code)
	}
}

func TestBenchmarksEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/benchmarks", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Benchmarks []json.RawMessage `json:"benchmarks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if len(resp.Benchmarks) != 24 {
		t.Errorf("expected 24 benchmarks, got %d", len(resp.Benchmarks))
	}
}

func TestAgeGroupsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/age-groups", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		AgeGroups []string `json:"age_groups"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if len(resp.AgeGroups) != 12 {
		t.Errorf("expected 12 age groups, got %v", resp.AgeGroups)
	}
}

func TestProgressHub_Broadcast(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/progress/job-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// Give the server a moment to register the subscription.
	waitFor(t, func() bool {
		s.hub.mu.RLock()
		defer s.hub.mu.RUnlock()
		return len(s.hub.subs["job-1"]) == 1
	})

	s.hub.Publish("job-1", Progress{Stage: "analyzing", Percent: 60})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var p Progress
	if err := conn.ReadJSON(&p); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if p.Stage != "analyzing" || p.Percent != 60 {
		t.Errorf("unexpected progress message: %+v", p)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/upload"},
		{http.MethodPost, "/api/benchmarks"},
		{http.MethodPost, "/api/age-groups"},
		{http.MethodPost, "/api/status/x"},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(c.method, c.path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected 405, got %d", c.method, c.path, rec.Code)
		}
	}
}
