package server

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/fieldside/shuttlerun/internal/analysis"
	"github.com/fieldside/shuttlerun/internal/report"
	"github.com/fieldside/shuttlerun/internal/video"
)

// analysisTimeout bounds one job end to end.
const analysisTimeout = 10 * time.Minute

// process runs one analysis job: extraction, preflight, pipeline,
// persistence. It runs on its own goroutine per upload; progress is
// published to the WebSocket hub at each stage.
func (s *Server) process(jobID, path string, athlete report.Athlete, opts analysis.Options) {
	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
	defer cancel()
	defer os.Remove(path)

	jobs := s.config.Store.Jobs()
	if err := jobs.SetRunning(jobID); err != nil {
		log.Printf("job %s: failed to mark running: %v", jobID, err)
		return
	}

	fail := func(stage string, err error) {
		log.Printf("job %s: %s failed: %v", jobID, stage, err)
		if dbErr := jobs.SetFailed(jobID, err.Error()); dbErr != nil {
			log.Printf("job %s: failed to record failure: %v", jobID, dbErr)
		}
		s.hub.Publish(jobID, Progress{Stage: "failed", Message: err.Error()})
	}

	s.hub.Publish(jobID, Progress{Stage: "extracting", Percent: 10})
	ext, err := s.extract(ctx, path)
	if err != nil {
		fail("extraction", err)
		return
	}

	s.hub.Publish(jobID, Progress{Stage: "preflight", Percent: 40})
	preflight := video.Check(ext.Meta, ext.Stats)
	if !preflight.Valid {
		fail("preflight", &preflightError{preflight})
		return
	}

	s.hub.Publish(jobID, Progress{Stage: "analyzing", Percent: 60})
	rep, err := s.config.Analyzer.Analyze(ctx, analysis.FromExtraction(ext, athlete, opts))
	if err != nil {
		fail("analysis", err)
		return
	}

	payload, err := json.Marshal(rep)
	if err != nil {
		fail("encoding", err)
		return
	}
	if err := jobs.SetDone(jobID, string(payload)); err != nil {
		log.Printf("job %s: failed to store result: %v", jobID, err)
		return
	}
	s.hub.Publish(jobID, Progress{Stage: "done", Percent: 100})
}

// preflightError renders the failed preflight comments as one message.
type preflightError struct {
	p video.Preflight
}

func (e *preflightError) Error() string {
	msg := "video failed preflight"
	for _, c := range e.p.Comments {
		msg += "; " + c
	}
	return msg
}
