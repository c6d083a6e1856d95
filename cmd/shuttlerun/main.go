package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fieldside/shuttlerun/internal/analysis"
	"github.com/fieldside/shuttlerun/internal/pose"
	"github.com/fieldside/shuttlerun/internal/server"
	"github.com/fieldside/shuttlerun/internal/store"
)

func main() {
	fmt.Println("Shuttlerun - 10x4 Shuttle Run Video Analysis")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}

	dataDir := filepath.Join(homeDir, ".shuttlerun")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "shuttlerun.db")
	st, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	uploadDir := filepath.Join(dataDir, "uploads")
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		log.Fatalf("Failed to create upload directory: %v", err)
	}

	detector, err := pose.NewMediaPipeDetector(pose.DefaultConfig())
	if err != nil {
		log.Fatalf("Failed to initialize pose detector: %v", err)
	}
	defer detector.Close()

	webDir := findWebDir()
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	cfg := server.Config{
		Store:        st,
		Analyzer:     analysis.NewAnalyzer(st.Benchmarks()),
		UploadDir:    uploadDir,
		StaticDir:    webDir,
		PoseDetector: detector,
	}

	srv := server.New(cfg)

	addr := ":8080"
	fmt.Printf("Starting server on %s\n", addr)
	if err := srv.ListenAndServe(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.shuttlerun/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".shuttlerun", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
