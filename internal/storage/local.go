package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vaibh/diarization-pipeline/internal/types"
)

// LocalStore persists session artifacts to the local filesystem.
type LocalStore struct {
	outputDir string
}

// NewLocalStore creates a local artifact store rooted at outputDir.
func NewLocalStore(outputDir string) *LocalStore {
	return &LocalStore{outputDir: outputDir}
}

// SavedArtifacts lists where one session's artifacts landed.
type SavedArtifacts struct {
	TranscriptPath  string
	DiarizationPath string
}

// SaveSession writes the canonical diarization JSON and the plain transcript
// text into a dated directory. Non-ASCII text is preserved unescaped.
func (s *LocalStore) SaveSession(requestName string, transcript *types.Transcript) (*SavedArtifacts, error) {
	now := time.Now()
	dateDir := filepath.Join(s.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create date directory: %w", err)
	}

	timestamp := now.Format("20060102_150405")
	base := fmt.Sprintf("%s_%s", timestamp, sanitizeFilename(requestName))

	txtPath := filepath.Join(dateDir, base+".txt")
	jsonPath := filepath.Join(dateDir, base+"_diarization.json")

	if err := os.WriteFile(txtPath, []byte(transcript.Transcript), 0644); err != nil {
		return nil, fmt.Errorf("failed to save transcript text: %w", err)
	}

	f, err := os.Create(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create diarization file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(transcript); err != nil {
		return nil, fmt.Errorf("failed to save diarization JSON: %w", err)
	}

	return &SavedArtifacts{TranscriptPath: txtPath, DiarizationPath: jsonPath}, nil
}

// sanitizeFilename strips path separators and caps the length.
func sanitizeFilename(name string) string {
	result := filepath.Base(name)
	if result == "." || result == string(filepath.Separator) {
		result = "untitled"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
