package segment

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/vaibh/diarization-pipeline/internal/audio"
	"github.com/vaibh/diarization-pipeline/internal/types"
)

// ManifestName is the sidecar file recording every materialized slice.
const ManifestName = "segment_info.json"

// Materializer slices a source waveform along merged segment boundaries and
// writes each slice as a WAV file plus a JSON manifest.
type Materializer struct {
	sampleRate int
	outputDir  string
}

// NewMaterializer creates a materializer writing into outputDir.
func NewMaterializer(sampleRate int, outputDir string) (*Materializer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create segment directory: %w", err)
	}
	return &Materializer{sampleRate: sampleRate, outputDir: outputDir}, nil
}

// Slice extracts the sample span of one merged segment. Time bounds are
// converted to sample indices by rounding and clamped to the waveform.
func Slice(samples []int16, seg types.MergedSegment, sampleRate int) []int16 {
	start := int(math.Round(seg.StartTime * float64(sampleRate)))
	end := int(math.Round(seg.EndTime * float64(sampleRate)))
	if start < 0 {
		start = 0
	}
	if end > len(samples) {
		end = len(samples)
	}
	if start >= end {
		return nil
	}
	out := make([]int16, end-start)
	copy(out, samples[start:end])
	return out
}

// Write materializes every segment in order. A failure to write one slice is
// logged and that slice skipped; the remaining segments still materialize.
// The manifest is persisted last so it only lists slices that exist on disk.
func (m *Materializer) Write(samples []int16, segments []types.MergedSegment) ([]types.SliceInfo, error) {
	slices := make([]types.SliceInfo, 0, len(segments))

	for i, seg := range segments {
		data := Slice(samples, seg, m.sampleRate)
		if len(data) == 0 {
			log.Printf("Segment %d maps to an empty sample span, skipping", i)
			continue
		}

		path := filepath.Join(m.outputDir, fmt.Sprintf("segment_%03d.wav", i))
		if err := audio.WriteFile(path, data, m.sampleRate); err != nil {
			log.Printf("Failed to write segment %d: %v", i, err)
			continue
		}

		slices = append(slices, types.SliceInfo{
			SegmentID: fmt.Sprintf("seg_%03d", i),
			StartTime: seg.StartTime,
			EndTime:   seg.EndTime,
			Duration:  seg.Duration,
			FilePath:  path,
		})
	}

	if err := m.writeManifest(slices); err != nil {
		log.Printf("Failed to write segment manifest: %v", err)
	}

	return slices, nil
}

// writeManifest persists the slice records for resumability and debugging.
// Non-ASCII text is preserved unescaped.
func (m *Materializer) writeManifest(slices []types.SliceInfo) error {
	path := filepath.Join(m.outputDir, ManifestName)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(slices)
}

// ReadManifest loads a previously written manifest.
func ReadManifest(dir string) ([]types.SliceInfo, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("failed to read segment manifest: %w", err)
	}
	var slices []types.SliceInfo
	if err := json.Unmarshal(data, &slices); err != nil {
		return nil, fmt.Errorf("failed to parse segment manifest: %w", err)
	}
	return slices, nil
}
