package segment

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/vaibh/diarization-pipeline/internal/audio"
	"github.com/vaibh/diarization-pipeline/internal/types"
)

func TestMaterializerWrite(t *testing.T) {
	dir := t.TempDir()
	sampleRate := 16000

	m, err := NewMaterializer(sampleRate, dir)
	if err != nil {
		t.Fatalf("NewMaterializer failed: %v", err)
	}

	// Two seconds of audio, two segments.
	samples := make([]int16, 2*sampleRate)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}
	segments := []types.MergedSegment{
		{StartTime: 0, EndTime: 0.5, Duration: 0.5},
		{StartTime: 1.0, EndTime: 2.0, Duration: 1.0},
	}

	slices, err := m.Write(samples, segments)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(slices) != 2 {
		t.Fatalf("Expected 2 slices, got %d", len(slices))
	}

	if slices[0].SegmentID != "seg_000" || slices[1].SegmentID != "seg_001" {
		t.Errorf("Wrong segment IDs: %s, %s", slices[0].SegmentID, slices[1].SegmentID)
	}

	// Slice boundaries round-trip: the last written slice must end at the
	// final merged segment's end time.
	last := slices[len(slices)-1]
	if math.Abs(last.EndTime-segments[len(segments)-1].EndTime) > 1e-9 {
		t.Errorf("Last slice end %f != final segment end %f", last.EndTime, segments[1].EndTime)
	}

	for _, s := range slices {
		data, rate, err := audio.LoadFile(s.FilePath)
		if err != nil {
			t.Fatalf("Failed to load slice %s: %v", s.SegmentID, err)
		}
		if rate != sampleRate {
			t.Errorf("Slice %s sample rate %d, want %d", s.SegmentID, rate, sampleRate)
		}
		wantSamples := int(math.Round(s.Duration * float64(sampleRate)))
		if len(data) != wantSamples {
			t.Errorf("Slice %s has %d samples, want %d", s.SegmentID, len(data), wantSamples)
		}
	}
}

func TestMaterializerManifest(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMaterializer(16000, dir)
	if err != nil {
		t.Fatalf("NewMaterializer failed: %v", err)
	}

	samples := make([]int16, 16000)
	for i := range samples {
		samples[i] = 500
	}
	segments := []types.MergedSegment{{StartTime: 0, EndTime: 1, Duration: 1}}

	if _, err := m.Write(samples, segments); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, ManifestName)); err != nil {
		t.Fatalf("Manifest not written: %v", err)
	}

	loaded, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].SegmentID != "seg_000" {
		t.Errorf("Unexpected manifest contents: %+v", loaded)
	}
}

func TestMaterializerSkipsEmptySpans(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMaterializer(16000, dir)
	if err != nil {
		t.Fatalf("NewMaterializer failed: %v", err)
	}

	samples := make([]int16, 8000) // half a second
	segments := []types.MergedSegment{
		{StartTime: 0, EndTime: 0.25, Duration: 0.25},
		{StartTime: 5, EndTime: 6, Duration: 1}, // beyond the waveform
	}

	slices, err := m.Write(samples, segments)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(slices) != 1 {
		t.Fatalf("Expected 1 slice (out-of-range span skipped), got %d", len(slices))
	}
}

func TestSliceBounds(t *testing.T) {
	samples := make([]int16, 1000)
	for i := range samples {
		samples[i] = int16(i)
	}

	tests := []struct {
		name    string
		seg     types.MergedSegment
		wantLen int
	}{
		{"whole range", types.MergedSegment{StartTime: 0, EndTime: 1}, 1000},
		{"clamped end", types.MergedSegment{StartTime: 0.5, EndTime: 2}, 500},
		{"inverted", types.MergedSegment{StartTime: 2, EndTime: 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slice(samples, tt.seg, 1000)
			if len(got) != tt.wantLen {
				t.Errorf("Expected %d samples, got %d", tt.wantLen, len(got))
			}
		})
	}
}

func TestSliceIsCopy(t *testing.T) {
	samples := []int16{1, 2, 3, 4}
	got := Slice(samples, types.MergedSegment{StartTime: 0, EndTime: 1}, 4)
	got[0] = 99
	if samples[0] != 1 {
		t.Error("Slice aliases the source waveform")
	}
}
