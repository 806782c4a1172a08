package vad

import (
	"fmt"
	"log"

	"github.com/vaibh/diarization-pipeline/internal/types"
)

// Segmenter runs a speech-probability model over fixed-size windows of a
// waveform and derives utterance boundaries from the probability sequence.
// A Segmenter owns its model exclusively for the duration of a call and is
// not safe for concurrent use.
type Segmenter struct {
	model      Model
	threshold  float32
	windowSize int
	sampleRate int
}

// NewSegmenter creates a segmenter for the given model and detection
// parameters.
func NewSegmenter(model Model, threshold float32, windowSize, sampleRate int) (*Segmenter, error) {
	if model == nil {
		return nil, fmt.Errorf("model cannot be nil")
	}
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", threshold)
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	return &Segmenter{
		model:      model,
		threshold:  threshold,
		windowSize: windowSize,
		sampleRate: sampleRate,
	}, nil
}

// FrameDuration returns the time span of one window in seconds.
func (s *Segmenter) FrameDuration() float64 {
	return float64(s.windowSize) / float64(s.sampleRate)
}

// Probabilities partitions the waveform into non-overlapping windows and
// returns the per-window speech probability. The final short window is
// zero-padded. The model's state is reset before the first window.
func (s *Segmenter) Probabilities(samples []int16) []float32 {
	s.model.Reset()

	numWindows := (len(samples) + s.windowSize - 1) / s.windowSize
	probs := make([]float32, 0, numWindows)

	for start := 0; start < len(samples); start += s.windowSize {
		end := start + s.windowSize
		var window []int16
		if end <= len(samples) {
			window = samples[start:end]
		} else {
			// Zero-pad the trailing partial window.
			window = make([]int16, s.windowSize)
			copy(window, samples[start:])
		}
		probs = append(probs, s.model.SpeechProbability(window))
	}

	return probs
}

// Utterances scans a probability sequence and emits closed speech spans.
// A span opens when probability first exceeds the threshold and closes when
// it drops back to or below it; zero-length spans are discarded. A span
// still open at the end of the sequence is closed at the sequence end time.
func (s *Segmenter) Utterances(probs []float32) []types.Utterance {
	frameDuration := s.FrameDuration()
	utterances := make([]types.Utterance, 0)

	inSpeech := false
	var start float64

	for i, p := range probs {
		t := float64(i) * frameDuration
		if p > s.threshold {
			if !inSpeech {
				start = t
				inSpeech = true
			}
		} else if inSpeech {
			if t > start {
				utterances = append(utterances, types.Utterance{Start: start, End: t})
			}
			inSpeech = false
		}
	}

	if inSpeech {
		end := float64(len(probs)) * frameDuration
		if end > start {
			utterances = append(utterances, types.Utterance{Start: start, End: end})
		}
	}

	return utterances
}

// Detect runs the full segmentation: probabilities then utterance scan.
// An empty or all-silence waveform yields an empty list, not an error.
func (s *Segmenter) Detect(samples []int16) []types.Utterance {
	if len(samples) == 0 {
		return nil
	}

	utterances := s.Utterances(s.Probabilities(samples))
	if len(utterances) == 0 {
		log.Println("No speech detected in audio")
	}
	return utterances
}
