package vad

import "math"

// Model estimates the probability that a fixed-size window of audio contains
// speech. Implementations may carry recurrent internal state across windows;
// Reset must be called at the start of every new sequence, and a single
// instance must not be shared across concurrent segmentation runs.
type Model interface {
	// SpeechProbability returns a value in [0, 1] for one window of samples.
	SpeechProbability(window []int16) float32
	// Reset clears internal state before processing a new sequence.
	Reset()
}

// EnergyModel is a lightweight speech-probability model based on smoothed
// RMS energy. It stands in wherever a neural model is not available and
// satisfies the same stateful contract.
type EnergyModel struct {
	smoothing  float32
	lastResult float32
	hasHistory bool
}

// NewEnergyModel creates an energy model with light result smoothing.
func NewEnergyModel() *EnergyModel {
	return &EnergyModel{smoothing: 0.1}
}

// SpeechProbability computes normalized RMS energy for the window, smoothed
// against the previous window's result.
func (m *EnergyModel) SpeechProbability(window []int16) float32 {
	if len(window) == 0 {
		return 0
	}

	var energy float64
	for _, sample := range window {
		energy += float64(sample) * float64(sample)
	}
	energy = math.Sqrt(energy / float64(len(window)))

	// Normalize assuming max useful energy around 10000.
	probability := float32(energy / 10000.0)
	if probability > 1 {
		probability = 1
	}

	if m.hasHistory {
		probability = m.smoothing*probability + (1-m.smoothing)*m.lastResult
	}
	m.lastResult = probability
	m.hasHistory = true

	return probability
}

// Reset clears the smoothing history.
func (m *EnergyModel) Reset() {
	m.lastResult = 0
	m.hasHistory = false
}
