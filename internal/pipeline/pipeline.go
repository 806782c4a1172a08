package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vaibh/diarization-pipeline/internal/audio"
	"github.com/vaibh/diarization-pipeline/internal/config"
	"github.com/vaibh/diarization-pipeline/internal/queue"
	"github.com/vaibh/diarization-pipeline/internal/segment"
	"github.com/vaibh/diarization-pipeline/internal/transcribe"
	"github.com/vaibh/diarization-pipeline/internal/types"
	"github.com/vaibh/diarization-pipeline/internal/vad"
)

// Pipeline runs the full segment-and-transcribe flow: load audio, detect
// speech, merge utterances into bounded segments, materialize slices, fan
// them out to the remote transcription service, and combine the per-slice
// results into one transcript on the original timeline.
type Pipeline struct {
	cfg         *config.Config
	model       vad.Model
	transcriber queue.Transcriber
}

// Option customizes a Pipeline, mainly so tests can substitute the VAD model
// or the remote transcriber.
type Option func(*Pipeline)

// WithModel replaces the default energy model.
func WithModel(m vad.Model) Option {
	return func(p *Pipeline) { p.model = m }
}

// WithTranscriber replaces the remote orchestrator.
func WithTranscriber(t queue.Transcriber) Option {
	return func(p *Pipeline) { p.transcriber = t }
}

// New builds a pipeline from cfg. Unless overridden by options the pipeline
// uses the energy VAD model and a remote batch orchestrator configured from
// the transcription section.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}

	if p.model == nil {
		p.model = vad.NewEnergyModel()
	}
	if p.transcriber == nil {
		client, err := transcribe.NewClient(
			cfg.Transcription.Endpoint,
			cfg.Transcription.APIKey,
			time.Duration(cfg.Transcription.TimeoutSeconds)*time.Second,
		)
		if err != nil {
			return nil, err
		}
		orch := transcribe.NewOrchestrator(client, cfg.Transcription.LanguageCode, cfg.Transcription.DebugDir)
		orch.SetPollPolicy(
			time.Duration(cfg.Transcription.PollSeconds)*time.Second,
			cfg.Transcription.MaxPollAttempts,
		)
		p.transcriber = orch
	}
	return p, nil
}

// Run executes the pipeline on one audio file and returns the combined
// transcript. Audio with no detected speech yields an empty transcript, not
// an error. Per-slice transcription failures are tolerated; Run fails only
// when the input cannot be read or sliced at all.
func (p *Pipeline) Run(ctx context.Context, audioPath string) (*types.Transcript, error) {
	samples, sampleRate, err := audio.LoadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load audio %s: %w", audioPath, err)
	}
	if sampleRate != p.cfg.Audio.SampleRate {
		return nil, fmt.Errorf("audio sample rate %d does not match configured %d",
			sampleRate, p.cfg.Audio.SampleRate)
	}
	log.Printf("Loaded %s: %d samples (%.2fs at %dHz)",
		audioPath, len(samples), audio.Duration(samples, sampleRate), sampleRate)

	segmenter, err := vad.NewSegmenter(p.model, p.cfg.VAD.Threshold, p.cfg.VAD.WindowSize, sampleRate)
	if err != nil {
		return nil, err
	}

	utterances := segmenter.Detect(samples)
	if len(utterances) == 0 {
		log.Printf("No speech detected in %s", audioPath)
		return &types.Transcript{Segments: []types.Segment{}}, nil
	}
	log.Printf("Detected %d utterances", len(utterances))

	merged := segment.Merge(utterances, p.cfg.Segmenter.MaxGap, p.cfg.Segmenter.MaxDuration)
	if p.cfg.Segmenter.FilterShort {
		merged = segment.FilterShort(merged, p.cfg.Segmenter.MinSegmentDuration)
	}
	if len(merged) == 0 {
		log.Printf("All segments filtered out for %s", audioPath)
		return &types.Transcript{Segments: []types.Segment{}}, nil
	}
	log.Printf("Merged into %d segments", len(merged))

	sessionDir := filepath.Join(p.cfg.Storage.TempDir, uuid.New().String())
	materializer, err := segment.NewMaterializer(sampleRate, sessionDir)
	if err != nil {
		return nil, err
	}
	slices, err := materializer.Write(samples, merged)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize segments: %w", err)
	}
	if len(slices) == 0 {
		return nil, errors.New("no segments could be written to disk")
	}
	log.Printf("Materialized %d slices under %s", len(slices), sessionDir)

	pool := queue.NewSlicePool(p.cfg.Workers.Count, p.transcriber)
	results := pool.Process(ctx, slices)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed == len(results) {
		return nil, fmt.Errorf("all %d slices failed transcription, first error: %w",
			len(results), results[0].Err)
	}
	if failed > 0 {
		log.Printf("%d of %d slices failed transcription", failed, len(results))
	}

	transcript := transcribe.Combine(results)
	log.Printf("Combined transcript: %d segments, %d words",
		len(transcript.Segments), transcript.WordCount())
	return transcript, nil
}
