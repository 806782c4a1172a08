package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default polling policy: a hard attempt ceiling rather than a wall-clock
// deadline, sized for jobs expected to finish in seconds to low minutes.
const (
	DefaultPollInterval    = 5 * time.Second
	DefaultMaxPollAttempts = 30
)

// Result is the outcome of one orchestrated job. Exactly one of Raw and Err
// is meaningful: failures are carried as values so the caller can skip a
// failed slice without aborting the session.
type Result struct {
	Raw json.RawMessage
	Err error
}

// SliceResult pairs one orchestration outcome with the slice it belongs to,
// keeping the slice's offset into the source audio for re-basing.
type SliceResult struct {
	SegmentID string
	Offset    float64
	Raw       json.RawMessage
	Err       error
}

// Orchestrator drives one remote batch transcription job per audio unit
// through its full lifecycle: create, upload input, start, poll, fetch.
// Concurrent orchestrations are independent; each owns its job ID and
// storage clients.
type Orchestrator struct {
	client          *Client
	newStore        func(signedURL string) (BlobStore, error)
	language        string
	pollInterval    time.Duration
	maxPollAttempts int
	debugDir        string
}

// NewOrchestrator creates an orchestrator over the given service client.
// debugDir, when non-empty, receives a copy of every raw result payload.
func NewOrchestrator(client *Client, language, debugDir string) *Orchestrator {
	return &Orchestrator{
		client: client,
		newStore: func(signedURL string) (BlobStore, error) {
			return NewBlobClient(signedURL)
		},
		language:        language,
		pollInterval:    DefaultPollInterval,
		maxPollAttempts: DefaultMaxPollAttempts,
		debugDir:        debugDir,
	}
}

// SetPollPolicy overrides the poll interval and attempt ceiling.
func (o *Orchestrator) SetPollPolicy(interval time.Duration, maxAttempts int) {
	if interval > 0 {
		o.pollInterval = interval
	}
	if maxAttempts > 0 {
		o.maxPollAttempts = maxAttempts
	}
}

// Transcribe runs the whole job lifecycle for one audio file. Every failure
// mode returns a Result carrying an error value; nothing escapes as a panic
// across this boundary.
func (o *Orchestrator) Transcribe(ctx context.Context, audioPath string) Result {
	job, err := o.client.CreateJob(ctx)
	if err != nil {
		return failure("failed to initialize transcription job: %v", err)
	}
	log.Printf("Created transcription job %s for %s", job.JobID, filepath.Base(audioPath))

	input, err := o.newStore(job.InputStoragePath)
	if err != nil {
		return failure("failed to open input storage for job %s: %v", job.JobID, err)
	}
	if err := input.Upload(ctx, audioPath); err != nil {
		return failure("failed to upload audio for job %s: %v", job.JobID, err)
	}

	if err := o.client.StartJob(ctx, job.JobID, o.language); err != nil {
		return failure("failed to start job %s: %v", job.JobID, err)
	}

	status, err := o.pollUntilTerminal(ctx, job.JobID)
	if err != nil {
		return Result{Err: err}
	}
	if status.JobState == JobStateFailed {
		return failure("job %s failed remotely: %s", job.JobID, status.ErrorMessage)
	}

	raw, err := o.fetchResults(ctx, job)
	if err != nil {
		return Result{Err: err}
	}

	o.dumpRaw(job.JobID, raw)
	return Result{Raw: raw}
}

// pollUntilTerminal checks job status on a fixed interval until the job
// reaches a terminal state or the attempt ceiling is hit. The wait between
// checks is cancellable so an aborted pipeline leaves no orphaned loop.
func (o *Orchestrator) pollUntilTerminal(ctx context.Context, jobID string) (*JobStatus, error) {
	for attempt := 1; attempt <= o.maxPollAttempts; attempt++ {
		status, err := o.client.JobStatus(ctx, jobID)
		if err != nil {
			log.Printf("Job %s status check %d/%d errored: %v", jobID, attempt, o.maxPollAttempts, err)
		} else if status.Terminal() {
			return status, nil
		} else {
			log.Printf("Job %s state %s (%d/%d)", jobID, status.JobState, attempt, o.maxPollAttempts)
		}

		if attempt == o.maxPollAttempts {
			break
		}
		select {
		case <-time.After(o.pollInterval):
		case <-ctx.Done():
			return nil, fmt.Errorf("polling cancelled for job %s: %w", jobID, ctx.Err())
		}
	}
	return nil, fmt.Errorf("failed to check job status: job %s not terminal after %d attempts", jobID, o.maxPollAttempts)
}

// fetchResults prefers the direct results call and falls back to listing
// and downloading the job's output storage, because the result payload is
// sometimes only materialized there.
func (o *Orchestrator) fetchResults(ctx context.Context, job *JobInfo) (json.RawMessage, error) {
	raw, directErr := o.client.JobResults(ctx, job.JobID)
	if directErr == nil {
		return raw, nil
	}
	log.Printf("Direct result fetch for job %s failed (%v), trying output storage", job.JobID, directErr)

	output, err := o.newStore(job.OutputStoragePath)
	if err != nil {
		return nil, fmt.Errorf("no results for job %s: direct fetch failed and output storage unusable: %v", job.JobID, err)
	}

	names, err := output.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("no results for job %s: output listing failed: %v", job.JobID, err)
	}

	jsonNames := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasSuffix(strings.ToLower(name), ".json") {
			jsonNames = append(jsonNames, name)
		}
	}
	if len(jsonNames) == 0 {
		return nil, fmt.Errorf("no results for job %s: output storage holds no result files", job.JobID)
	}

	destDir, err := os.MkdirTemp("", "job-results-")
	if err != nil {
		return nil, fmt.Errorf("no results for job %s: %v", job.JobID, err)
	}
	defer os.RemoveAll(destDir)

	paths, err := output.Download(ctx, jsonNames, destDir)
	if err != nil || len(paths) == 0 {
		return nil, fmt.Errorf("no results for job %s: download failed: %v", job.JobID, err)
	}

	data, err := os.ReadFile(paths[0])
	if err != nil {
		return nil, fmt.Errorf("no results for job %s: %v", job.JobID, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("no results for job %s: downloaded payload is not valid JSON", job.JobID)
	}
	return json.RawMessage(data), nil
}

// dumpRaw writes the raw payload for postmortem inspection. Observability
// only; failures here never affect the job outcome.
func (o *Orchestrator) dumpRaw(jobID string, raw json.RawMessage) {
	if o.debugDir == "" {
		return
	}
	if err := os.MkdirAll(o.debugDir, 0755); err != nil {
		log.Printf("Failed to create debug directory: %v", err)
		return
	}
	path := filepath.Join(o.debugDir, fmt.Sprintf("raw_%s.json", jobID))
	if err := os.WriteFile(path, raw, 0644); err != nil {
		log.Printf("Failed to write raw response for job %s: %v", jobID, err)
	}
}

func failure(format string, args ...interface{}) Result {
	err := fmt.Errorf(format, args...)
	log.Print(err)
	return Result{Err: err}
}
