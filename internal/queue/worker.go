package queue

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"

	"github.com/vaibh/diarization-pipeline/internal/transcribe"
	"github.com/vaibh/diarization-pipeline/internal/types"
)

// Transcriber runs one remote transcription job for one audio file.
// Satisfied by *transcribe.Orchestrator.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) transcribe.Result
}

// SlicePool fans audio slices out to a fixed number of workers, each driving
// an independent job state machine. Slices share no mutable state, so the
// workers need no coordination beyond the job channel.
type SlicePool struct {
	workerCount int
	transcriber Transcriber
}

// job is one slice awaiting transcription, keyed by its input position.
type job struct {
	index int
	slice types.SliceInfo
}

// NewSlicePool creates a pool with the given worker count.
func NewSlicePool(workerCount int, transcriber Transcriber) *SlicePool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &SlicePool{
		workerCount: workerCount,
		transcriber: transcriber,
	}
}

// Process transcribes every slice and returns results in input order.
// A panic inside one job is converted into that slice's error result; the
// rest of the batch continues.
func (p *SlicePool) Process(ctx context.Context, slices []types.SliceInfo) []transcribe.SliceResult {
	results := make([]transcribe.SliceResult, len(slices))
	jobs := make(chan job, len(slices))

	var wg sync.WaitGroup
	for w := 0; w < p.workerCount; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			log.Printf("Slice worker %d started", workerID)
			for j := range jobs {
				results[j.index] = p.processSlice(ctx, workerID, j.slice)
			}
		}(w)
	}

	for i, s := range slices {
		jobs <- job{index: i, slice: s}
	}
	close(jobs)
	wg.Wait()

	return results
}

// processSlice runs one orchestration with panic recovery.
func (p *SlicePool) processSlice(ctx context.Context, workerID int, slice types.SliceInfo) (out transcribe.SliceResult) {
	out = transcribe.SliceResult{
		SegmentID: slice.SegmentID,
		Offset:    slice.StartTime,
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker %d: PANIC processing slice %s: %v\n%s",
				workerID, slice.SegmentID, r, string(debug.Stack()))
			out.Err = fmt.Errorf("worker panic: %v", r)
		}
	}()

	log.Printf("Worker %d: transcribing slice %s (%s)", workerID, slice.SegmentID, slice.FilePath)
	result := p.transcriber.Transcribe(ctx, slice.FilePath)
	out.Raw = result.Raw
	out.Err = result.Err
	return out
}
