package segment

import (
	"github.com/vaibh/diarization-pipeline/internal/types"
)

// Default merge constraints.
const (
	DefaultMaxDuration        = 8.0
	DefaultMaxGap             = 1.0
	DefaultMinSegmentDuration = 1.0
)

// Merge combines adjacent utterances into bounded chunks using a single
// greedy left-to-right pass. Two spans merge when the gap between them is at
// most maxGap and the combined span is at most maxDuration; both bounds are
// inclusive. A single utterance longer than maxDuration passes through
// unchanged.
func Merge(utterances []types.Utterance, maxGap, maxDuration float64) []types.MergedSegment {
	if len(utterances) == 0 {
		return nil
	}

	merged := make([]types.MergedSegment, 0, len(utterances))
	currentStart := utterances[0].Start
	currentEnd := utterances[0].End

	for _, u := range utterances[1:] {
		gap := u.Start - currentEnd
		combined := u.End - currentStart
		if gap <= maxGap && combined <= maxDuration {
			currentEnd = u.End
			continue
		}
		merged = append(merged, newMergedSegment(currentStart, currentEnd))
		currentStart = u.Start
		currentEnd = u.End
	}
	merged = append(merged, newMergedSegment(currentStart, currentEnd))

	return merged
}

// FilterShort drops merged segments shorter than minDuration. Both the disk
// and the in-memory materialization paths go through this single filter,
// toggled by configuration.
func FilterShort(segments []types.MergedSegment, minDuration float64) []types.MergedSegment {
	kept := make([]types.MergedSegment, 0, len(segments))
	for _, s := range segments {
		if s.Duration >= minDuration {
			kept = append(kept, s)
		}
	}
	return kept
}

func newMergedSegment(start, end float64) types.MergedSegment {
	return types.MergedSegment{
		StartTime: start,
		EndTime:   end,
		Duration:  end - start,
	}
}
