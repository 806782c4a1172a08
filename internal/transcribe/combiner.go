package transcribe

import (
	"fmt"
	"log"
	"strings"

	"github.com/vaibh/diarization-pipeline/internal/types"
)

// Combine concatenates per-slice results into one session-level transcript.
// Failed slices are logged and skipped entirely; surviving segments are
// re-based onto the global timeline by the slice's offset and assigned
// contiguous sequential IDs starting at seg_000.
func Combine(results []SliceResult) *types.Transcript {
	combined := &types.Transcript{Segments: make([]types.Segment, 0)}
	parts := make([]string, 0, len(results))
	index := 0

	for _, r := range results {
		if r.Err != nil {
			log.Printf("Skipping failed slice %s: %v", r.SegmentID, r.Err)
			continue
		}

		normalized, err := Normalize(r.Raw)
		if err != nil {
			log.Printf("Skipping slice %s with unusable result: %v", r.SegmentID, err)
			continue
		}

		if strings.TrimSpace(normalized.Transcript) != "" {
			parts = append(parts, normalized.Transcript)
		}
		if combined.LanguageCode == "" {
			combined.LanguageCode = normalized.LanguageCode
		}

		for _, seg := range normalized.Segments {
			seg.StartTime += r.Offset
			seg.EndTime += r.Offset
			seg.Duration = seg.EndTime - seg.StartTime
			if seg.Duration < 0 {
				seg.Duration = 0
			}
			seg.SegmentID = fmt.Sprintf("seg_%03d", index)
			index++
			combined.Segments = append(combined.Segments, seg)
		}
	}

	combined.Transcript = strings.Join(parts, " ")
	return combined
}
