package types

// Default labels applied when the provider response carries no speaker,
// gender or pace information. The two speaker defaults are intentionally
// different: newer response shapes use the SPEAKER_00 convention while the
// legacy results shape always used "unknown", and downstream consumers key
// off both.
const (
	DefaultSpeaker       = "SPEAKER_00"
	LegacyDefaultSpeaker = "unknown"
	DefaultGender        = "unknown"
	DefaultPace          = "normal"
)

// Utterance is a contiguous span of detected speech, in seconds from the
// start of the recording. Produced by the VAD scan, consumed by the merger.
type Utterance struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// MergedSegment is one bounded-duration chunk built from one or more
// utterances. Immutable once produced.
type MergedSegment struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
}

// SliceInfo describes one materialized audio slice: the merged segment it
// came from plus where its samples were written.
type SliceInfo struct {
	SegmentID string  `json:"segment_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
	FilePath  string  `json:"file_path"`
}

// Segment is one diarized span of the canonical transcript.
type Segment struct {
	SegmentID string  `json:"segment_id,omitempty"`
	Speaker   string  `json:"speaker"`
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
	Gender    string  `json:"gender,omitempty"`
	Pace      string  `json:"pace,omitempty"`
}

// Transcript is the canonical diarized transcript every provider response
// is normalized into. It is the pipeline's primary artifact.
type Transcript struct {
	Transcript   string    `json:"transcript"`
	Segments     []Segment `json:"segments"`
	LanguageCode string    `json:"language_code,omitempty"`
}

// WordCount returns the number of whitespace-separated words in the
// combined transcript text.
func (t *Transcript) WordCount() int {
	count := 0
	inWord := false
	for _, r := range t.Transcript {
		switch r {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				count++
			}
			inWord = true
		}
	}
	return count
}

// SpeechDuration returns the total duration covered by the transcript's
// segments, i.e. the end time of the last segment.
func (t *Transcript) SpeechDuration() float64 {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].EndTime
}
