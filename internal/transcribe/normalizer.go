package transcribe

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vaibh/diarization-pipeline/internal/types"
)

// SentinelEnd is the end time of a synthesized whole-transcript segment.
// It is an arbitrary placeholder emitted when a response carries text but
// no segments; callers must not treat it as a real timestamp.
const SentinelEnd = 100.0

// The known provider response shapes, detected in order. Each shape has its
// own parser; anything that matches none of them is the unknown variant.
type resultShape int

const (
	shapeError resultShape = iota
	shapeTranscript
	shapeLegacy
	shapeUnknown
)

// errorShape carries a provider-tagged error payload.
type errorShape struct {
	Error json.RawMessage `json:"error"`
}

// transcriptShape is the current response family: a top-level transcript
// with either diarized entries or near-canonical segments.
type transcriptShape struct {
	Transcript         string  `json:"transcript"`
	LanguageCode       string  `json:"language_code"`
	DiarizedTranscript *struct {
		Entries []diarizedEntry `json:"entries"`
	} `json:"diarized_transcript"`
	Segments []rawSegment `json:"segments"`
}

type diarizedEntry struct {
	SpeakerID        string  `json:"speaker_id"`
	Transcript       string  `json:"transcript"`
	StartTimeSeconds float64 `json:"start_time_seconds"`
	EndTimeSeconds   float64 `json:"end_time_seconds"`
	Gender           string  `json:"gender"`
	Pace             string  `json:"pace"`
}

type rawSegment struct {
	Speaker   string  `json:"speaker"`
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Gender    string  `json:"gender"`
	Pace      string  `json:"pace"`
}

// legacyShape is the oldest response family: a results array whose segments
// use start/end keys.
type legacyShape struct {
	LanguageCode string `json:"language_code"`
	Results      []struct {
		Transcript string `json:"transcript"`
		Segments   []struct {
			Speaker string  `json:"speaker"`
			Text    string  `json:"text"`
			Start   float64 `json:"start"`
			End     float64 `json:"end"`
		} `json:"segments"`
	} `json:"results"`
}

// unknownShape is the last-resort extraction from unrecognized payloads.
type unknownShape struct {
	Text       string `json:"text"`
	Transcript string `json:"transcript"`
}

// detectShape classifies a payload by top-level keys. First match wins.
func detectShape(fields map[string]json.RawMessage) resultShape {
	if _, ok := fields["error"]; ok {
		return shapeError
	}
	if _, ok := fields["transcript"]; ok {
		return shapeTranscript
	}
	if _, ok := fields["results"]; ok {
		return shapeLegacy
	}
	return shapeUnknown
}

// Normalize converts one raw provider payload into the canonical transcript
// structure. It is total over JSON objects: any input yields either a valid
// transcript or an error value, never a panic. Emitted segments are fresh
// copies and never alias the raw payload.
func Normalize(raw json.RawMessage) (*types.Transcript, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("unrecognized response format: %v", err)
	}

	switch detectShape(fields) {
	case shapeError:
		var e errorShape
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("provider error: %s", string(fields["error"]))
		}
		return nil, fmt.Errorf("provider error: %s", errorText(e.Error))

	case shapeTranscript:
		var shape transcriptShape
		if err := json.Unmarshal(raw, &shape); err != nil {
			return nil, fmt.Errorf("unrecognized response format: %v", err)
		}
		return normalizeTranscriptShape(&shape), nil

	case shapeLegacy:
		var shape legacyShape
		if err := json.Unmarshal(raw, &shape); err != nil {
			return nil, fmt.Errorf("unrecognized response format: %v", err)
		}
		return normalizeLegacyShape(&shape), nil

	default:
		var shape unknownShape
		if err := json.Unmarshal(raw, &shape); err != nil {
			return nil, fmt.Errorf("unrecognized response format: %v", err)
		}
		text := shape.Text
		if text == "" {
			text = shape.Transcript
		}
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("unrecognized response format")
		}
		return &types.Transcript{
			Transcript: text,
			Segments:   []types.Segment{sentinelSegment(text, types.LegacyDefaultSpeaker)},
		}, nil
	}
}

func normalizeTranscriptShape(shape *transcriptShape) *types.Transcript {
	out := &types.Transcript{
		Transcript:   shape.Transcript,
		Segments:     make([]types.Segment, 0),
		LanguageCode: shape.LanguageCode,
	}

	if shape.DiarizedTranscript != nil && len(shape.DiarizedTranscript.Entries) > 0 {
		for _, e := range shape.DiarizedTranscript.Entries {
			speaker := e.SpeakerID
			if speaker == "" {
				speaker = types.DefaultSpeaker
			}
			out.Segments = append(out.Segments, canonicalSegment(
				speaker, e.Transcript, e.StartTimeSeconds, e.EndTimeSeconds, e.Gender, e.Pace))
		}
	} else {
		for _, s := range shape.Segments {
			speaker := s.Speaker
			if speaker == "" {
				speaker = types.DefaultSpeaker
			}
			out.Segments = append(out.Segments, canonicalSegment(
				speaker, s.Text, s.StartTime, s.EndTime, s.Gender, s.Pace))
		}
	}

	// Non-empty transcript with zero segments would crash downstream
	// consumers; synthesize a single whole-span segment instead.
	if len(out.Segments) == 0 && strings.TrimSpace(out.Transcript) != "" {
		out.Segments = append(out.Segments, sentinelSegment(out.Transcript, types.DefaultSpeaker))
	}

	return out
}

func normalizeLegacyShape(shape *legacyShape) *types.Transcript {
	out := &types.Transcript{
		Segments:     make([]types.Segment, 0),
		LanguageCode: shape.LanguageCode,
	}

	parts := make([]string, 0, len(shape.Results))
	for _, r := range shape.Results {
		if strings.TrimSpace(r.Transcript) != "" {
			parts = append(parts, r.Transcript)
		}
		for _, s := range r.Segments {
			speaker := s.Speaker
			if speaker == "" {
				speaker = types.LegacyDefaultSpeaker
			}
			out.Segments = append(out.Segments, canonicalSegment(speaker, s.Text, s.Start, s.End, "", ""))
		}
	}
	out.Transcript = strings.Join(parts, " ")

	if len(out.Segments) == 0 && strings.TrimSpace(out.Transcript) != "" {
		out.Segments = append(out.Segments, sentinelSegment(out.Transcript, types.LegacyDefaultSpeaker))
	}

	return out
}

// canonicalSegment builds one canonical segment with computed duration.
// An inverted time pair is clamped to zero duration rather than propagated.
func canonicalSegment(speaker, text string, start, end float64, gender, pace string) types.Segment {
	duration := end - start
	if duration < 0 {
		duration = 0
	}
	if gender == "" {
		gender = types.DefaultGender
	}
	if pace == "" {
		pace = types.DefaultPace
	}
	return types.Segment{
		Speaker:   speaker,
		Text:      text,
		StartTime: start,
		EndTime:   end,
		Duration:  duration,
		Gender:    gender,
		Pace:      pace,
	}
}

func sentinelSegment(text, speaker string) types.Segment {
	return canonicalSegment(speaker, text, 0, SentinelEnd, "", "")
}

func errorText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
