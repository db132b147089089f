// Package models defines the data structures for transcript capture.
package models

import "time"

// LanguageUnknown is recorded when the recognizer reports no language tag.
const LanguageUnknown = "unknown"

// RecognitionEvent is one finalized utterance from a speech recognizer.
// EventTime is the recognizer's own timestamp for the utterance; all
// silence-gap math runs on it, never on a processing-time clock.
type RecognitionEvent struct {
	Text             string
	EventTime        time.Time
	DetectedLanguage string  // empty means unknown
	Confidence       float64 // 0 means unmeasured
	DurationMs       int64
	OffsetMs         int64
}

// TranscriptSegment is one speaker-attributed, language-tagged unit of
// recognized text. Segments are never mutated after emission.
type TranscriptSegment struct {
	SegmentID        int       `json:"segment_id"`
	SpeakerID        string    `json:"speaker_id"`
	Text             string    `json:"text"`
	DetectedLanguage string    `json:"detected_language"`
	StartTime        time.Time `json:"start_time"`
	Confidence       float64   `json:"confidence"`
	DurationMs       int64     `json:"duration_ms,omitempty"`
	OffsetMs         int64     `json:"offset_ms,omitempty"`
}

// Session is one bounded run of transcript capture.
type Session struct {
	SessionID         string              `json:"session_id"`
	StartTime         time.Time           `json:"start_time"`
	EndTime           time.Time           `json:"end_time,omitzero"`
	LanguageSetting   string              `json:"language_setting,omitempty"`
	Source            string              `json:"source,omitempty"`
	Segments          []TranscriptSegment `json:"segments"`
	TotalSegments     int                 `json:"total_segments"`
	TotalSpeakers     int                 `json:"total_speakers"`
	LanguagesDetected []string            `json:"languages_detected,omitempty"`
}

// SessionSummary is computed once when a session is stopped.
type SessionSummary struct {
	SessionID         string    `json:"session_id"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	DurationMs        int64     `json:"duration_ms"`
	TotalSegments     int       `json:"total_segments"`
	TotalSpeakers     int       `json:"total_speakers"`
	LanguagesDetected []string  `json:"languages_detected"`
}

// SegmentEvent is the event payload published for every emitted segment.
type SegmentEvent struct {
	EventType        string  `json:"eventType"`
	SessionID        string  `json:"sessionId"`
	SegmentID        int     `json:"segmentId"`
	SpeakerID        string  `json:"speakerId"`
	Text             string  `json:"text"`
	DetectedLanguage string  `json:"detectedLanguage"`
	Confidence       float64 `json:"confidence"`
	Timestamp        int64   `json:"timestamp"`
}

// SessionEndedEvent is the event payload published when a session stops.
type SessionEndedEvent struct {
	EventType         string   `json:"eventType"`
	SessionID         string   `json:"sessionId"`
	TotalSegments     int      `json:"totalSegments"`
	TotalSpeakers     int      `json:"totalSpeakers"`
	LanguagesDetected []string `json:"languagesDetected"`
	DurationMs        int64    `json:"durationMs"`
	Timestamp         int64    `json:"timestamp"`
}
