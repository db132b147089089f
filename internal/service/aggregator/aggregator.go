// Package aggregator turns an ordered stream of speech-recognition events
// into speaker-attributed, language-tagged transcript segments.
//
// Speaker attribution is a silence-gap heuristic: an event whose timestamp is
// more than the configured gap past the previous accepted event starts a new
// synthetic speaker (Speaker_1, Speaker_2, ...). Attribution is strictly
// online; a segment's speaker is never revised after emission.
package aggregator

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"meeting-transcription-service/internal/models"
	"meeting-transcription-service/internal/observability/metrics"
)

// State represents the lifecycle state of an aggregator.
type State int

const (
	// StateIdle - No session started yet.
	StateIdle State = iota
	// StateRunning - Session active, events can be ingested.
	StateRunning
	// StateStopped - Session finalized. Terminal state; a new aggregator
	// instance is required for a new session.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Errors for lifecycle misuse.
var (
	ErrAlreadyRunning = errors.New("session already running")
	ErrNotRunning     = errors.New("session not running")
	ErrSessionClosed  = errors.New("session closed")
	ErrInvalidEvent   = errors.New("invalid recognition event")
)

const (
	// DefaultGapThreshold is the silence duration above which consecutive
	// utterances are attributed to different speakers.
	DefaultGapThreshold = 3 * time.Second

	// DefaultConfidence is recorded for events that carry no measured
	// confidence score. A stand-in, not a measurement.
	DefaultConfidence = 0.95
)

// Options configures an Aggregator.
type Options struct {
	GapThreshold      time.Duration // zero means DefaultGapThreshold
	DefaultConfidence float64       // zero means DefaultConfidence
	Source            string        // recorded on the session, e.g. "microphone"
	LanguageSetting   string        // recorded on the session, e.g. "auto"
	Clock             func() time.Time
}

// Aggregator owns exactly one Session for its lifetime.
//
// Ingest and Stop hold an exclusive lock for the whole operation: speaker
// assignment reads and writes the gap state as a unit, and partial
// interleaving would corrupt segment ordering.
type Aggregator struct {
	mu    sync.Mutex
	state State

	gapThreshold time.Duration
	defaultConf  float64
	clock        func() time.Time

	session        *models.Session
	speakerCounter int
	lastSpeechTime time.Time
	speechSeen     bool

	sinks   []SegmentSink
	metrics *metrics.Metrics
}

// New creates an aggregator in the IDLE state.
func New(opts Options) *Aggregator {
	if opts.GapThreshold <= 0 {
		opts.GapThreshold = DefaultGapThreshold
	}
	if opts.DefaultConfidence <= 0 {
		opts.DefaultConfidence = DefaultConfidence
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Aggregator{
		state:        StateIdle,
		gapThreshold: opts.GapThreshold,
		defaultConf:  opts.DefaultConfidence,
		clock:        opts.Clock,
		metrics:      metrics.DefaultMetrics,
		session: &models.Session{
			Source:          opts.Source,
			LanguageSetting: opts.LanguageSetting,
		},
	}
}

// AddSink registers a sink that receives every emitted segment.
// Sinks must be registered before Start.
func (a *Aggregator) AddSink(sink SegmentSink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sinks = append(a.sinks, sink)
}

// NewSessionID generates a timestamp-derived session identifier.
// The format is chosen for log correlation, nothing depends on it.
func NewSessionID() string {
	return "session_" + time.Now().UTC().Format("20060102_150405")
}

// Start begins a new session. If sessionID is empty a timestamp-derived
// identifier is generated.
func (a *Aggregator) Start(sessionID string) (models.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case StateRunning:
		return models.Session{}, ErrAlreadyRunning
	case StateStopped:
		return models.Session{}, ErrSessionClosed
	}

	if sessionID == "" {
		sessionID = NewSessionID()
	}

	a.session.SessionID = sessionID
	a.session.StartTime = a.clock()
	a.session.Segments = make([]models.TranscriptSegment, 0, 64)
	a.speakerCounter = 0
	a.speechSeen = false
	a.state = StateRunning

	log.Info().
		Str("sessionId", sessionID).
		Dur("gapThreshold", a.gapThreshold).
		Msg("Transcript session started")

	return a.snapshotLocked(), nil
}

// Ingest processes one recognition event. Whitespace-only text is discarded
// and returns (nil, nil). Each call emits at most one segment; the returned
// segment is a copy and safe to retain.
func (a *Aggregator) Ingest(ev models.RecognitionEvent) (*models.TranscriptSegment, error) {
	a.mu.Lock()

	switch a.state {
	case StateIdle:
		a.mu.Unlock()
		return nil, ErrNotRunning
	case StateStopped:
		a.mu.Unlock()
		return nil, ErrSessionClosed
	}

	if ev.EventTime.IsZero() {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: missing event time", ErrInvalidEvent)
	}

	text := strings.TrimSpace(ev.Text)
	if text == "" {
		// Interim or empty results never produce segments.
		a.mu.Unlock()
		a.metrics.RecordEventDiscarded()
		return nil, nil
	}

	// Gap math runs on event timestamps, not on the processing clock, so
	// replayed or delayed streams attribute speakers identically.
	var gap time.Duration
	newTurn := !a.speechSeen
	if a.speechSeen {
		gap = ev.EventTime.Sub(a.lastSpeechTime)
		newTurn = gap > a.gapThreshold
	}
	if newTurn {
		a.speakerCounter++
	}
	a.lastSpeechTime = ev.EventTime
	a.speechSeen = true

	lang := ev.DetectedLanguage
	if lang == "" {
		lang = models.LanguageUnknown
	}
	conf := ev.Confidence
	if conf == 0 {
		conf = a.defaultConf
	}

	seg := models.TranscriptSegment{
		SegmentID:        len(a.session.Segments) + 1,
		SpeakerID:        fmt.Sprintf("Speaker_%d", a.speakerCounter),
		Text:             text,
		DetectedLanguage: lang,
		StartTime:        ev.EventTime,
		Confidence:       conf,
		DurationMs:       ev.DurationMs,
		OffsetMs:         ev.OffsetMs,
	}
	a.session.Segments = append(a.session.Segments, seg)
	a.session.TotalSegments = len(a.session.Segments)
	a.session.TotalSpeakers = a.speakerCounter

	sinks := a.sinks
	a.mu.Unlock()

	a.metrics.RecordSegment(newTurn, gap.Seconds())
	dispatch(sinks, seg)

	return &seg, nil
}

// Stop finalizes the session and computes the summary. The session is
// immutable afterwards; further Ingest or Stop calls fail.
func (a *Aggregator) Stop() (models.SessionSummary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case StateIdle:
		return models.SessionSummary{}, ErrNotRunning
	case StateStopped:
		return models.SessionSummary{}, ErrSessionClosed
	}

	a.session.EndTime = a.clock()
	a.session.LanguagesDetected = distinctLanguages(a.session.Segments)
	a.state = StateStopped

	summary := models.SessionSummary{
		SessionID:         a.session.SessionID,
		StartTime:         a.session.StartTime,
		EndTime:           a.session.EndTime,
		DurationMs:        a.session.EndTime.Sub(a.session.StartTime).Milliseconds(),
		TotalSegments:     len(a.session.Segments),
		TotalSpeakers:     a.speakerCounter,
		LanguagesDetected: a.session.LanguagesDetected,
	}

	log.Info().
		Str("sessionId", a.session.SessionID).
		Int("totalSegments", summary.TotalSegments).
		Int("totalSpeakers", summary.TotalSpeakers).
		Strs("languagesDetected", summary.LanguagesDetected).
		Msg("Transcript session stopped")

	return summary, nil
}

// State returns the current lifecycle state.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Session returns a snapshot of the session. The snapshot owns its own
// segment slice and is safe to serialize concurrently with ingestion.
func (a *Aggregator) Session() models.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aggregator) snapshotLocked() models.Session {
	s := *a.session
	s.Segments = make([]models.TranscriptSegment, len(a.session.Segments))
	copy(s.Segments, a.session.Segments)
	if s.LanguagesDetected == nil {
		s.LanguagesDetected = distinctLanguages(s.Segments)
	}
	return s
}

// distinctLanguages returns the distinct detected-language values in first
// seen order. "unknown" counts as a value like any other.
func distinctLanguages(segments []models.TranscriptSegment) []string {
	seen := make(map[string]struct{}, 4)
	langs := make([]string, 0, 4)
	for _, seg := range segments {
		if _, ok := seen[seg.DetectedLanguage]; ok {
			continue
		}
		seen[seg.DetectedLanguage] = struct{}{}
		langs = append(langs, seg.DetectedLanguage)
	}
	return langs
}
