// Package capture coordinates recognizer adapters, the transcript
// aggregator and downstream sinks for one session at a time.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"meeting-transcription-service/internal/events"
	"meeting-transcription-service/internal/models"
	"meeting-transcription-service/internal/observability/logging"
	"meeting-transcription-service/internal/observability/metrics"
	"meeting-transcription-service/internal/service/aggregator"
	"meeting-transcription-service/internal/service/recognizer"
)

// Handler manages one transcript capture session. It implements
// recognizer.Callback: finalized results are ingested into the aggregator,
// interim results are dropped at this boundary.
type Handler struct {
	agg       *aggregator.Aggregator
	adapter   recognizer.Adapter
	publisher *events.Publisher
	provider  string
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	cancel    context.CancelFunc
}

// Options configures a capture handler.
type Options struct {
	GapThreshold      time.Duration
	DefaultConfidence float64
	LanguageSetting   string
	Source            string
	Provider          string
}

// NewHandler creates a handler for one session. The publisher may be nil
// when event publishing is not wanted.
func NewHandler(adapter recognizer.Adapter, publisher *events.Publisher, opts Options) *Handler {
	h := &Handler{
		adapter:   adapter,
		publisher: publisher,
		provider:  opts.Provider,
		metrics:   metrics.DefaultMetrics,
		logger:    logging.WithComponent("capture"),
	}
	h.agg = aggregator.New(aggregator.Options{
		GapThreshold:      opts.GapThreshold,
		DefaultConfidence: opts.DefaultConfidence,
		LanguageSetting:   opts.LanguageSetting,
		Source:            opts.Source,
	})
	if publisher != nil {
		h.agg.AddSink(aggregator.SegmentSinkFunc(h.publishSegment))
	}
	return h
}

// AddSink registers an extra segment sink. Must be called before Start.
func (h *Handler) AddSink(sink aggregator.SegmentSink) {
	h.agg.AddSink(sink)
}

// Start begins the session and the recognizer stream.
func (h *Handler) Start(ctx context.Context, sessionID string) (models.Session, error) {
	sess, err := h.agg.Start(sessionID)
	if err != nil {
		return models.Session{}, err
	}
	h.logger = logging.WithRecognizer(sess.SessionID, h.provider)
	h.metrics.RecordSessionStart()

	ctx, h.cancel = context.WithCancel(ctx)
	if err := h.adapter.Start(ctx, h); err != nil {
		// The session is already running; the caller decides whether to
		// stop it or retry with another adapter.
		h.logger.Error().Err(err).Msg("Recognizer failed to start")
		return sess, err
	}
	return sess, nil
}

// SendAudio forwards audio bytes to the recognizer.
func (h *Handler) SendAudio(ctx context.Context, audio []byte) error {
	return h.adapter.SendAudio(ctx, audio)
}

// Stop closes the recognizer stream and finalizes the session.
func (h *Handler) Stop() (models.SessionSummary, error) {
	if h.cancel != nil {
		h.cancel()
	}
	if err := h.adapter.Close(); err != nil {
		h.logger.Warn().Err(err).Msg("Recognizer close failed")
	}

	summary, err := h.agg.Stop()
	if err != nil {
		return models.SessionSummary{}, err
	}
	h.metrics.RecordSessionEnd(float64(summary.DurationMs) / 1000)

	if h.publisher != nil {
		ev := models.SessionEndedEvent{
			EventType:         "meeting.session.ended",
			SessionID:         summary.SessionID,
			TotalSegments:     summary.TotalSegments,
			TotalSpeakers:     summary.TotalSpeakers,
			LanguagesDetected: summary.LanguagesDetected,
			DurationMs:        summary.DurationMs,
			Timestamp:         time.Now().UnixMilli(),
		}
		if err := h.publisher.PublishSession(context.Background(), summary.SessionID, ev); err != nil {
			h.logger.Error().Err(err).Msg("Failed to publish session ended event")
			h.metrics.RecordSinkFailure("kafka")
		}
	}

	return summary, nil
}

// Session returns a snapshot of the session.
func (h *Handler) Session() models.Session {
	return h.agg.Session()
}

// State returns the aggregator lifecycle state.
func (h *Handler) State() aggregator.State {
	return h.agg.State()
}

// --- recognizer.Callback implementation ---

// OnRecognized ingests finalized results; interim results never reach the
// aggregator.
func (h *Handler) OnRecognized(res recognizer.Result) {
	if !res.IsFinal {
		return
	}

	ev := models.RecognitionEvent{
		Text:             res.Text,
		EventTime:        res.EventTime,
		DetectedLanguage: res.LanguageCode,
		Confidence:       res.Confidence,
		DurationMs:       res.DurationMs,
		OffsetMs:         res.OffsetMs,
	}

	seg, err := h.agg.Ingest(ev)
	if err != nil {
		// Late results after stop are expected during shutdown; anything
		// else is recognizer misbehavior worth surfacing.
		h.logger.Warn().Err(err).Str("text", res.Text).Msg("Recognition event rejected")
		h.metrics.RecordEventRejected(rejectReason(err))
		return
	}
	if seg == nil {
		return
	}

	h.logger.Debug().
		Int("segmentId", seg.SegmentID).
		Str("speakerId", seg.SpeakerID).
		Str("detectedLanguage", seg.DetectedLanguage).
		Msg("Segment emitted")
}

// OnError is called when the recognizer stream fails. The session stays
// running; the caller may stop it or attach a new adapter.
func (h *Handler) OnError(err error) {
	h.logger.Error().Err(err).Msg("Recognizer error")
	h.metrics.RecordRecognizerError(h.provider)
}

func (h *Handler) publishSegment(seg models.TranscriptSegment) {
	sess := h.agg.Session()
	ev := models.SegmentEvent{
		EventType:        "meeting.transcript.segment",
		SessionID:        sess.SessionID,
		SegmentID:        seg.SegmentID,
		SpeakerID:        seg.SpeakerID,
		Text:             seg.Text,
		DetectedLanguage: seg.DetectedLanguage,
		Confidence:       seg.Confidence,
		Timestamp:        seg.StartTime.UnixMilli(),
	}
	if err := h.publisher.PublishSegment(context.Background(), sess.SessionID, ev); err != nil {
		h.logger.Error().Err(err).Int("segmentId", seg.SegmentID).Msg("Failed to publish segment event")
		h.metrics.RecordSinkFailure("kafka")
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, aggregator.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, aggregator.ErrNotRunning):
		return "not_running"
	case errors.Is(err, aggregator.ErrInvalidEvent):
		return "invalid_event"
	default:
		return "other"
	}
}
