package aggregator

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"meeting-transcription-service/internal/models"
)

var base = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newRunning(t *testing.T) *Aggregator {
	t.Helper()
	a := New(Options{})
	if _, err := a.Start("test-session"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return a
}

func event(text string, at time.Time) models.RecognitionEvent {
	return models.RecognitionEvent{Text: text, EventTime: at}
}

func TestStart_GeneratesSessionID(t *testing.T) {
	a := New(Options{})
	sess, err := a.Start("")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !strings.HasPrefix(sess.SessionID, "session_") {
		t.Errorf("expected generated session ID with session_ prefix, got %q", sess.SessionID)
	}
	if a.State() != StateRunning {
		t.Errorf("expected StateRunning, got %v", a.State())
	}
}

func TestStart_Twice_FailsAlreadyRunning(t *testing.T) {
	a := newRunning(t)
	if _, err := a.Start("again"); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestStart_AfterStop_FailsSessionClosed(t *testing.T) {
	a := newRunning(t)
	if _, err := a.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if _, err := a.Start("again"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestIngest_BeforeStart_FailsNotRunning(t *testing.T) {
	a := New(Options{})
	seg, err := a.Ingest(event("hello", base))
	if !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
	if seg != nil {
		t.Errorf("expected nil segment, got %+v", seg)
	}
	if a.State() != StateIdle {
		t.Errorf("state should remain IDLE, got %v", a.State())
	}
}

func TestIngest_MissingEventTime_FailsInvalidEvent(t *testing.T) {
	a := newRunning(t)
	if _, err := a.Ingest(models.RecognitionEvent{Text: "hello"}); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
	if len(a.Session().Segments) != 0 {
		t.Error("rejected event must not produce a segment")
	}
}

// Segment IDs are contiguous 1..N in call order for non-empty events.
func TestIngest_MonotonicSegmentIDs(t *testing.T) {
	a := newRunning(t)
	for i := 0; i < 10; i++ {
		seg, err := a.Ingest(event("word", base.Add(time.Duration(i)*time.Second)))
		if err != nil {
			t.Fatalf("event %d: unexpected error: %v", i, err)
		}
		if seg.SegmentID != i+1 {
			t.Errorf("event %d: expected segment ID %d, got %d", i, i+1, seg.SegmentID)
		}
	}
}

// Gap above the threshold starts a new speaker; at or below reuses it.
func TestIngest_GapTriggersSpeakerIncrement(t *testing.T) {
	tests := []struct {
		name        string
		gap         time.Duration
		wantSpeaker string
	}{
		{"below threshold", time.Second, "Speaker_1"},
		{"exactly threshold", 3 * time.Second, "Speaker_1"},
		{"above threshold", 3*time.Second + time.Millisecond, "Speaker_2"},
		{"well above threshold", time.Minute, "Speaker_2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newRunning(t)
			first, err := a.Ingest(event("first", base))
			if err != nil {
				t.Fatalf("first event: %v", err)
			}
			if first.SpeakerID != "Speaker_1" {
				t.Fatalf("first speaker: expected Speaker_1, got %s", first.SpeakerID)
			}
			second, err := a.Ingest(event("second", base.Add(tt.gap)))
			if err != nil {
				t.Fatalf("second event: %v", err)
			}
			if second.SpeakerID != tt.wantSpeaker {
				t.Errorf("expected %s after %v gap, got %s", tt.wantSpeaker, tt.gap, second.SpeakerID)
			}
		})
	}
}

func TestIngest_CustomGapThreshold(t *testing.T) {
	a := New(Options{GapThreshold: 500 * time.Millisecond})
	if _, err := a.Start(""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := a.Ingest(event("first", base)); err != nil {
		t.Fatalf("first event: %v", err)
	}
	seg, err := a.Ingest(event("second", base.Add(time.Second)))
	if err != nil {
		t.Fatalf("second event: %v", err)
	}
	if seg.SpeakerID != "Speaker_2" {
		t.Errorf("expected Speaker_2 with 500ms threshold, got %s", seg.SpeakerID)
	}
}

// Empty or whitespace-only text is a no-op: no segment, no counter advance,
// and the gap state is untouched.
func TestIngest_EmptyTextIsNoOp(t *testing.T) {
	a := newRunning(t)

	if _, err := a.Ingest(event("hello", base)); err != nil {
		t.Fatalf("seed event: %v", err)
	}

	for _, text := range []string{"", "   ", "\t\n"} {
		// The blank event lands far past the gap threshold; if it advanced
		// lastSpeechTime, the follow-up below would be misattributed.
		seg, err := a.Ingest(event(text, base.Add(time.Hour)))
		if err != nil {
			t.Errorf("text %q: unexpected error: %v", text, err)
		}
		if seg != nil {
			t.Errorf("text %q: expected nil segment, got %+v", text, seg)
		}
	}

	seg, err := a.Ingest(event("still here", base.Add(2*time.Second)))
	if err != nil {
		t.Fatalf("follow-up event: %v", err)
	}
	if seg.SegmentID != 2 {
		t.Errorf("expected segment ID 2 after blank no-ops, got %d", seg.SegmentID)
	}
	if seg.SpeakerID != "Speaker_1" {
		t.Errorf("blank events must not advance gap state: expected Speaker_1, got %s", seg.SpeakerID)
	}
}

func TestIngest_DefaultsForLanguageAndConfidence(t *testing.T) {
	a := newRunning(t)
	seg, err := a.Ingest(event("hello", base))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if seg.DetectedLanguage != models.LanguageUnknown {
		t.Errorf("expected language %q, got %q", models.LanguageUnknown, seg.DetectedLanguage)
	}
	if seg.Confidence != DefaultConfidence {
		t.Errorf("expected placeholder confidence %v, got %v", DefaultConfidence, seg.Confidence)
	}
}

func TestIngest_PassesThroughEventFields(t *testing.T) {
	a := newRunning(t)
	seg, err := a.Ingest(models.RecognitionEvent{
		Text:             "  hola  ",
		EventTime:        base,
		DetectedLanguage: "es-ES",
		Confidence:       0.83,
		DurationMs:       1200,
		OffsetMs:         4500,
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if seg.Text != "hola" {
		t.Errorf("expected trimmed text 'hola', got %q", seg.Text)
	}
	if seg.DetectedLanguage != "es-ES" {
		t.Errorf("expected es-ES, got %s", seg.DetectedLanguage)
	}
	if seg.Confidence != 0.83 {
		t.Errorf("expected confidence 0.83, got %v", seg.Confidence)
	}
	if seg.DurationMs != 1200 || seg.OffsetMs != 4500 {
		t.Errorf("expected timing passthrough, got duration=%d offset=%d", seg.DurationMs, seg.OffsetMs)
	}
	if !seg.StartTime.Equal(base) {
		t.Errorf("expected start time %v, got %v", base, seg.StartTime)
	}
}

// Known limitation: duplicate finals from the recognizer are not suppressed
// and produce two segments.
func TestIngest_DuplicateFinalsProduceTwoSegments(t *testing.T) {
	a := newRunning(t)
	if _, err := a.Ingest(event("same utterance", base)); err != nil {
		t.Fatalf("first: %v", err)
	}
	seg, err := a.Ingest(event("same utterance", base))
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if seg.SegmentID != 2 {
		t.Errorf("duplicate final should emit a second segment, got ID %d", seg.SegmentID)
	}
}

func TestStop_Summary(t *testing.T) {
	a := newRunning(t)
	a.Ingest(event("one", base))
	a.Ingest(event("two", base.Add(time.Second)))
	a.Ingest(event("three", base.Add(10*time.Second)))

	summary, err := a.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if summary.TotalSegments != 3 {
		t.Errorf("expected 3 segments, got %d", summary.TotalSegments)
	}
	if summary.TotalSpeakers != 2 {
		t.Errorf("expected 2 speakers, got %d", summary.TotalSpeakers)
	}
	if summary.EndTime.Before(summary.StartTime) {
		t.Error("end time must not precede start time")
	}

	// Second stop fails and leaves the session untouched.
	if _, err := a.Stop(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("second Stop: expected ErrSessionClosed, got %v", err)
	}
	if got := len(a.Session().Segments); got != 3 {
		t.Errorf("segments changed after failed Stop: %d", got)
	}
}

func TestStop_BeforeStart_FailsNotRunning(t *testing.T) {
	a := New(Options{})
	if _, err := a.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}

// Post-stop ingestion is rejected so nothing can inject segments into a
// finalized session.
func TestIngest_AfterStop_FailsSessionClosed(t *testing.T) {
	a := newRunning(t)
	a.Ingest(event("before stop", base))
	if _, err := a.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	seg, err := a.Ingest(event("late arrival", base.Add(time.Minute)))
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if seg != nil {
		t.Errorf("expected nil segment, got %+v", seg)
	}
	if got := len(a.Session().Segments); got != 1 {
		t.Errorf("session mutated after close: %d segments", got)
	}
}

// Scenario: events at t=0 "Hello", t=1 "there", t=5 "New speaker now".
// The 4s gap exceeds the 3s threshold, so the third event is Speaker_2.
func TestScenario_TwoSpeakersAcrossGap(t *testing.T) {
	a := newRunning(t)

	steps := []struct {
		text        string
		at          time.Duration
		wantSpeaker string
	}{
		{"Hello", 0, "Speaker_1"},
		{"there", time.Second, "Speaker_1"},
		{"New speaker now", 5 * time.Second, "Speaker_2"},
	}
	for i, st := range steps {
		seg, err := a.Ingest(event(st.text, base.Add(st.at)))
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if seg.SpeakerID != st.wantSpeaker {
			t.Errorf("step %d: expected %s, got %s", i, st.wantSpeaker, seg.SpeakerID)
		}
	}

	summary, err := a.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if summary.TotalSegments != 3 || summary.TotalSpeakers != 2 {
		t.Errorf("expected 3 segments / 2 speakers, got %d / %d",
			summary.TotalSegments, summary.TotalSpeakers)
	}
}

// Scenario: a whitespace-only session yields an empty summary.
func TestScenario_WhitespaceOnlySession(t *testing.T) {
	a := newRunning(t)
	seg, err := a.Ingest(event("   ", base))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if seg != nil {
		t.Errorf("expected nil segment, got %+v", seg)
	}

	summary, err := a.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if summary.TotalSegments != 0 {
		t.Errorf("expected 0 segments, got %d", summary.TotalSegments)
	}
	if summary.TotalSpeakers != 0 {
		t.Errorf("expected 0 speakers, got %d", summary.TotalSpeakers)
	}
}

// Scenario: multilingual run within the gap threshold keeps one speaker and
// reports the distinct language set.
func TestScenario_MultilingualSingleSpeaker(t *testing.T) {
	a := newRunning(t)

	langs := []string{"es-ES", "de-DE", "es-ES"}
	for i, lang := range langs {
		ev := models.RecognitionEvent{
			Text:             "utterance",
			EventTime:        base.Add(time.Duration(i) * time.Second),
			DetectedLanguage: lang,
		}
		seg, err := a.Ingest(ev)
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
		if seg.SpeakerID != "Speaker_1" {
			t.Errorf("event %d: expected Speaker_1, got %s", i, seg.SpeakerID)
		}
	}

	summary, err := a.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if len(summary.LanguagesDetected) != 2 {
		t.Fatalf("expected 2 distinct languages, got %v", summary.LanguagesDetected)
	}
	want := map[string]bool{"es-ES": true, "de-DE": true}
	for _, l := range summary.LanguagesDetected {
		if !want[l] {
			t.Errorf("unexpected language %q in %v", l, summary.LanguagesDetected)
		}
	}
}

func TestSession_SnapshotIsIsolated(t *testing.T) {
	a := newRunning(t)
	a.Ingest(event("one", base))

	snap := a.Session()
	snap.Segments[0].Text = "tampered"
	snap.Segments = append(snap.Segments, models.TranscriptSegment{SegmentID: 99})

	again := a.Session()
	if again.Segments[0].Text != "one" {
		t.Error("snapshot mutation leaked into the aggregator")
	}
	if len(again.Segments) != 1 {
		t.Errorf("expected 1 segment, got %d", len(again.Segments))
	}
}

func TestIngest_ConcurrentCallersKeepOrderingInvariants(t *testing.T) {
	a := newRunning(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				a.Ingest(event("text", base.Add(time.Duration(n*25+j)*time.Millisecond)))
			}
		}(i)
	}
	wg.Wait()

	sess := a.Session()
	if len(sess.Segments) != 200 {
		t.Fatalf("expected 200 segments, got %d", len(sess.Segments))
	}
	for i, seg := range sess.Segments {
		if seg.SegmentID != i+1 {
			t.Fatalf("segment IDs not contiguous at index %d: got %d", i, seg.SegmentID)
		}
	}
}
