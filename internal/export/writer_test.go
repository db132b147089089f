package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meeting-transcription-service/internal/models"
)

func sampleSession() models.Session {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return models.Session{
		SessionID:       "session_20250601_100000",
		StartTime:       start,
		EndTime:         start.Add(30 * time.Second),
		LanguageSetting: "auto",
		Segments: []models.TranscriptSegment{
			{SegmentID: 1, SpeakerID: "Speaker_1", Text: "Hello there", DetectedLanguage: "en-US", StartTime: start, Confidence: 0.95},
			{SegmentID: 2, SpeakerID: "Speaker_2", Text: "Hola a todos", DetectedLanguage: "es-ES", StartTime: start.Add(5 * time.Second), Confidence: 0.91},
		},
		TotalSegments:     2,
		TotalSpeakers:     2,
		LanguagesDetected: []string{"en-US", "es-ES"},
	}
}

func TestRenderText(t *testing.T) {
	out := RenderText(sampleSession())

	wantLines := []string{
		"MEETING TRANSCRIPT - session_20250601_100000",
		"Language Setting: auto",
		"Languages Detected: en-US, es-ES",
		"[10:00:00] Speaker_1: Hello there",
		"[10:00:05] Speaker_2: Hola a todos",
		"Summary: 2 segments, 2 speakers",
		"Languages: en-US, es-ES",
	}
	for _, want := range wantLines {
		if !strings.Contains(out, want) {
			t.Errorf("rendered transcript missing %q:\n%s", want, out)
		}
	}
}

func TestRenderText_EmptySession(t *testing.T) {
	sess := models.Session{
		SessionID: "session_empty",
		StartTime: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	out := RenderText(sess)
	if !strings.Contains(out, "Summary: 0 segments, 0 speakers") {
		t.Errorf("expected empty summary line, got:\n%s", out)
	}
}

func TestWriter_Write(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	sess := sampleSession()
	jsonPath, textPath, err := w.Write(sess)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if filepath.Dir(jsonPath) != dir || filepath.Dir(textPath) != dir {
		t.Errorf("files written outside export dir: %s, %s", jsonPath, textPath)
	}

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("reading json transcript: %v", err)
	}
	var decoded models.Session
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("json transcript is not valid JSON: %v", err)
	}
	if decoded.SessionID != sess.SessionID {
		t.Errorf("expected session ID %s, got %s", sess.SessionID, decoded.SessionID)
	}
	if len(decoded.Segments) != 2 {
		t.Errorf("expected 2 segments in JSON export, got %d", len(decoded.Segments))
	}

	text, err := os.ReadFile(textPath)
	if err != nil {
		t.Fatalf("reading text transcript: %v", err)
	}
	if !strings.Contains(string(text), "Speaker_1: Hello there") {
		t.Errorf("text transcript missing segment line:\n%s", text)
	}
}

func TestWriter_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	w := NewWriter(dir)

	if _, _, err := w.Write(sampleSession()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("export dir not created: %v", err)
	}
}
