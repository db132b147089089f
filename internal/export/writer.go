// Package export renders stopped sessions to transcript files.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"meeting-transcription-service/internal/models"
	"meeting-transcription-service/internal/observability/metrics"
)

const divider = "============================================================"

// Writer persists sessions as JSON and plain-text transcript files.
// It only ever sees immutable session snapshots; file I/O lives here, not in
// the aggregator.
type Writer struct {
	dir     string
	metrics *metrics.Metrics
}

// NewWriter creates a writer that stores transcripts under dir.
func NewWriter(dir string) *Writer {
	return &Writer{
		dir:     dir,
		metrics: metrics.DefaultMetrics,
	}
}

// Write renders the session to <dir>/transcript_<sessionID>.json and .txt,
// returning both paths.
func (w *Writer) Write(sess models.Session) (jsonPath, textPath string, err error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create export dir: %w", err)
	}

	prefix := filepath.Join(w.dir, "transcript_"+sess.SessionID)

	jsonPath = prefix + ".json"
	payload, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		w.metrics.RecordExport("json", err)
		return "", "", fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(jsonPath, payload, 0o644); err != nil {
		w.metrics.RecordExport("json", err)
		return "", "", fmt.Errorf("write json transcript: %w", err)
	}
	w.metrics.RecordExport("json", nil)

	textPath = prefix + ".txt"
	if err := os.WriteFile(textPath, []byte(RenderText(sess)), 0o644); err != nil {
		w.metrics.RecordExport("text", err)
		return "", "", fmt.Errorf("write text transcript: %w", err)
	}
	w.metrics.RecordExport("text", nil)

	log.Info().
		Str("sessionId", sess.SessionID).
		Str("jsonPath", jsonPath).
		Str("textPath", textPath).
		Msg("Transcript exported")

	return jsonPath, textPath, nil
}

// RenderText produces the human-readable transcript: a header, one line per
// segment, and a summary trailer.
func RenderText(sess models.Session) string {
	var b strings.Builder

	fmt.Fprintf(&b, "MEETING TRANSCRIPT - %s\n", sess.SessionID)
	if sess.LanguageSetting != "" {
		fmt.Fprintf(&b, "Language Setting: %s\n", sess.LanguageSetting)
	}
	fmt.Fprintf(&b, "Languages Detected: %s\n", strings.Join(sess.LanguagesDetected, ", "))
	fmt.Fprintf(&b, "Started: %s\n", sess.StartTime.UTC().Format("2006-01-02T15:04:05Z07:00"))
	b.WriteString(divider + "\n\n")

	for _, seg := range sess.Segments {
		fmt.Fprintf(&b, "[%s] %s: %s\n",
			seg.StartTime.UTC().Format("15:04:05"), seg.SpeakerID, seg.Text)
	}

	b.WriteString("\n" + divider + "\n")
	fmt.Fprintf(&b, "Summary: %d segments, %d speakers\n",
		sess.TotalSegments, sess.TotalSpeakers)
	fmt.Fprintf(&b, "Languages: %s\n", strings.Join(sess.LanguagesDetected, ", "))

	return b.String()
}
