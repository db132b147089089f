// Console transcriber - runs one capture session end to end, printing
// segments as they are recognized and exporting the transcript on exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meeting-transcription-service/internal/export"
	"meeting-transcription-service/internal/models"
	"meeting-transcription-service/internal/observability/logging"
	"meeting-transcription-service/internal/service/aggregator"
	"meeting-transcription-service/internal/service/capture"
	"meeting-transcription-service/internal/service/recognizer"
	"meeting-transcription-service/internal/service/recognizer/google"
	"meeting-transcription-service/internal/service/recognizer/mock"
)

func main() {
	provider := flag.String("provider", "mock", "Recognizer provider (mock, google)")
	language := flag.String("language", "auto", "Recognition language (auto or a BCP-47 code)")
	duration := flag.Duration("duration", 0, "Stop after this duration (0 = run until interrupted)")
	output := flag.String("output", "transcripts", "Directory for exported transcripts")
	speedup := flag.Int("speedup", 1, "Playback speedup for the mock provider")
	flag.Parse()

	// Keep structured logs out of the console transcript.
	logCfg := logging.DefaultConfig()
	logCfg.Level = "warn"
	logging.Init(logCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var scriptDone <-chan struct{}
	var adapter recognizer.Adapter
	switch *provider {
	case "google":
		gcfg := google.DefaultConfig()
		if *language == "auto" {
			gcfg.AlternativeLanguages = []string{"es-ES", "de-DE", "en-US"}
		} else if *language != "" {
			gcfg.LanguageCode = *language
		}
		g, err := google.New(ctx, gcfg)
		if err != nil {
			log.Fatalf("Failed to create Google recognizer: %v", err)
		}
		adapter = g
	default:
		m := mock.New()
		m.Speedup = *speedup
		scriptDone = m.Done()
		adapter = m
	}

	h := capture.NewHandler(adapter, nil, capture.Options{
		LanguageSetting: *language,
		Source:          *provider,
		Provider:        *provider,
	})
	h.AddSink(aggregator.SegmentSinkFunc(func(seg models.TranscriptSegment) {
		fmt.Printf("[%s] %s: %s\n",
			seg.StartTime.UTC().Format("15:04:05"), seg.SpeakerID, seg.Text)
	}))

	sess, err := h.Start(ctx, "")
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	log.Printf("Session %s started (provider=%s), press Ctrl+C to stop", sess.SessionID, *provider)

	// The Google provider transcribes raw PCM piped on stdin, e.g.
	// sox -d -r 16000 -b 16 -c 1 -t raw - | transcribe -provider google
	if *provider == "google" {
		go streamStdin(ctx, h)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	var timeout <-chan time.Time
	if *duration > 0 {
		timeout = time.After(*duration)
	}

	select {
	case <-sig:
		log.Println("Interrupted, finalizing transcript")
	case <-timeout:
		log.Println("Duration elapsed, finalizing transcript")
	case <-done(scriptDone):
		log.Println("Script finished, finalizing transcript")
	}
	cancel()

	summary, err := h.Stop()
	if err != nil {
		log.Fatalf("Failed to stop session: %v", err)
	}

	jsonPath, textPath, err := export.NewWriter(*output).Write(h.Session())
	if err != nil {
		log.Fatalf("Failed to export transcript: %v", err)
	}

	fmt.Printf("\nSummary: %d segments, %d speakers, languages: %v\n",
		summary.TotalSegments, summary.TotalSpeakers, summary.LanguagesDetected)
	fmt.Printf("Transcript written to %s and %s\n", jsonPath, textPath)
}

// streamStdin forwards raw 16kHz 16-bit mono PCM from stdin to the
// recognizer in 100ms chunks.
func streamStdin(ctx context.Context, h *capture.Handler) {
	chunk := make([]byte, 3200)
	for {
		n, err := os.Stdin.Read(chunk)
		if n > 0 {
			if err := h.SendAudio(ctx, chunk[:n]); err != nil {
				log.Printf("Failed to send audio: %v", err)
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// done adapts a possibly-nil channel for select; a nil recognizer never
// finishes on its own.
func done(ch <-chan struct{}) <-chan struct{} {
	if ch == nil {
		return make(chan struct{})
	}
	return ch
}
