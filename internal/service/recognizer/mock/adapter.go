// Package mock provides a mock recognizer for testing and credential-free
// demo runs. It emits scripted multilingual utterances on a timer, the way a
// streaming provider delivers finalized results as people speak.
package mock

import (
	"context"
	"sync"
	"time"

	"meeting-transcription-service/internal/service/recognizer"
)

// ScriptedUtterance is one simulated finalized recognition result.
type ScriptedUtterance struct {
	Text         string
	LanguageCode string
	Confidence   float64
	// Pause before this utterance is emitted, relative to the previous one.
	// Pauses above the aggregator's gap threshold simulate speaker changes.
	Pause time.Duration
}

// DefaultScript simulates a short multilingual meeting with two speakers.
var DefaultScript = []ScriptedUtterance{
	{Text: "Good morning everyone, let's get started", LanguageCode: "en-US", Confidence: 0.96, Pause: 0},
	{Text: "First item is the quarterly report", LanguageCode: "en-US", Confidence: 0.94, Pause: time.Second},
	{Text: "Hola, una pregunta sobre el presupuesto", LanguageCode: "es-ES", Confidence: 0.91, Pause: 4 * time.Second},
	{Text: "Claro, lo revisamos ahora", LanguageCode: "es-ES", Confidence: 0.93, Pause: time.Second},
	{Text: "Können wir auch den Zeitplan besprechen", LanguageCode: "de-DE", Confidence: 0.89, Pause: 5 * time.Second},
	{Text: "Yes, the schedule is next on the agenda", LanguageCode: "en-US", Confidence: 0.95, Pause: 2 * time.Second},
}

// Adapter implements recognizer.Adapter with scripted results.
type Adapter struct {
	mu     sync.Mutex
	cb     recognizer.Callback
	script []ScriptedUtterance
	// Speedup divides scripted pauses, so tests and demos don't wait out
	// real silences. 0 means real-time.
	Speedup int
	closed  bool
	done    chan struct{}
}

// New creates a mock recognizer playing the default script.
func New() *Adapter {
	return NewWithScript(DefaultScript)
}

// NewWithScript creates a mock recognizer playing a custom script.
func NewWithScript(script []ScriptedUtterance) *Adapter {
	return &Adapter{
		script: script,
		done:   make(chan struct{}),
	}
}

// Start begins emitting the script. Each utterance is delivered after its
// scripted pause; emission stops when the script ends, the context is
// canceled, or Close is called.
func (a *Adapter) Start(ctx context.Context, cb recognizer.Callback) error {
	a.mu.Lock()
	a.cb = cb
	speedup := a.Speedup
	if speedup <= 0 {
		speedup = 1
	}
	a.mu.Unlock()

	go func() {
		defer close(a.done)
		// Event times advance by the scripted pauses even when playback is
		// sped up, so the aggregator sees the original silences.
		eventTime := time.Now()
		for _, utt := range a.script {
			select {
			case <-ctx.Done():
				return
			case <-time.After(utt.Pause / time.Duration(speedup)):
			}

			a.mu.Lock()
			closed := a.closed
			a.mu.Unlock()
			if closed {
				return
			}

			eventTime = eventTime.Add(utt.Pause)
			cb.OnRecognized(recognizer.Result{
				Text:         utt.Text,
				EventTime:    eventTime,
				IsFinal:      true,
				Confidence:   utt.Confidence,
				LanguageCode: utt.LanguageCode,
			})
		}
	}()

	return nil
}

// SendAudio accepts and discards audio; the mock is script-driven.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	return nil
}

// Close stops emission.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// Done is closed when the script has been fully played.
func (a *Adapter) Done() <-chan struct{} {
	return a.done
}
