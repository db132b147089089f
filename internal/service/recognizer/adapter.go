// Package recognizer defines the interface for speech-recognition adapters.
package recognizer

import (
	"context"
	"time"
)

// Result is one recognition result from a provider. Only finalized results
// carry confidence and timing; interim results are informational and never
// become transcript segments.
type Result struct {
	Text         string
	IsFinal      bool
	Confidence   float64 // 0 when the provider reports none
	LanguageCode string  // empty when the provider reports none
	EventTime    time.Time
	DurationMs   int64
	OffsetMs     int64
}

// Callback receives recognition results from the provider.
type Callback interface {
	// OnRecognized is called for every recognition result, interim or final.
	OnRecognized(res Result)

	// OnError is called when an error occurs during recognition.
	OnError(err error)
}

// Adapter defines the interface for speech-recognition providers.
type Adapter interface {
	// Start begins a streaming recognition session.
	Start(ctx context.Context, cb Callback) error

	// SendAudio sends audio bytes to the provider.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the session and releases resources.
	Close() error
}
