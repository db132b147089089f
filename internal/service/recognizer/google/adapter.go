// Package google provides a Google Cloud Speech-to-Text recognizer.
package google

import (
	"context"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"meeting-transcription-service/internal/service/recognizer"
)

// Config holds recognition settings for the Google adapter.
type Config struct {
	// LanguageCode is the primary recognition language.
	LanguageCode string
	// AlternativeLanguages enables language auto-detection across these
	// candidates in addition to LanguageCode.
	AlternativeLanguages []string
	SampleRateHz         int
	AudioEncoding        string
	InterimResults       bool
}

// DefaultConfig returns recognition settings for 16kHz LINEAR16 audio.
func DefaultConfig() Config {
	return Config{
		LanguageCode:  "en-US",
		SampleRateHz:  16000,
		AudioEncoding: "LINEAR16",
	}
}

// parseAudioEncoding maps an encoding name to the proto enum, defaulting to
// LINEAR16 for anything unrecognized.
func parseAudioEncoding(s string) speechpb.RecognitionConfig_AudioEncoding {
	switch s {
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

// Adapter implements recognizer.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	client      *speech.Client
	stream      speechpb.Speech_StreamingRecognizeClient
	cb          recognizer.Callback
	cfg         Config
	streamStart time.Time
}

// New creates a new Google recognizer adapter.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.SampleRateHz == 0 {
		cfg.SampleRateHz = 16000
	}
	return &Adapter{client: c, cfg: cfg}, nil
}

// Start begins a streaming recognition session and sends the initial config.
func (a *Adapter) Start(ctx context.Context, cb recognizer.Callback) error {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return err
	}
	a.stream = stream
	a.cb = cb
	a.streamStart = time.Now()

	// Send streaming config as the first message
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                 parseAudioEncoding(a.cfg.AudioEncoding),
					SampleRateHertz:          int32(a.cfg.SampleRateHz),
					LanguageCode:             a.cfg.LanguageCode,
					AlternativeLanguageCodes: a.cfg.AlternativeLanguages,
				},
				InterimResults: a.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		return err
	}

	go a.listen()
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	return a.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close ends the streaming session.
func (a *Adapter) Close() error {
	if a.stream != nil {
		return a.stream.CloseSend()
	}
	return nil
}

// listen receives recognition responses and invokes callbacks until the
// stream ends.
func (a *Adapter) listen() {
	for {
		resp, err := a.stream.Recv()
		if err != nil {
			a.cb.OnError(err)
			return
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]

			res := recognizer.Result{
				Text:         alt.Transcript,
				IsFinal:      r.IsFinal,
				Confidence:   float64(alt.Confidence),
				LanguageCode: r.LanguageCode,
				EventTime:    time.Now(),
			}
			// Prefer the stream-relative result time over the receive
			// time; gap attribution must survive delivery jitter.
			if end := r.ResultEndTime; end != nil {
				offset := end.AsDuration()
				res.EventTime = a.streamStart.Add(offset)
				res.OffsetMs = offset.Milliseconds()
			}

			a.cb.OnRecognized(res)
		}
	}
}
