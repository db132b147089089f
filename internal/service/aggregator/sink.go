package aggregator

import (
	"github.com/rs/zerolog/log"

	"meeting-transcription-service/internal/models"
)

// SegmentSink receives each emitted segment. Delivery is notify-and-continue:
// every segment is handed to every sink on its own goroutine, so a slow or
// failing sink cannot delay or corrupt ingestion. Sinks that care about
// ordering must serialize internally.
type SegmentSink interface {
	OnSegment(seg models.TranscriptSegment)
}

// SegmentSinkFunc adapts a function to the SegmentSink interface.
type SegmentSinkFunc func(seg models.TranscriptSegment)

// OnSegment implements SegmentSink.
func (f SegmentSinkFunc) OnSegment(seg models.TranscriptSegment) {
	f(seg)
}

// dispatch fans a segment out to all sinks. A panicking sink is logged and
// contained; it never reaches the ingestion path.
func dispatch(sinks []SegmentSink, seg models.TranscriptSegment) {
	for _, sink := range sinks {
		go func(s SegmentSink) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Int("segmentId", seg.SegmentID).
						Msg("Segment sink panicked")
				}
			}()
			s.OnSegment(seg)
		}(sink)
	}
}
