// Package transcript turns diarized word-level recognition output into
// speaker-attributed utterance segments.
package transcript

import "strings"

// Segment groups an ordered word sequence into contiguous same-speaker
// utterance segments. It is a pure function of one recognition result:
// no state survives between calls, and merging across results is the
// aggregation buffer's job.
//
// Empty input yields empty output. A segment of one word is valid.
func Segment(words []RecognitionWord) []UtteranceSegment {
	if len(words) == 0 {
		return nil
	}

	segments := make([]UtteranceSegment, 0, 4)

	var parts []string
	current := words[0].SpeakerID
	minConf := words[0].Confidence

	flush := func() {
		text := strings.Join(parts, " ")
		segments = append(segments, UtteranceSegment{
			SpeakerID:  current,
			Text:       text,
			Confidence: minConf,
			WordCount:  len(strings.Fields(text)),
		})
	}

	for i, w := range words {
		if w.SpeakerID != current {
			flush()
			current = w.SpeakerID
			minConf = w.Confidence
			parts = parts[:0]
		} else if i > 0 && w.Confidence < minConf {
			minConf = w.Confidence
		}
		parts = append(parts, w.Display())
	}
	flush()

	return segments
}
