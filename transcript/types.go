package transcript

// RecognitionWord is a single word from a finalized speech recognition
// result, carrying the diarized speaker label and per-word confidence.
// Words are ephemeral: they exist only long enough to be segmented.
type RecognitionWord struct {
	// Text is the raw recognized form of the word.
	Text string `json:"text"`
	// PunctuatedText is the display form with punctuation, when the
	// recognizer provides one. Empty means fall back to Text.
	PunctuatedText string `json:"punctuated_text,omitempty"`
	// SpeakerID is the diarized speaker label (e.g. "0", "1").
	SpeakerID string `json:"speaker_id"`
	// Confidence is the recognizer's confidence in [0,1].
	Confidence float64 `json:"confidence"`
	// Final reports whether the word belongs to a finalized result.
	Final bool `json:"final"`
}

// Display returns the punctuated form if available, else the raw form.
func (w RecognitionWord) Display() string {
	if w.PunctuatedText != "" {
		return w.PunctuatedText
	}
	return w.Text
}

// UtteranceSegment is a maximal run of consecutive words sharing one
// speaker. Immutable once built.
type UtteranceSegment struct {
	// SpeakerID is the diarized speaker label shared by all words.
	SpeakerID string `json:"speaker_id"`
	// Text is the space-joined display text of the segment's words.
	Text string `json:"text"`
	// Confidence is the minimum confidence over the segment's words.
	// Worst case rather than average: one mumbled word taints the run.
	Confidence float64 `json:"confidence"`
	// WordCount is the number of words joined into Text.
	WordCount int `json:"word_count"`
}
