// Package stt defines the streaming speech recognition contract the
// pipeline consumes. Backends live in sub-packages.
package stt

import (
	"context"

	"github.com/Montinou/interview-companion-sub000/transcript"
)

// Result is one finalized recognition result: an ordered word sequence
// with per-word speaker labels and confidences.
type Result struct {
	Words []transcript.RecognitionWord
}

// Source is a live speech-to-text session over a persistent streaming
// connection. A disconnect is terminal for the session; the caller must
// restart capture rather than expect the source to recover.
type Source interface {
	// Start opens the streaming connection.
	Start(ctx context.Context) error

	// SendAudio forwards a chunk of raw audio bytes upstream.
	SendAudio(data []byte) error

	// Results returns the channel of finalized recognition results.
	// The channel is closed when the session ends.
	Results() <-chan Result

	// Errors returns the channel carrying terminal capture failures.
	// A value here means the session is dead, not degraded.
	Errors() <-chan error

	// Close ends the session and releases the connection.
	Close() error
}
