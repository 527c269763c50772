// Package aggregator batches utterance segments per interview so the
// expensive analysis tiers see chunks, not single utterances.
package aggregator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Montinou/interview-companion-sub000/logger"
	"github.com/Montinou/interview-companion-sub000/transcript"
)

// Config holds aggregation buffer settings.
type Config struct {
	// FlushInterval is the periodic flush window.
	FlushInterval time.Duration `yaml:"flush_interval" mapstructure:"flush_interval"`
	// MinWords is the minimum total word count for a batch to be emitted.
	// Batches below it are discarded: filler noise is not worth a call.
	MinWords int `yaml:"min_words" mapstructure:"min_words"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.FlushInterval <= 0 {
		c.FlushInterval = 15 * time.Second
	}
	if c.MinWords <= 0 {
		c.MinWords = 5
	}
}

// Batch is one flushed, ordered group of segments for analysis.
type Batch struct {
	InterviewID uuid.UUID
	Segments    []transcript.UtteranceSegment
	WordCount   int
	FlushedAt   time.Time
	// Final marks the unconditional flush at session stop.
	Final bool
}

// FlushFunc receives emitted batches. It must not block for long: it runs
// on the buffer's flush goroutine.
type FlushFunc func(Batch)

// Buffer accumulates finalized utterance segments for one interview and
// releases them as a batch when the flush window elapses or the session
// stops. All mutation is serialized through one mutex: the queue and the
// window timer are shared state with a single-writer invariant.
type Buffer struct {
	cfg  Config
	id   uuid.UUID
	emit FlushFunc
	log  *logger.Logger

	mu     sync.Mutex
	queue  []transcript.UtteranceSegment
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewBuffer creates a buffer for one interview and starts its flush loop.
func NewBuffer(interviewID uuid.UUID, cfg Config, emit FlushFunc, log *logger.Logger) *Buffer {
	cfg.ApplyDefaults()
	b := &Buffer{
		cfg:  cfg,
		id:   interviewID,
		emit: emit,
		log:  log.WithComponent("aggregator").WithInterview(interviewID.String()),
		done: make(chan struct{}),
	}
	b.wg.Add(1)
	go b.run()
	return b
}

// Add enqueues segments. Segments arriving after Close are dropped.
func (b *Buffer) Add(segments ...transcript.UtteranceSegment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.queue = append(b.queue, segments...)
}

// Len returns the number of queued segments.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close stops the flush loop and force-flushes whatever remains,
// bypassing the minimum-word check so no trailing data is lost.
func (b *Buffer) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.done)
	b.wg.Wait()
	b.flush(true)
}

// run is the periodic flush loop. The timer resets after every flush,
// emitted or discarded, so this is a fixed window, not a debounce.
func (b *Buffer) run() {
	defer b.wg.Done()
	timer := time.NewTimer(b.cfg.FlushInterval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			b.flush(false)
			timer.Reset(b.cfg.FlushInterval)
		case <-b.done:
			return
		}
	}
}

// flush drains the queue. Below the word minimum the batch is discarded
// silently unless force is set.
func (b *Buffer) flush(force bool) {
	b.mu.Lock()
	if len(b.queue) == 0 {
		b.mu.Unlock()
		return
	}
	segments := b.queue
	b.queue = nil
	b.mu.Unlock()

	words := 0
	for _, s := range segments {
		words += s.WordCount
	}

	if !force && words < b.cfg.MinWords {
		b.log.Debug("batch below word minimum, discarded",
			logger.Fields("segments", len(segments), "words", words))
		return
	}

	b.emit(Batch{
		InterviewID: b.id,
		Segments:    segments,
		WordCount:   words,
		FlushedAt:   time.Now(),
		Final:       force,
	})
}
