// Package session manages live capture sessions: one per interview,
// bridging the speech source into the segmenter, the aggregation buffer,
// and the analysis engine, and bounding the pipeline's lifetime between
// start and stop.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Montinou/interview-companion-sub000/aggregator"
	"github.com/Montinou/interview-companion-sub000/analysis"
	"github.com/Montinou/interview-companion-sub000/errors"
	"github.com/Montinou/interview-companion-sub000/logger"
	"github.com/Montinou/interview-companion-sub000/observability"
	"github.com/Montinou/interview-companion-sub000/store"
	"github.com/Montinou/interview-companion-sub000/stt"
	"github.com/Montinou/interview-companion-sub000/transcript"
)

// EventCaptureError is published when the upstream recognition source
// fails, so the session surfaces as failed instead of hanging silently.
const EventCaptureError = "capture-error"

// SourceFactory opens a speech recognition source for one session.
type SourceFactory func(ctx context.Context) (stt.Source, error)

// session is one live capture pipeline.
type session struct {
	interviewID uuid.UUID
	source      stt.Source
	buffer      *aggregator.Buffer
	cancel      context.CancelFunc
	done        chan struct{}
}

// Manager owns all live sessions. One session per interview at a time.
type Manager struct {
	bufferCfg aggregator.Config
	newSource SourceFactory
	engine    *analysis.Engine
	store     store.Store
	pub       analysis.Publisher
	log       *logger.Logger
	metrics   *observability.PipelineMetrics

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

// NewManager creates a session manager. metrics may be nil.
func NewManager(bufferCfg aggregator.Config, factory SourceFactory, engine *analysis.Engine, s store.Store, pub analysis.Publisher, log *logger.Logger, metrics *observability.PipelineMetrics) *Manager {
	return &Manager{
		bufferCfg: bufferCfg,
		newSource: factory,
		engine:    engine,
		store:     s,
		pub:       pub,
		log:       log.WithComponent("session"),
		metrics:   metrics,
		sessions:  make(map[uuid.UUID]*session),
	}
}

// Start opens the recognition source and begins buffering utterances for
// the interview. Starting an already-capturing interview is a conflict.
func (m *Manager) Start(ctx context.Context, interviewID uuid.UUID) error {
	if _, err := m.store.GetInterview(ctx, interviewID); err != nil {
		return err
	}

	m.mu.Lock()
	if _, running := m.sessions[interviewID]; running {
		m.mu.Unlock()
		return errors.Conflict("capture already running for this interview")
	}
	// Reserve the slot before the blocking source dial.
	m.sessions[interviewID] = nil
	m.mu.Unlock()

	release := func() {
		m.mu.Lock()
		delete(m.sessions, interviewID)
		m.mu.Unlock()
	}

	src, err := m.newSource(ctx)
	if err != nil {
		release()
		return errors.CaptureFailed(interviewID.String(), err)
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	if err := src.Start(sessCtx); err != nil {
		cancel()
		release()
		return errors.CaptureFailed(interviewID.String(), err)
	}

	if err := m.store.UpdateInterviewStatus(ctx, interviewID, store.StatusCapturing); err != nil {
		cancel()
		_ = src.Close()
		release()
		return err
	}

	log := m.log.WithInterview(interviewID.String())
	sess := &session{
		interviewID: interviewID,
		source:      src,
		buffer:      aggregator.NewBuffer(interviewID, m.bufferCfg, m.engine.HandleBatch, m.log),
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[interviewID] = sess
	m.mu.Unlock()

	go m.pump(sessCtx, sess, log)
	m.metrics.SessionStarted(ctx)
	log.Info("capture started")
	return nil
}

// pump moves recognition results through the segmenter into the buffer
// until the source ends or the session is canceled.
func (m *Manager) pump(ctx context.Context, sess *session, log *logger.Logger) {
	defer close(sess.done)
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-sess.source.Results():
			if !ok {
				return
			}
			sess.buffer.Add(transcript.Segment(res.Words)...)
		case err, ok := <-sess.source.Errors():
			if !ok {
				return
			}
			// Disconnects are terminal for the session: fail loudly
			// rather than buffering into a void.
			log.Error("recognition source failed", logger.Fields("error", err.Error()))
			if updErr := m.store.UpdateInterviewStatus(context.Background(), sess.interviewID, store.StatusFailed); updErr != nil {
				log.Error("status update failed", logger.Fields("error", updErr.Error()))
			}
			if m.pub != nil {
				m.pub.Publish(sess.interviewID, EventCaptureError, map[string]string{"error": err.Error()})
			}
			m.teardown(sess, log)
			return
		}
	}
}

// SendAudio forwards captured audio bytes to the session's source.
func (m *Manager) SendAudio(interviewID uuid.UUID, data []byte) error {
	m.mu.Lock()
	sess := m.sessions[interviewID]
	m.mu.Unlock()
	if sess == nil {
		return errors.SessionClosed(interviewID.String())
	}
	if err := sess.source.SendAudio(data); err != nil {
		return errors.CaptureFailed(interviewID.String(), err)
	}
	return nil
}

// Stop ends capture: closes the recognition connection and force-flushes
// the buffer so trailing utterances still reach analysis. In-flight
// analysis finishes on the engine's mailbox; Stop does not wait for it.
func (m *Manager) Stop(ctx context.Context, interviewID uuid.UUID) error {
	m.mu.Lock()
	sess := m.sessions[interviewID]
	if sess != nil {
		delete(m.sessions, interviewID)
	}
	m.mu.Unlock()
	if sess == nil {
		// Either no session exists or a concurrent Start is still
		// dialing and holds the slot reservation. Leave the
		// reservation in place for the dialing Start.
		return errors.SessionClosed(interviewID.String())
	}

	log := m.log.WithInterview(interviewID.String())
	if err := sess.source.Close(); err != nil {
		log.Warn("source close failed", logger.Fields("error", err.Error()))
	}
	sess.cancel()
	select {
	case <-sess.done:
	case <-ctx.Done():
	}
	sess.buffer.Close()
	m.metrics.SessionStopped(ctx)
	log.Info("capture stopped")
	return nil
}

// teardown is the failure path: same as Stop but initiated internally.
func (m *Manager) teardown(sess *session, log *logger.Logger) {
	m.mu.Lock()
	// A racing Stop may have removed the entry already and a new Start
	// reserved the slot; only remove this session's own entry.
	if cur, ok := m.sessions[sess.interviewID]; ok && cur == sess {
		delete(m.sessions, sess.interviewID)
	}
	m.mu.Unlock()

	_ = sess.source.Close()
	sess.cancel()
	sess.buffer.Close()
	m.metrics.SessionStopped(context.Background())
	m.metrics.RecordError(context.Background(), "session")
	log.Info("capture torn down after failure")
}

// Running reports whether the interview has a live session.
func (m *Manager) Running(interviewID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[interviewID] != nil
}

// Complete stops any live capture and runs the terminal scorecard
// synthesis, marking the interview completed.
func (m *Manager) Complete(ctx context.Context, interviewID uuid.UUID) (*store.Scorecard, error) {
	if m.Running(interviewID) {
		if err := m.Stop(ctx, interviewID); err != nil {
			return nil, err
		}
	}
	return m.engine.FinishInterview(ctx, interviewID)
}

// Close stops every live session. Used on shutdown.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Stop(ctx, id); err != nil {
			m.log.Warn("session stop on shutdown failed", logger.Fields(
				logger.FieldInterviewID, id.String(), "error", err.Error()))
		}
	}
}
