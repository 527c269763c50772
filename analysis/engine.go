package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Montinou/interview-companion-sub000/aggregator"
	"github.com/Montinou/interview-companion-sub000/logger"
	"github.com/Montinou/interview-companion-sub000/observability"
	"github.com/Montinou/interview-companion-sub000/provider"
	"github.com/Montinou/interview-companion-sub000/store"
)

// Publisher delivers pipeline events to live consumers. Implementations
// must not block.
type Publisher interface {
	Publish(interviewID uuid.UUID, event string, payload any)
}

// Event names published by the engine.
const (
	EventInsight       = "insight"
	EventRolesAssigned = "roles"
)

// Config holds analysis engine settings.
type Config struct {
	// StateWindow is how many recent insights feed the differential state.
	StateWindow int `yaml:"state_window" mapstructure:"state_window"`
	// RoleThreshold is the transcript entry count that triggers role
	// resolution.
	RoleThreshold int `yaml:"role_threshold" mapstructure:"role_threshold"`
	// FilterTimeout bounds each tier-1 call.
	FilterTimeout time.Duration `yaml:"filter_timeout" mapstructure:"filter_timeout"`
	// AnalyzeTimeout bounds each tier-2 call.
	AnalyzeTimeout time.Duration `yaml:"analyze_timeout" mapstructure:"analyze_timeout"`
	// ScorecardTimeout bounds the final synthesis call.
	ScorecardTimeout time.Duration `yaml:"scorecard_timeout" mapstructure:"scorecard_timeout"`
	// ContextBatches is how many recent batch texts the rolling context keeps.
	ContextBatches int `yaml:"context_batches" mapstructure:"context_batches"`
	// PersistQuickNotes persists tier-1 quick notes of warning or
	// critical severity even when the batch is not escalated.
	PersistQuickNotes bool `yaml:"persist_quick_notes" mapstructure:"persist_quick_notes"`
	// MailboxSize is the per-interview batch queue depth.
	MailboxSize int `yaml:"mailbox_size" mapstructure:"mailbox_size"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.StateWindow < 1 {
		c.StateWindow = 1
	}
	if c.RoleThreshold < 1 {
		c.RoleThreshold = 5
	}
	if c.FilterTimeout <= 0 {
		c.FilterTimeout = 30 * time.Second
	}
	if c.AnalyzeTimeout <= 0 {
		c.AnalyzeTimeout = 30 * time.Second
	}
	if c.ScorecardTimeout <= 0 {
		c.ScorecardTimeout = 60 * time.Second
	}
	if c.ContextBatches < 1 {
		c.ContextBatches = 3
	}
	if c.MailboxSize < 1 {
		c.MailboxSize = 16
	}
}

// Engine orchestrates the pipeline behind the aggregation buffer. Each
// interview gets its own mailbox goroutine, so read-state, deep-analyze,
// write-state runs atomically relative to other batches of the same
// interview while different interviews stay fully parallel.
type Engine struct {
	cfg      Config
	store    store.Store
	tracker  StateTracker
	filter   *Filter
	analyzer *Analyzer
	roles    *RoleResolver
	synth    *Synthesizer
	pub      Publisher
	log      *logger.Logger
	metrics  *observability.PipelineMetrics

	// recent holds each interview's rolling context between batches.
	recent *provider.MemoryStore[RecentContext]

	mu     sync.Mutex
	boxes  map[uuid.UUID]*mailbox
	closed bool
}

type mailbox struct {
	ch   chan aggregator.Batch
	done chan struct{}
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Store    store.Store
	Tracker  StateTracker
	Filter   *Filter
	Analyzer *Analyzer
	Roles    *RoleResolver
	Synth    *Synthesizer
	Pub      Publisher
	Log      *logger.Logger
	// Metrics may be nil when observability is disabled.
	Metrics *observability.PipelineMetrics
}

// NewEngine creates the engine.
func NewEngine(cfg Config, d Deps) *Engine {
	cfg.ApplyDefaults()
	return &Engine{
		cfg:      cfg,
		store:    d.Store,
		tracker:  d.Tracker,
		filter:   d.Filter,
		analyzer: d.Analyzer,
		roles:    d.Roles,
		synth:    d.Synth,
		pub:      d.Pub,
		log:      d.Log.WithComponent("engine"),
		metrics:  d.Metrics,
		recent:   provider.NewMemoryStore[RecentContext](),
		boxes:    make(map[uuid.UUID]*mailbox),
	}
}

// HandleBatch enqueues a flushed batch for analysis. It satisfies
// aggregator.FlushFunc. Never called concurrently for one interview by
// the buffer, but the mailbox serializes anyway.
func (e *Engine) HandleBatch(b aggregator.Batch) {
	box := e.box(b.InterviewID)
	if box == nil {
		e.log.Warn("batch dropped, engine closed",
			logger.Fields(logger.FieldInterviewID, b.InterviewID.String()))
		return
	}
	box.ch <- b
}

// box returns the interview's mailbox, starting its worker on first use.
func (e *Engine) box(id uuid.UUID) *mailbox {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	if box, ok := e.boxes[id]; ok {
		return box
	}
	box := &mailbox{
		ch:   make(chan aggregator.Batch, e.cfg.MailboxSize),
		done: make(chan struct{}),
	}
	e.boxes[id] = box
	go e.work(id, box)
	return box
}

func (e *Engine) work(id uuid.UUID, box *mailbox) {
	defer close(box.done)
	for b := range box.ch {
		e.process(context.Background(), b)
	}
}

// FinishInterview waits for the interview's queued batches to drain,
// then synthesizes the scorecard and marks the interview completed.
func (e *Engine) FinishInterview(ctx context.Context, id uuid.UUID) (*store.Scorecard, error) {
	e.mu.Lock()
	box := e.boxes[id]
	delete(e.boxes, id)
	e.mu.Unlock()

	if box != nil {
		close(box.ch)
		select {
		case <-box.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanScorecard)
	defer span.End()

	sc, err := e.synth.Synthesize(ctx, id)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}
	if err := e.store.UpdateInterviewStatus(ctx, id, store.StatusCompleted); err != nil {
		return nil, err
	}
	_ = e.recent.Delete(ctx, id.String())
	return sc, nil
}

// Close drains every mailbox and stops accepting batches.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	boxes := e.boxes
	e.boxes = map[uuid.UUID]*mailbox{}
	e.mu.Unlock()

	for _, box := range boxes {
		close(box.ch)
		<-box.done
	}
}

// process runs one batch through persist, role check, tier 1, and
// optionally tier 2. Runs on the interview's mailbox goroutine.
func (e *Engine) process(ctx context.Context, b aggregator.Batch) {
	ctx, span := observability.StartSpan(ctx, observability.SpanProcessBatch)
	defer span.End()
	log := e.log.WithInterview(b.InterviewID.String())

	iv, err := e.store.GetInterview(ctx, b.InterviewID)
	if err != nil {
		// Missing interview is a hard error: nothing to attach data to.
		log.Error("batch for unknown interview dropped", logger.Fields("error", err.Error()))
		e.metrics.RecordError(ctx, "engine")
		return
	}
	e.metrics.RecordBatch(ctx, b.WordCount)

	e.persistTranscript(ctx, iv, b, log)

	roleCtx, roleSpan := observability.StartSpan(ctx, observability.SpanRoleResolve)
	roleErr := e.roles.MaybeResolve(roleCtx, b.InterviewID)
	roleSpan.End()
	if roleErr != nil {
		log.Warn("role resolution check failed", logger.Fields("error", roleErr.Error()))
	} else if refreshed, err := e.store.GetInterview(ctx, b.InterviewID); err == nil {
		if refreshed.RolesAssigned && !iv.RolesAssigned && e.pub != nil {
			e.pub.Publish(b.InterviewID, EventRolesAssigned, map[string]string{
				"host":  *refreshed.HostSpeakerID,
				"guest": *refreshed.GuestSpeakerID,
			})
		}
		iv = refreshed
	}

	rc := e.loadContext(ctx, iv)
	rendered := renderBatch(b.Segments, iv)

	filterCtx, filterSpan := observability.StartSpan(ctx, observability.SpanFilterBatch)
	decision := e.filter.Evaluate(filterCtx, rendered, rc)
	filterSpan.End()
	e.metrics.RecordEscalation(ctx, decision.Escalate)
	log.Debug("escalation decision", logger.Fields(
		"escalate", decision.Escalate, "severity", decision.Severity, "reason", decision.Reason))

	var emitted int
	if decision.Escalate {
		emitted = e.deepAnalyze(ctx, iv, b, rendered, decision, rc, log)
	} else if e.cfg.PersistQuickNotes && decision.QuickNote != "" &&
		(decision.Severity == store.SeverityWarning || decision.Severity == store.SeverityCritical) {
		emitted = e.persistQuickNote(ctx, b.InterviewID, decision, log)
	}

	rc.Push(rendered, e.cfg.ContextBatches)
	rc.InsightCount += emitted
	_ = e.recent.Save(ctx, b.InterviewID.String(), &rc, 0)
}

func (e *Engine) persistTranscript(ctx context.Context, iv *store.Interview, b aggregator.Batch, log *logger.Logger) {
	entries := make([]*store.TranscriptEntry, 0, len(b.Segments))
	for i, seg := range b.Segments {
		entry := &store.TranscriptEntry{
			InterviewID: b.InterviewID,
			// Spread timestamps so chronological order matches batch order.
			Timestamp:  b.FlushedAt.Add(time.Duration(i) * time.Millisecond),
			Text:       seg.Text,
			SpeakerID:  seg.SpeakerID,
			Confidence: seg.Confidence,
		}
		// Label inline once roles are known; earlier rows were backfilled.
		if iv.RolesAssigned {
			switch {
			case iv.HostSpeakerID != nil && *iv.HostSpeakerID == seg.SpeakerID:
				role := store.RoleHost
				entry.SpeakerRole = &role
			case iv.GuestSpeakerID != nil && *iv.GuestSpeakerID == seg.SpeakerID:
				role := store.RoleGuest
				entry.SpeakerRole = &role
			}
		}
		entries = append(entries, entry)
	}
	if err := e.store.AppendTranscript(ctx, entries...); err != nil {
		log.Error("transcript persist failed", logger.Fields("error", err.Error()))
	}
}

func (e *Engine) deepAnalyze(ctx context.Context, iv *store.Interview, b aggregator.Batch, rendered string, decision TierDecision, rc RecentContext, log *logger.Logger) int {
	ctx, span := observability.StartSpan(ctx, observability.SpanDeepAnalysis)
	defer span.End()

	state, err := e.tracker.LoadLatest(ctx, b.InterviewID)
	if err != nil {
		log.Error("state load failed", logger.Fields("error", err.Error()))
		state = State{Initial: true}
	}
	prior, err := e.store.ListInsights(ctx, b.InterviewID)
	if err != nil {
		log.Warn("prior insight list failed", logger.Fields("error", err.Error()))
	}

	started := time.Now()
	insights, err := e.analyzer.Analyze(ctx, b.InterviewID, rendered, decision.Reason, rc, state, prior)
	e.metrics.RecordLLMCall(ctx, "deep_analysis", time.Since(started))
	if err != nil {
		// The batch reached tier 2, so it must still leave a row behind.
		observability.SetSpanError(ctx, err)
		log.Warn("deep analysis failed, persisting fallback note", logger.Fields("error", err.Error()))
		insights = []*store.Insight{FallbackNote(b.InterviewID, err)}
	}

	emitted := 0
	for _, in := range insights {
		if err := e.tracker.Append(ctx, in); err != nil {
			log.Error("insight persist failed", logger.Fields("error", err.Error()))
			continue
		}
		emitted++
		e.metrics.RecordInsight(ctx, in.Type, in.Severity)
		if e.pub != nil {
			e.pub.Publish(b.InterviewID, EventInsight, in)
		}
	}
	return emitted
}

func (e *Engine) persistQuickNote(ctx context.Context, id uuid.UUID, decision TierDecision, log *logger.Logger) int {
	topic := decision.Topic
	in := &store.Insight{
		InterviewID: id,
		Type:        store.InsightNote,
		Severity:    decision.Severity,
		Content:     decision.QuickNote,
		Timestamp:   time.Now(),
	}
	if topic != "" {
		in.Topic = &topic
	}
	if err := e.tracker.Append(ctx, in); err != nil {
		log.Error("quick note persist failed", logger.Fields("error", err.Error()))
		return 0
	}
	if e.pub != nil {
		e.pub.Publish(id, EventInsight, in)
	}
	return 1
}

func (e *Engine) loadContext(ctx context.Context, iv *store.Interview) RecentContext {
	rc, err := e.recent.Load(ctx, iv.ID.String())
	if err != nil || rc == nil {
		rc = &RecentContext{}
	}
	if iv.StartedAt != nil {
		rc.ElapsedMinutes = int(time.Since(*iv.StartedAt).Minutes())
	}
	return *rc
}
