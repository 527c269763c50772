package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Montinou/interview-companion-sub000/aggregator"
	"github.com/Montinou/interview-companion-sub000/analysis"
	"github.com/Montinou/interview-companion-sub000/llm"
	"github.com/Montinou/interview-companion-sub000/logger"
	"github.com/Montinou/interview-companion-sub000/provider"
	"github.com/Montinou/interview-companion-sub000/store"
	"github.com/Montinou/interview-companion-sub000/stt"
	"github.com/Montinou/interview-companion-sub000/transcript"
)

type fakeSource struct {
	results chan stt.Result
	errs    chan error
	mu      sync.Mutex
	audio   [][]byte
	closed  bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		results: make(chan stt.Result, 8),
		errs:    make(chan error, 1),
	}
}

func (f *fakeSource) Start(context.Context) error { return nil }

func (f *fakeSource) SendAudio(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("closed")
	}
	f.audio = append(f.audio, data)
	return nil
}

func (f *fakeSource) Results() <-chan stt.Result { return f.results }
func (f *fakeSource) Errors() <-chan error       { return f.errs }

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ uuid.UUID, event string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) has(event string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e == event {
			return true
		}
	}
	return false
}

func noEscalateLLM() provider.RequestResponse[llm.CompletionRequest, llm.CompletionResponse] {
	return provider.Func("quiet", func(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{Content: `{"escalate":false,"reason":"r","severity":"none"}`}, nil
	})
}

func newTestManager(t *testing.T, m *store.Memory, src *fakeSource, pub analysis.Publisher) *Manager {
	t.Helper()
	log := logger.NewDefault("test")
	quiet := noEscalateLLM()
	engine := analysis.NewEngine(analysis.Config{}, analysis.Deps{
		Store:    m,
		Tracker:  analysis.NewInsightLogTracker(m, 1),
		Filter:   analysis.NewFilter(quiet, time.Second, log),
		Analyzer: analysis.NewAnalyzer(quiet, time.Second, log),
		Roles:    analysis.NewRoleResolver(quiet, m, 5, time.Second, log),
		Synth:    analysis.NewSynthesizer(quiet, m, time.Second, log),
		Pub:      pub,
		Log:      log,
	})
	t.Cleanup(engine.Close)

	factory := func(context.Context) (stt.Source, error) { return src, nil }
	// Long flush interval so only the stop flush matters in tests.
	return NewManager(aggregator.Config{FlushInterval: time.Hour, MinWords: 5}, factory, engine, m, pub, log, nil)
}

func word(speaker, text string) transcript.RecognitionWord {
	return transcript.RecognitionWord{Text: text, SpeakerID: speaker, Confidence: 0.9, Final: true}
}

func TestStartStopFlushesTrailingData(t *testing.T) {
	m := store.NewMemory()
	iv := &store.Interview{Title: "screen"}
	_ = m.CreateInterview(context.Background(), iv)

	src := newFakeSource()
	mgr := newTestManager(t, m, src, nil)
	ctx := context.Background()

	if err := mgr.Start(ctx, iv.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !mgr.Running(iv.ID) {
		t.Fatal("session not running after Start")
	}

	src.results <- stt.Result{Words: []transcript.RecognitionWord{
		word("0", "thanks"), word("0", "for"), word("0", "joining"),
	}}
	// Let the pump drain the result before stopping.
	time.Sleep(20 * time.Millisecond)

	if err := mgr.Stop(ctx, iv.ID); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Wait for the engine mailbox to process the stop flush.
	time.Sleep(50 * time.Millisecond)

	entries, _ := m.ListTranscript(ctx, iv.ID)
	if len(entries) != 1 {
		t.Fatalf("got %d transcript entries, want 1 (3 words below minimum, stop flush is unconditional)", len(entries))
	}
	if entries[0].Text != "thanks for joining" {
		t.Errorf("entry text = %q", entries[0].Text)
	}
}

func TestStartTwiceConflicts(t *testing.T) {
	m := store.NewMemory()
	iv := &store.Interview{}
	_ = m.CreateInterview(context.Background(), iv)

	mgr := newTestManager(t, m, newFakeSource(), nil)
	if err := mgr.Start(context.Background(), iv.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = mgr.Stop(context.Background(), iv.ID) }()

	if err := mgr.Start(context.Background(), iv.ID); err == nil {
		t.Error("second Start succeeded, want conflict")
	}
}

func TestStartUnknownInterviewFails(t *testing.T) {
	mgr := newTestManager(t, store.NewMemory(), newFakeSource(), nil)
	if err := mgr.Start(context.Background(), uuid.New()); err == nil {
		t.Error("Start for unknown interview succeeded")
	}
}

func TestSendAudioRequiresLiveSession(t *testing.T) {
	m := store.NewMemory()
	iv := &store.Interview{}
	_ = m.CreateInterview(context.Background(), iv)

	src := newFakeSource()
	mgr := newTestManager(t, m, src, nil)

	if err := mgr.SendAudio(iv.ID, []byte{1, 2}); err == nil {
		t.Error("SendAudio before Start succeeded")
	}

	if err := mgr.Start(context.Background(), iv.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := mgr.SendAudio(iv.ID, []byte{1, 2}); err != nil {
		t.Errorf("SendAudio while running: %v", err)
	}

	_ = mgr.Stop(context.Background(), iv.ID)
	if err := mgr.SendAudio(iv.ID, []byte{3}); err == nil {
		t.Error("SendAudio after Stop succeeded")
	}
}

func TestStopLeavesDialReservationAlone(t *testing.T) {
	m := store.NewMemory()
	iv := &store.Interview{}
	_ = m.CreateInterview(context.Background(), iv)

	mgr := newTestManager(t, m, newFakeSource(), nil)

	// A Start that is still dialing holds the slot with a nil entry.
	mgr.mu.Lock()
	mgr.sessions[iv.ID] = nil
	mgr.mu.Unlock()

	if err := mgr.Stop(context.Background(), iv.ID); err == nil {
		t.Fatal("Stop during dial succeeded, want session-closed error")
	}

	mgr.mu.Lock()
	_, reserved := mgr.sessions[iv.ID]
	mgr.mu.Unlock()
	if !reserved {
		t.Error("Stop removed the dial reservation, a second Start could now race in")
	}

	// The dialing Start still wins its conflict check.
	if err := mgr.Start(context.Background(), iv.ID); err == nil {
		t.Error("Start succeeded over a held reservation, want conflict")
	}
}

func TestSourceErrorMarksInterviewFailed(t *testing.T) {
	m := store.NewMemory()
	iv := &store.Interview{}
	_ = m.CreateInterview(context.Background(), iv)

	src := newFakeSource()
	pub := &recordingPublisher{}
	mgr := newTestManager(t, m, src, pub)

	if err := mgr.Start(context.Background(), iv.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	src.errs <- errors.New("websocket closed")
	time.Sleep(50 * time.Millisecond)

	got, _ := m.GetInterview(context.Background(), iv.ID)
	if got.Status != store.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if !pub.has(EventCaptureError) {
		t.Error("capture-error event not published")
	}
	if mgr.Running(iv.ID) {
		t.Error("session still running after source failure")
	}
}
