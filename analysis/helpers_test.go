package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Montinou/interview-companion-sub000/aggregator"
	"github.com/Montinou/interview-companion-sub000/llm"
	"github.com/Montinou/interview-companion-sub000/logger"
	"github.com/Montinou/interview-companion-sub000/provider"
	"github.com/Montinou/interview-companion-sub000/store"
	"github.com/Montinou/interview-companion-sub000/transcript"
)

// scriptedLLM returns canned responses in order, then repeats the last.
// A nil entry in errs means success for that call.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedLLM) rr() provider.RequestResponse[llm.CompletionRequest, llm.CompletionResponse] {
	return provider.Func("scripted", func(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		i := s.calls
		s.calls++
		if i >= len(s.responses) {
			i = len(s.responses) - 1
		}
		if i < len(s.errs) && s.errs[i] != nil {
			return llm.CompletionResponse{}, s.errs[i]
		}
		return llm.CompletionResponse{Content: s.responses[i], Model: "scripted"}, nil
	})
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testLogger() *logger.Logger {
	return logger.NewDefault("test")
}

func testInterview(m *store.Memory) uuid.UUID {
	iv := &store.Interview{Title: "systems design round"}
	_ = m.CreateInterview(context.Background(), iv)
	_ = m.UpdateInterviewStatus(context.Background(), iv.ID, store.StatusCapturing)
	return iv.ID
}

func testBatch(id uuid.UUID, texts ...[2]string) aggregator.Batch {
	segments := make([]transcript.UtteranceSegment, len(texts))
	words := 0
	for i, t := range texts {
		n := len(t[1])/5 + 1
		segments[i] = transcript.UtteranceSegment{
			SpeakerID: t[0], Text: t[1], Confidence: 0.9, WordCount: n,
		}
		words += n
	}
	return aggregator.Batch{
		InterviewID: id,
		Segments:    segments,
		WordCount:   words,
		FlushedAt:   time.Now(),
	}
}
