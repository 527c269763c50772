package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Montinou/interview-companion-sub000/aggregator"
	"github.com/Montinou/interview-companion-sub000/analysis"
	"github.com/Montinou/interview-companion-sub000/llm"
	"github.com/Montinou/interview-companion-sub000/logger"
	"github.com/Montinou/interview-companion-sub000/provider"
	"github.com/Montinou/interview-companion-sub000/session"
	"github.com/Montinou/interview-companion-sub000/sse"
	"github.com/Montinou/interview-companion-sub000/store"
	"github.com/Montinou/interview-companion-sub000/stt"
)

type fakeSource struct {
	results chan stt.Result
	errs    chan error
}

func newFakeSource() *fakeSource {
	return &fakeSource{results: make(chan stt.Result, 8), errs: make(chan error, 1)}
}

func (f *fakeSource) Start(context.Context) error { return nil }
func (f *fakeSource) SendAudio([]byte) error      { return nil }
func (f *fakeSource) Results() <-chan stt.Result  { return f.results }
func (f *fakeSource) Errors() <-chan error        { return f.errs }
func (f *fakeSource) Close() error                { return nil }

func quietLLM() provider.RequestResponse[llm.CompletionRequest, llm.CompletionResponse] {
	return provider.Func("quiet", func(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{Content: `{"escalate":false,"reason":"r","severity":"none"}`}, nil
	})
}

// newTestAPI wires the full handler stack on an in-memory store.
func newTestAPI(t *testing.T) (*gin.Engine, *store.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := store.NewMemory()
	log := logger.NewDefault("test")
	quiet := quietLLM()

	engine := analysis.NewEngine(analysis.Config{}, analysis.Deps{
		Store:    m,
		Tracker:  analysis.NewInsightLogTracker(m, 1),
		Filter:   analysis.NewFilter(quiet, time.Second, log),
		Analyzer: analysis.NewAnalyzer(quiet, time.Second, log),
		Roles:    analysis.NewRoleResolver(quiet, m, 5, time.Second, log),
		Synth:    analysis.NewSynthesizer(quiet, m, time.Second, log),
		Log:      log,
	})
	t.Cleanup(engine.Close)

	factory := func(context.Context) (stt.Source, error) { return newFakeSource(), nil }
	sessions := session.NewManager(aggregator.Config{FlushInterval: time.Hour}, factory, engine, m, nil, log, nil)
	t.Cleanup(func() { sessions.Close(context.Background()) })

	hub := sse.NewHub(log)
	t.Cleanup(hub.Close)

	router := gin.New()
	NewAPI(m, sessions, hub, nil, log).RegisterRoutes(router)
	return router, m
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateInterview(t *testing.T) {
	router, m := newTestAPI(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/interviews", map[string]string{
		"title":          "backend screen",
		"candidate_name": "Jordan",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp struct {
		Data store.Interview `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Status != store.StatusCreated {
		t.Errorf("status = %q, want %q", resp.Data.Status, store.StatusCreated)
	}
	if _, err := m.GetInterview(context.Background(), resp.Data.ID); err != nil {
		t.Errorf("interview not persisted: %v", err)
	}
}

func TestCreateInterviewRejectsMissingFields(t *testing.T) {
	router, _ := newTestAPI(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/interviews", map[string]string{"title": "x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("candidate_name")) {
		t.Errorf("body %q does not name the missing field", w.Body.String())
	}
}

func TestGetInterviewNotFound(t *testing.T) {
	router, _ := newTestAPI(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/interviews/"+uuid.NewString(), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestInterviewIDMustBeUUID(t *testing.T) {
	router, _ := newTestAPI(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/interviews/not-a-uuid", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCaptureLifecycle(t *testing.T) {
	router, m := newTestAPI(t)

	iv := &store.Interview{Title: "t", CandidateName: "c", Status: store.StatusCreated}
	if err := m.CreateInterview(context.Background(), iv); err != nil {
		t.Fatal(err)
	}
	base := "/api/v1/interviews/" + iv.ID.String()

	if w := doJSON(t, router, http.MethodPost, base+"/capture/start", nil); w.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, want %d: %s", w.Code, http.StatusAccepted, w.Body.String())
	}

	// A second start on the same interview conflicts.
	if w := doJSON(t, router, http.MethodPost, base+"/capture/start", nil); w.Code != http.StatusConflict {
		t.Errorf("second start status = %d, want %d", w.Code, http.StatusConflict)
	}

	req := httptest.NewRequest(http.MethodPost, base+"/capture/audio", bytes.NewReader([]byte{1, 2, 3}))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("audio status = %d, want %d: %s", w.Code, http.StatusNoContent, w.Body.String())
	}

	if w := doJSON(t, router, http.MethodPost, base+"/capture/stop", nil); w.Code != http.StatusOK {
		t.Fatalf("stop status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	// Audio after stop is rejected.
	req = httptest.NewRequest(http.MethodPost, base+"/capture/audio", bytes.NewReader([]byte{1}))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("audio after stop status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestIngestAudioRejectsEmptyBody(t *testing.T) {
	router, m := newTestAPI(t)

	iv := &store.Interview{Title: "t", CandidateName: "c", Status: store.StatusCreated}
	if err := m.CreateInterview(context.Background(), iv); err != nil {
		t.Fatal(err)
	}
	path := fmt.Sprintf("/api/v1/interviews/%s/capture/audio", iv.ID)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(nil))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestListInsightsReturnsStoredRows(t *testing.T) {
	router, m := newTestAPI(t)

	iv := &store.Interview{Title: "t", CandidateName: "c", Status: store.StatusCapturing}
	if err := m.CreateInterview(context.Background(), iv); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		in := &store.Insight{
			InterviewID: iv.ID,
			Type:        store.InsightNote,
			Severity:    store.SeverityInfo,
			Content:     fmt.Sprintf("note %d", i),
			Timestamp:   time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := m.AppendInsight(context.Background(), in); err != nil {
			t.Fatal(err)
		}
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/interviews/"+iv.ID.String()+"/insights", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data []store.Insight `json:"data"`
		Meta *Meta           `json:"meta"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("len(data) = %d, want 2", len(resp.Data))
	}
	if resp.Meta == nil || resp.Meta.Total != 2 {
		t.Errorf("meta total = %+v, want 2", resp.Meta)
	}
}

func TestMarkInsightUsed(t *testing.T) {
	router, m := newTestAPI(t)

	iv := &store.Interview{Title: "t", CandidateName: "c", Status: store.StatusCapturing}
	if err := m.CreateInterview(context.Background(), iv); err != nil {
		t.Fatal(err)
	}
	in := &store.Insight{
		InterviewID: iv.ID,
		Type:        store.InsightSuggestion,
		Severity:    store.SeverityInfo,
		Content:     "ask about caching",
		Timestamp:   time.Now(),
	}
	if err := m.AppendInsight(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, router, http.MethodPost, "/api/v1/insights/"+in.ID.String()+"/used", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	insights, err := m.ListInsights(context.Background(), iv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(insights) != 1 || !insights[0].Used {
		t.Errorf("insight not marked used: %+v", insights)
	}
}

func TestGetScorecardNotFoundBeforeCompletion(t *testing.T) {
	router, m := newTestAPI(t)

	iv := &store.Interview{Title: "t", CandidateName: "c", Status: store.StatusCapturing}
	if err := m.CreateInterview(context.Background(), iv); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/interviews/"+iv.ID.String()+"/scorecard", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHealthAndInfo(t *testing.T) {
	router, _ := newTestAPI(t)

	if w := doJSON(t, router, http.MethodGet, "/healthz", nil); w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/readyz", nil); w.Code != http.StatusOK {
		t.Errorf("ready status = %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/info", nil); w.Code != http.StatusOK {
		t.Errorf("info status = %d", w.Code)
	}
}

func TestReadinessReportsFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := store.NewMemory()
	log := logger.NewDefault("test")
	hub := sse.NewHub(log)
	t.Cleanup(hub.Close)

	router := gin.New()
	failing := func(context.Context) error { return fmt.Errorf("db unreachable") }
	NewAPI(m, nil, hub, failing, log).RegisterRoutes(router)

	w := doJSON(t, router, http.MethodGet, "/readyz", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}
