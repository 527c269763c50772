package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/Montinou/interview-companion-sub000/errors"
	"github.com/Montinou/interview-companion-sub000/logger"
	"github.com/Montinou/interview-companion-sub000/session"
	"github.com/Montinou/interview-companion-sub000/sse"
	"github.com/Montinou/interview-companion-sub000/store"
	"github.com/Montinou/interview-companion-sub000/validation"
	"github.com/Montinou/interview-companion-sub000/version"
)

// ReadyFunc reports whether downstream dependencies are reachable.
type ReadyFunc func(ctx context.Context) error

// API exposes the interview pipeline over HTTP.
type API struct {
	store    store.Store
	sessions *session.Manager
	hub      *sse.Hub
	ready    ReadyFunc
	log      *logger.Logger
}

// NewAPI creates the API handler set. ready may be nil, in which case
// the readiness probe always succeeds.
func NewAPI(s store.Store, sessions *session.Manager, hub *sse.Hub, ready ReadyFunc, log *logger.Logger) *API {
	return &API{
		store:    s,
		sessions: sessions,
		hub:      hub,
		ready:    ready,
		log:      log.WithComponent("api"),
	}
}

// RegisterRoutes mounts all API routes on the engine.
func (a *API) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", a.health)
	engine.GET("/readyz", a.readiness)
	engine.GET("/info", a.info)

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/interviews", a.createInterview)
		v1.GET("/interviews/:id", a.getInterview)
		v1.POST("/interviews/:id/capture/start", a.startCapture)
		v1.POST("/interviews/:id/capture/audio", a.ingestAudio)
		v1.POST("/interviews/:id/capture/stop", a.stopCapture)
		v1.POST("/interviews/:id/complete", a.completeInterview)
		v1.GET("/interviews/:id/insights", a.listInsights)
		v1.GET("/interviews/:id/transcript", a.listTranscript)
		v1.GET("/interviews/:id/scorecard", a.getScorecard)
		v1.GET("/interviews/:id/events", a.streamEvents)
		v1.POST("/insights/:id/used", a.markInsightUsed)
	}
}

func (a *API) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) readiness(c *gin.Context) {
	if a.ready != nil {
		if err := a.ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (a *API) info(c *gin.Context) {
	RespondOK(c, version.GetVersionInfo())
}

type createInterviewRequest struct {
	Title         string `json:"title" validate:"required,max=255"`
	CandidateName string `json:"candidate_name" validate:"required,max=255"`
}

func (a *API) createInterview(c *gin.Context) {
	var req createInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}
	if err := validation.Validate(req); err != nil {
		RespondWithError(c, err)
		return
	}

	iv := &store.Interview{
		Title:         req.Title,
		CandidateName: req.CandidateName,
		Status:        store.StatusCreated,
	}
	if err := a.store.CreateInterview(c.Request.Context(), iv); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondCreated(c, iv)
}

func (a *API) getInterview(c *gin.Context) {
	id, ok := a.interviewID(c)
	if !ok {
		return
	}
	iv, err := a.store.GetInterview(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, iv)
}

func (a *API) startCapture(c *gin.Context) {
	id, ok := a.interviewID(c)
	if !ok {
		return
	}
	if err := a.sessions.Start(c.Request.Context(), id); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondAccepted(c, gin.H{"status": store.StatusCapturing})
}

func (a *API) ingestAudio(c *gin.Context) {
	id, ok := a.interviewID(c)
	if !ok {
		return
	}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		RespondWithError(c, apperrors.InvalidInput("body", "could not read audio payload"))
		return
	}
	if len(data) == 0 {
		RespondWithError(c, apperrors.InvalidInput("body", "empty audio payload"))
		return
	}
	if err := a.sessions.SendAudio(id, data); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

func (a *API) stopCapture(c *gin.Context) {
	id, ok := a.interviewID(c)
	if !ok {
		return
	}
	if err := a.sessions.Stop(c.Request.Context(), id); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "stopped"})
}

func (a *API) completeInterview(c *gin.Context) {
	id, ok := a.interviewID(c)
	if !ok {
		return
	}
	// Synthesis waits for queued batches to drain, so give it room.
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	sc, err := a.sessions.Complete(ctx, id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, sc)
}

func (a *API) listInsights(c *gin.Context) {
	id, ok := a.interviewID(c)
	if !ok {
		return
	}
	insights, err := a.store.ListInsights(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOKWithMeta(c, insights, &Meta{Total: len(insights)})
}

func (a *API) listTranscript(c *gin.Context) {
	id, ok := a.interviewID(c)
	if !ok {
		return
	}
	entries, err := a.store.ListTranscript(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOKWithMeta(c, entries, &Meta{Total: len(entries)})
}

func (a *API) getScorecard(c *gin.Context) {
	id, ok := a.interviewID(c)
	if !ok {
		return
	}
	sc, err := a.store.GetScorecard(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, sc)
}

func (a *API) streamEvents(c *gin.Context) {
	id, ok := a.interviewID(c)
	if !ok {
		return
	}
	if _, err := a.store.GetInterview(c.Request.Context(), id); err != nil {
		RespondWithError(c, err)
		return
	}
	sse.ServeSSE(a.hub, c.Writer, c.Request, id, a.log)
}

func (a *API) markInsightUsed(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondWithError(c, apperrors.InvalidInput("id", "must be a valid UUID"))
		return
	}
	if err := a.store.MarkInsightUsed(c.Request.Context(), id); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

// interviewID parses the :id path parameter, writing the error response
// itself when the value is not a UUID.
func (a *API) interviewID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondWithError(c, apperrors.InvalidInput("id", "must be a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}
