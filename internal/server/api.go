package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"interview-engine/internal/interview"
	"interview-engine/internal/metrics"
)

const maxUpload = 8 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type createSessionRequest struct {
	CandidateID string `json:"candidate_id" binding:"required"`
}

type answerRequest struct {
	Text string `json:"text"`
}

// SessionApi serves the interview session operations over HTTP.
type SessionApi struct {
	manager *Manager
	limiter *RateLimiter
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
}

func NewSessionApi(manager *Manager, limiter *RateLimiter, m *metrics.Metrics, log *zap.SugaredLogger) *SessionApi {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &SessionApi{manager: manager, limiter: limiter, metrics: m, log: log}
}

// Create prepares a session for a candidate.
func (a *SessionApi) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if a.limiter != nil && !a.limiter.IsAllowed("candidate:"+req.CandidateID) {
		tooManyRequests(c)
		return
	}

	e, err := a.manager.Create(c.Request.Context(), req.CandidateID)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, e.Controller.Snapshot())
}

func (a *SessionApi) Get(c *gin.Context) {
	e, ok := a.entry(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, e.Controller.Snapshot())
}

func (a *SessionApi) Start(c *gin.Context) {
	e, ok := a.entry(c)
	if !ok {
		return
	}
	if err := e.Controller.Start(c.Request.Context()); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e.Controller.Snapshot())
}

// Answer submits a typed or browser-transcribed answer.
func (a *SessionApi) Answer(c *gin.Context) {
	e, ok := a.entry(c)
	if !ok {
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := e.Controller.SubmitAnswer(c.Request.Context(), req.Text); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e.Controller.Snapshot())
}

func (a *SessionApi) Listen(c *gin.Context) {
	e, ok := a.entry(c)
	if !ok {
		return
	}
	if err := e.Controller.Listen(c.Request.Context()); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e.Controller.Snapshot())
}

func (a *SessionApi) StopListening(c *gin.Context) {
	e, ok := a.entry(c)
	if !ok {
		return
	}
	e.Controller.StopListening()
	c.JSON(http.StatusOK, e.Controller.Snapshot())
}

func (a *SessionApi) Complete(c *gin.Context) {
	e, ok := a.entry(c)
	if !ok {
		return
	}
	if err := e.Controller.Complete(c.Request.Context()); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary":  e.Controller.Summary(),
		"exported": e.Controller.Snapshot().Exported,
	})
}

// Export retries handing a completed session to the backend.
func (a *SessionApi) Export(c *gin.Context) {
	e, ok := a.entry(c)
	if !ok {
		return
	}
	if err := e.Controller.Export(c.Request.Context()); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exported": true})
}

func (a *SessionApi) ExportRecord(c *gin.Context) {
	e, ok := a.entry(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, e.Controller.ExportRecord())
}

func (a *SessionApi) Summary(c *gin.Context) {
	e, ok := a.entry(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, e.Controller.Summary())
}

// Delete aborts an unfinished session and forgets it.
func (a *SessionApi) Delete(c *gin.Context) {
	if err := a.manager.Remove(c.Request.Context(), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Screenshot receives a screenshot the browser captured on request.
func (a *SessionApi) Screenshot(c *gin.Context) {
	e, ok := a.entry(c)
	if !ok {
		return
	}
	payload, ok := readUpload(c)
	if !ok {
		return
	}
	e.Remote.DeliverScreenshot(payload)
	c.Status(http.StatusAccepted)
}

// Audio receives an audio segment the browser recorded on request.
func (a *SessionApi) Audio(c *gin.Context) {
	e, ok := a.entry(c)
	if !ok {
		return
	}
	payload, ok := readUpload(c)
	if !ok {
		return
	}
	e.Remote.DeliverAudio(payload)
	c.Status(http.StatusAccepted)
}

// Connect upgrades to the session websocket: events go out, transcripts
// and playback notifications come in.
func (a *SessionApi) Connect(c *gin.Context) {
	e, ok := a.entry(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	if err := e.Remote.Hub().Serve(c.Request.Context(), conn); err != nil {
		a.log.Debugf("WebSocket for session %s closed: %v", c.Param("id"), err)
	}
}

func (a *SessionApi) Metrics(c *gin.Context) {
	snap := a.metrics.GetSnapshot()
	c.JSON(http.StatusOK, gin.H{
		"metrics":         snap,
		"success_rate":    snap.SuccessRate(),
		"active_sessions": a.manager.Len(),
	})
}

func (a *SessionApi) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (a *SessionApi) entry(c *gin.Context) (*Entry, bool) {
	e, err := a.manager.Get(c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return nil, false
	}
	return e, true
}

// fail maps an error to its status code.
func (a *SessionApi) fail(c *gin.Context, err error) {
	var (
		setupErr *interview.SetupError
		evalErr  *interview.EvaluationError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, interview.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, interview.ErrEmptyAnswer), errors.Is(err, interview.ErrInvalidAnswer):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, interview.ErrInvalidTransition),
		errors.Is(err, interview.ErrNotFinalQuestion),
		errors.Is(err, interview.ErrSubmissionInFlight),
		errors.Is(err, interview.ErrTransitionInFlight):
		status = http.StatusConflict
	case errors.As(err, &setupErr), errors.As(err, &evalErr):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		a.log.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func readUpload(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUpload)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return nil, false
	}
	if len(payload) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty upload"})
		return nil, false
	}
	return payload, true
}

func tooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "⏳ Too many requests. Please wait a minute."})
}
