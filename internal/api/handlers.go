package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"zipdive/internal/archive"
	"zipdive/internal/session"
)

type startRequest struct {
	Input       string `json:"input" binding:"required"`
	Output      string `json:"output" binding:"required"`
	Password    string `json:"password"`
	AutoAdvance *bool  `json:"auto_advance"`
}

type autoAdvanceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type advanceResponse struct {
	Layer   int              `json:"layer"`
	Session session.Snapshot `json:"session"`
}

type API struct {
	sessions *session.Manager
}

func NewAPI(sessions *session.Manager) *API {
	return &API{sessions: sessions}
}

// RegisterRoutes registers API routes on the provided gin engine
func (a *API) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/sessions", a.StartSession)
		api.GET("/sessions", a.ListSessions)
		api.GET("/sessions/:id", a.GetSession)
		api.POST("/sessions/:id/advance", a.Advance)
		api.PUT("/sessions/:id/auto-advance", a.SetAutoAdvance)
		api.GET("/sessions/:id/events", a.Events)
		api.GET("/history", a.History)
	}
}

// StartSession validates the roots and begins layer 1
func (a *API) StartSession(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("invalid start request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	sess, err := a.sessions.Create(session.StartRequest{
		Input:       req.Input,
		Output:      req.Output,
		Password:    req.Password,
		AutoAdvance: req.AutoAdvance,
	})
	if err != nil {
		log.Warn().Str("input", req.Input).Str("output", req.Output).Err(err).Msg("failed to start session")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	snap := sess.Snapshot()
	log.Info().Str("session_id", snap.ID).Bool("auto_advance", snap.AutoAdvance).Msg("session created")
	c.JSON(http.StatusCreated, snap)
}

// ListSessions returns every live session
func (a *API) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, a.sessions.List())
}

// GetSession returns one session with its layers and tasks
func (a *API) GetSession(c *gin.Context) {
	sess, ok := a.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// Advance creates the next layer in manual mode
func (a *API) Advance(c *gin.Context) {
	sess, ok := a.lookup(c)
	if !ok {
		return
	}
	depth, err := sess.Advance()
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "session": sess.Snapshot()})
		return
	}
	log.Info().Str("session_id", sess.ID()).Int("layer", depth).Msg("layer advanced")
	c.JSON(http.StatusOK, advanceResponse{Layer: depth, Session: sess.Snapshot()})
}

// SetAutoAdvance toggles automatic layer creation
func (a *API) SetAutoAdvance(c *gin.Context) {
	sess, ok := a.lookup(c)
	if !ok {
		return
	}
	var req autoAdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Str("session_id", sess.ID()).Err(err).Msg("invalid auto-advance request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	sess.SetAutoAdvance(*req.Enabled)
	c.JSON(http.StatusOK, sess.Snapshot())
}

// History returns snapshots persisted by this and earlier processes
func (a *API) History(c *gin.Context) {
	snaps, err := a.sessions.History(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to load history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if snaps == nil {
		snaps = []session.Snapshot{}
	}
	c.JSON(http.StatusOK, snaps)
}

func (a *API) lookup(c *gin.Context) (*session.Session, bool) {
	id := c.Param("id")
	sess, err := a.sessions.Lookup(id)
	if err != nil {
		log.Warn().Str("session_id", id).Msg("session not found")
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return sess, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, archive.ErrDirectoryNotFound):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrLayerNotFinished),
		errors.Is(err, session.ErrNoFurtherNesting),
		errors.Is(err, session.ErrLayerFailed),
		errors.Is(err, session.ErrAutoAdvance),
		errors.Is(err, session.ErrNotStarted),
		errors.Is(err, session.ErrAlreadyStarted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
