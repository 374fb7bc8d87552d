package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"example/cpl-trainer/app/models"

	"github.com/gin-gonic/gin"
	"github.com/notnil/chess"
	"github.com/rs/zerolog"
)

const (
	moveTimeout   = 60 * time.Second
	maxCalibGames = 500
)

// failCalibration is swapped out in tests.
var failCalibration = FailCalibration

// Handlers serves the session and calibration API.
type Handlers struct {
	Sessions *SessionStore
	Hub      *Hub
	Queue    Enqueuer // nil disables POST /calibrations
	Log      zerolog.Logger
}

type createSessionRequest struct {
	Tier       string `json:"tier"`
	HumanColor string `json:"human_color"` // "white" (default) or "black"
	Analysis   *bool  `json:"analysis"`    // defaults to true
	StartFEN   string `json:"start_fen"`
}

type moveRequest struct {
	Move string `json:"move" binding:"required"`
}

type settingsRequest struct {
	Tier     *string `json:"tier"`
	Analysis *bool   `json:"analysis"`
}

type calibrationRequest struct {
	Tier     string `json:"tier" binding:"required"`
	Games    int    `json:"games"`
	MaxPlies int    `json:"max_plies"`
	Seed     uint64 `json:"seed"`
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.Sessions.Len()})
}

func (h *Handlers) ListTiers(c *gin.Context) {
	tiers := h.Sessions.Tiers()
	c.JSON(http.StatusOK, gin.H{
		"default": tiers.Default().Name,
		"tiers":   tiers.All(),
	})
}

func (h *Handlers) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	color, ok := parseColor(req.HumanColor)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "human_color must be white or black"})
		return
	}
	opts := SessionOptions{
		Tier:       req.Tier,
		HumanColor: color,
		Analysis:   req.Analysis == nil || *req.Analysis,
		StartFEN:   req.StartFEN,
	}
	if opts.StartFEN != "" {
		if _, err := chess.FEN(opts.StartFEN); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_fen"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), moveTimeout)
	defer cancel()
	s, err := h.Sessions.Create(ctx, opts)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.State())
}

func (h *Handlers) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.State())
}

func (h *Handlers) PlayMove(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing move"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), moveTimeout)
	defer cancel()
	res, err := s.PlayHuman(ctx, strings.TrimSpace(req.Move))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// EngineMove resumes a reply that was interrupted.
func (h *Handlers) EngineMove(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), moveTimeout)
	defer cancel()
	reply, err := s.EngineMove(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"engine": reply, "state": s.State()})
}

func (h *Handlers) Undo(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	st, err := s.UndoPair()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handlers) Reset(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), moveTimeout)
	defer cancel()
	st, err := s.Reset(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handlers) UpdateSettings(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Tier != nil {
		if err := s.SetTier(*req.Tier); err != nil {
			h.writeError(c, err)
			return
		}
	}
	if req.Analysis != nil {
		s.SetAnalysis(*req.Analysis)
	}
	c.JSON(http.StatusOK, s.State())
}

func (h *Handlers) DeleteSession(c *gin.Context) {
	if err := h.Sessions.Delete(c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) CreateCalibration(c *gin.Context) {
	if h.Queue == nil {
		h.writeError(c, ErrNoQueue)
		return
	}
	var req calibrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Games <= 0 || req.Games > maxCalibGames {
		c.JSON(http.StatusBadRequest, gin.H{"error": "games must be between 1 and 500"})
		return
	}
	tier, err := h.Sessions.Tiers().Get(req.Tier)
	if err != nil {
		h.writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	job := models.CalibrationMessage{Tier: tier.Name, Games: req.Games, MaxPlies: req.MaxPlies, Seed: req.Seed}
	job.JobID, err = CreateCalibration(ctx, job, tier.TargetCPL)
	if err != nil {
		h.Log.Error().Err(err).Str("tier", tier.Name).Msg("failed to create calibration run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create calibration run"})
		return
	}
	if err := h.Queue.Enqueue(ctx, job); err != nil {
		h.Log.Error().Err(err).Str("job", job.JobID).Msg("enqueue failed")
		if ferr := failCalibration(ctx, job.JobID); ferr != nil {
			h.Log.Error().Err(ferr).Str("job", job.JobID).Msg("marking calibration failed")
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to enqueue calibration"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.JobID, "status": models.CalibrationQueued})
}

func (h *Handlers) GetCalibration(c *gin.Context) {
	cs, err := FindCalibration(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

func (h *Handlers) session(c *gin.Context) (*Session, bool) {
	s, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return s, true
}

func (h *Handlers) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrCalibrationNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrIllegalMove), errors.Is(err, ErrUnknownTier), errors.Is(err, ErrInvalidTier):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrGameOver), errors.Is(err, ErrNotEngineTurn), errors.Is(err, ErrSearchInFlight):
		return http.StatusConflict
	case errors.Is(err, ErrEngineUnavailable), errors.Is(err, ErrNoStorage), errors.Is(err, ErrNoQueue):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func parseColor(s string) (chess.Color, bool) {
	switch strings.ToLower(s) {
	case "", "w", "white":
		return chess.White, true
	case "b", "black":
		return chess.Black, true
	}
	return chess.NoColor, false
}
