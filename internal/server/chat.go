package server

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/devy-ai/devy/internal/advisor"
	"github.com/devy-ai/devy/internal/store"
)

// ChatInput is the request body for a chat turn.
type ChatInput struct {
	UserMessage string `json:"user_message"`
	SessionID   string `json:"session_id,omitempty"`
}

// ChatOutput mirrors the public wire shape of a chat turn.
type ChatOutput struct {
	DevyResponse          string                          `json:"devy_response"`
	SessionID             string                          `json:"session_id"`
	IsAssessmentComplete  bool                            `json:"is_assessment_complete"`
	RecommendationPayload *advisor.RecommendationDocument `json:"recommendation_payload,omitempty"`
	ExtractionError       string                          `json:"extraction_error,omitempty"`
}

// ChatHandler exposes the conversation over HTTP.
type ChatHandler struct {
	Advisor *advisor.Advisor
	Logger  *log.Logger
}

func (h *ChatHandler) Register(api *echo.Group) {
	api.POST("/chat", h.chat)
	api.POST("/sessions", h.newSession)
	api.POST("/sessions/:id/reset", h.reset)
	api.GET("/sessions/:id/messages", h.messages)
	api.GET("/sessions/:id/assessment", h.assessment)
}

func (h *ChatHandler) chat(c echo.Context) error {
	started := time.Now()
	var req ChatInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	sess, err := h.Advisor.GetOrCreate(ctx, req.SessionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	res, err := h.Advisor.Submit(ctx, sess.ID, req.UserMessage)
	chatDuration.Observe(time.Since(started).Seconds())

	switch {
	case err == nil:
	case errors.Is(err, advisor.ErrEmptyMessage), errors.Is(err, advisor.ErrMessageTooLong):
		turnsTotal.WithLabelValues("rejected").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, advisor.ErrSessionFinalized):
		turnsTotal.WithLabelValues("rejected").Inc()
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, advisor.ErrUpstream):
		turnsTotal.WithLabelValues("upstream_error").Inc()
		return echo.NewHTTPError(http.StatusServiceUnavailable,
			"I'm having trouble connecting to my AI brain right now. Please try again in a moment.")
	case advisor.IsExtractionError(err):
		// The conversation goes on; the client gets the apology plus the
		// reason extraction failed.
		turnsTotal.WithLabelValues("extraction_failed").Inc()
		h.Logger.Printf("session %s: %v", sess.ID, err)
		return c.JSON(http.StatusOK, ChatOutput{
			DevyResponse:    res.Reply,
			SessionID:       sess.ID,
			ExtractionError: err.Error(),
		})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	out := ChatOutput{
		DevyResponse:          res.Reply,
		SessionID:             sess.ID,
		IsAssessmentComplete:  res.Finalized,
		RecommendationPayload: res.Document,
	}
	if res.Finalized {
		turnsTotal.WithLabelValues("finalized").Inc()
		assessmentsTotal.Inc()
	} else {
		turnsTotal.WithLabelValues("reply").Inc()
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ChatHandler) newSession(c echo.Context) error {
	sess, err := h.Advisor.GetOrCreate(c.Request().Context(), "")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"session_id": sess.ID})
}

func (h *ChatHandler) reset(c echo.Context) error {
	sess, err := h.Advisor.Reset(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"session_id": sess.ID})
}

func (h *ChatHandler) messages(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.Advisor.Get(c.Request().Context(), id); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	turns, err := h.Advisor.History(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": id,
		"messages":   turns,
	})
}

func (h *ChatHandler) assessment(c echo.Context) error {
	doc, err := h.Advisor.Document(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) || errors.Is(err, store.ErrDocumentNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, doc)
}
