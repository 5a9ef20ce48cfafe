package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/leafscan/internal/conversation"
	"github.com/tphakala/leafscan/internal/detection"
	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/report"
)

const messageSessionNotFound = "Session not found or expired"

// MessageRequest is the body of POST /sessions/:id/messages.
type MessageRequest struct {
	Question string `json:"question"`
}

// MessageResponse carries the assistant reply and the whole transcript.
type MessageResponse struct {
	Reply        string              `json:"reply"`
	Turns        []conversation.Turn `json:"turns"`
	HistorySaved bool                `json:"history_saved"`
}

// session resolves :id or writes a 404.
func (s *Server) session(c echo.Context) (*conversation.Session, error) {
	sess, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		return nil, s.handleError(c, nil, messageSessionNotFound, http.StatusNotFound)
	}
	return sess, nil
}

func (s *Server) translate(c echo.Context) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	msg, ok := s.pipeline.Translate(sess)
	return c.JSON(http.StatusOK, map[string]any{
		"message":    msg,
		"translated": ok,
		"language":   sess.Language,
	})
}

func (s *Server) postMessage(c echo.Context) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return s.handleError(c, err, "Invalid request body", http.StatusBadRequest)
	}

	ans, err := s.pipeline.Ask(c.Request().Context(), sess, req.Question)
	switch {
	case errors.Is(err, detection.ErrEmptyQuestion):
		return s.handleError(c, err, "Question must not be empty", http.StatusBadRequest)
	case errors.Is(err, detection.ErrChatDisabled):
		return s.handleError(c, err, detection.MessageNoDetection, http.StatusConflict)
	case err != nil:
		return s.handleError(c, err, "Could not answer question", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, MessageResponse{
		Reply:        ans.Reply,
		Turns:        ans.Turns,
		HistorySaved: ans.HistoryErr == nil,
	})
}

func (s *Server) listMessages(c echo.Context) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.Turns())
}

// getReport returns the plain-text report as a download.
func (s *Server) getReport(c echo.Context) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	r, err := s.pipeline.Report(sess)
	if err != nil {
		return s.handleError(c, err, detection.MessageNoDetection, http.StatusConflict)
	}
	name := fmt.Sprintf("leaf_report_%s.txt", r.Generated.Format("20060102_150405"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.String(http.StatusOK, report.Render(r))
}

func (s *Server) getAnalysis(c echo.Context) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	q, err := s.pipeline.Analyze(sess)
	switch {
	case errors.Is(err, detection.ErrNoImage):
		return s.handleError(c, err, detection.MessageNoImage, http.StatusConflict)
	case err != nil:
		return s.handleError(c, err, "Could not analyze image", http.StatusUnprocessableEntity)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"brightness":        q.Brightness,
		"contrast":          q.Contrast,
		"width":             q.Width,
		"height":            q.Height,
		"rating":            q.Rating(),
		"good_lighting":     q.GoodLighting(),
		"adequate_contrast": q.AdequateContrast(),
		"recommendations":   q.Recommendations(),
		"text":              q.String(),
	})
}

func (s *Server) deleteSession(c echo.Context) error {
	if _, ok := s.sessions.Get(c.Param("id")); !ok {
		return s.handleError(c, nil, messageSessionNotFound, http.StatusNotFound)
	}
	s.sessions.Delete(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
