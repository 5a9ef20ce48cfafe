package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/leafscan/internal/conversation"
	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/history"
	"github.com/tphakala/leafscan/internal/logger"
)

// HistoryEntry is a history record with its decoded transcript.
type HistoryEntry struct {
	history.Record
	Turns []conversation.Turn `json:"turns"`
}

// listHistory returns the newest records of ?user=, at most ?limit=.
func (s *Server) listHistory(c echo.Context) error {
	user := strings.TrimSpace(c.QueryParam("user"))
	if user == "" {
		return s.handleError(c, nil, "Query parameter user is required", http.StatusBadRequest)
	}
	limit := DefaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return s.handleError(c, err, "Query parameter limit must be a positive integer", http.StatusBadRequest)
		}
		limit = n
	}

	records, err := s.history.List(c.Request().Context(), user, limit)
	if err != nil {
		return s.handleError(c, err, "Could not load history", http.StatusInternalServerError)
	}
	entries := make([]HistoryEntry, 0, len(records))
	for i := range records {
		turns, err := records[i].Turns()
		if err != nil {
			s.log.Warn("stored transcript is not valid JSON",
				logger.Uint64("id", uint64(records[i].ID)),
				logger.Error(err))
			turns = []conversation.Turn{}
		}
		entries = append(entries, HistoryEntry{Record: records[i], Turns: turns})
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *Server) deleteHistory(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		return s.handleError(c, err, "Invalid history id", http.StatusBadRequest)
	}
	if err := s.history.Delete(c.Request().Context(), uint(id)); err != nil {
		if errors.IsNotFound(err) {
			return s.handleError(c, err, "History record not found", http.StatusNotFound)
		}
		return s.handleError(c, err, "Could not delete history record", http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}
