package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/leafscan/internal/classifier"
	"github.com/tphakala/leafscan/internal/conversation"
	"github.com/tphakala/leafscan/internal/detection"
	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/imageload"
	"github.com/tphakala/leafscan/internal/logger"
)

// DetectionResponse is returned by POST /api/v1/detections.
type DetectionResponse struct {
	SessionID     string              `json:"session_id"`
	Message       string              `json:"message"`
	Label         string              `json:"label"`
	Kind          string              `json:"kind"`
	Confidence    float32             `json:"confidence"`
	Remedy        string              `json:"remedy,omitempty"`
	Advice        string              `json:"advice"`
	CanTranslate  bool                `json:"can_translate"`
	CanChat       bool                `json:"can_chat"`
	CanAnalyze    bool                `json:"can_analyze"`
	CanExport     bool                `json:"can_export"`
	RecordID      uint                `json:"record_id,omitempty"`
	HistorySaved  bool                `json:"history_saved"`
	Probabilities []float32           `json:"probabilities"`
	Turns         []conversation.Turn `json:"turns"`
	DurationMS    int64               `json:"duration_ms"`
}

// createDetection stores the uploaded image and runs the pipeline on it.
// Form fields: image (file), user, language, and session_id to continue an
// existing session.
func (s *Server) createDetection(c echo.Context) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return s.handleError(c, err, detection.MessageNoImage, http.StatusBadRequest)
	}

	path, err := s.saveUpload(fh)
	if err != nil {
		return s.handleError(c, err, "Could not store uploaded image", http.StatusInternalServerError)
	}

	sess := s.sessionFor(c.FormValue("session_id"), c.FormValue("user"), c.FormValue("language"))
	res := s.pipeline.Detect(c.Request().Context(), sess, path)
	if !res.OK() {
		return s.handleError(c, res.Err, res.Message, detectionStatus(res.Err))
	}

	out := res.Outcome
	return c.JSON(http.StatusOK, DetectionResponse{
		SessionID:     sess.ID,
		Message:       res.Message,
		Label:         out.Prediction.Label,
		Kind:          out.Kind.String(),
		Confidence:    out.Prediction.Confidence,
		Remedy:        out.Remedy,
		Advice:        out.Advice,
		CanTranslate:  out.CanTranslate,
		CanChat:       out.CanChat,
		CanAnalyze:    out.CanAnalyze,
		CanExport:     out.CanExport,
		RecordID:      res.RecordID,
		HistorySaved:  res.RecordID != 0 && res.HistoryErr == nil,
		Probabilities: res.Probabilities,
		Turns:         sess.Turns(),
		DurationMS:    res.Duration.Milliseconds(),
	})
}

// sessionFor returns the session with id when it is still alive, else a
// new one for user and language.
func (s *Server) sessionFor(id, user, language string) *conversation.Session {
	if id != "" {
		if sess, ok := s.sessions.Get(id); ok {
			return sess
		}
	}
	return s.sessions.Create(strings.TrimSpace(user), strings.TrimSpace(language))
}

// saveUpload copies the multipart file into the upload directory under a
// random name, keeping only the extension of the client file name.
func (s *Server) saveUpload(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", uploadError(err, fh.Filename)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			s.log.Debug("failed to close upload", logger.Error(cerr))
		}
	}()

	ext := strings.ToLower(filepath.Ext(filepath.Base(fh.Filename)))
	path := filepath.Join(s.config.UploadDir, uuid.NewString()+ext)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", uploadError(err, path)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", uploadError(err, path)
	}
	if err := dst.Close(); err != nil {
		return "", uploadError(err, path)
	}
	s.log.Debug("upload stored",
		logger.String("path", path),
		logger.Int64("size", fh.Size))
	return path, nil
}

func uploadError(err error, path string) error {
	return errors.New(fmt.Errorf("upload failed: %w", err)).
		Component("api").
		Category(errors.CategoryFileIO).
		Context("operation", "save_upload").
		Context("path", path).
		Build()
}

// detectionStatus maps a failed detection to an HTTP status.
func detectionStatus(err error) int {
	switch {
	case errors.Is(err, detection.ErrNoImage):
		return http.StatusBadRequest
	case errors.Is(err, imageload.ErrImageLoad):
		return http.StatusUnprocessableEntity
	case errors.Is(err, classifier.ErrNoModelLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) listLabels(c echo.Context) error {
	labels := s.pipeline.Labels()
	out := make([]map[string]any, 0, labels.Len())
	for i := range labels.Len() {
		name, _ := labels.Name(i)
		out = append(out, map[string]any{
			"index":   i,
			"label":   name,
			"display": classifier.Display(name),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) listLanguages(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"languages": s.pipeline.Languages(),
	})
}
