package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/research-agent/internal/db"
	"github.com/jonathan/research-agent/internal/logging"
	"github.com/jonathan/research-agent/internal/stream"
)

const maxBodyBytes = 1 << 20

// ResearchRequest is the body of POST /api/research.
type ResearchRequest struct {
	Topic string `json:"topic" validate:"required,max=500"`
}

// DeleteReportsRequest is the body of DELETE /api/reports.
type DeleteReportsRequest struct {
	IDs []int64 `json:"ids" validate:"required,max=1000,dive,gt=0"`
}

// decodeBody reads a JSON body and validates it. Every failure is returned
// as an *ErrValidation except an oversized body.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return &ErrValidation{Field: "body", Message: "is required"}
		}
		return &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	if err := s.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// handleResearch runs the pipeline for a topic and streams frames via SSE.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req ResearchRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		s.errorResponse(w, http.StatusBadRequest, (&ErrValidation{Field: "topic", Message: "is required"}).Error())
		return
	}

	runID := uuid.NewString()
	logger := logging.ForRun(s.logger, runID, topic)
	w.Header().Set("X-Run-ID", runID)

	sse, err := NewSSEWriter(w, logger)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer sse.Close()

	// The request context is cancelled when the client disconnects, which
	// aborts in-flight provider calls.
	ctx, cancel := context.WithTimeout(r.Context(), s.runTimeout)
	defer cancel()
	ctx = logging.WithContext(ctx, logger)

	start := time.Now()
	logger.Info("research run started", zap.String("mode", string(s.engine.Mode())))

	translator := stream.NewTranslator(s.store, logger)
	err = translator.Translate(ctx, topic, s.engine.Run(ctx, topic), sse)
	if !sse.Closed() {
		logger.Warn("client did not receive a terminal frame")
	}
	if err != nil {
		logger.Error("research run failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	logger.Info("research run completed", zap.Duration("duration", time.Since(start)))
}

// handleMethodNotAllowed answers non-POST research requests with an empty 405.
func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	w.WriteHeader(http.StatusMethodNotAllowed)
}

// handleListReports returns saved reports, most recent first. A store
// failure yields an empty list with a 500 status.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.ListReports(r.Context())
	if err != nil {
		s.logger.Error("failed to list reports", zap.Error(err))
		s.jsonResponse(w, http.StatusInternalServerError, []db.Report{})
		return
	}
	if reports == nil {
		reports = []db.Report{}
	}
	s.jsonResponse(w, http.StatusOK, reports)
}

// handleDeleteReports deletes a set of reports. Ids that fail individually
// are logged and the request still reports success, unless nothing could
// be deleted at all.
func (s *Server) handleDeleteReports(w http.ResponseWriter, r *http.Request) {
	var req DeleteReportsRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	deleted, err := s.store.DeleteReports(r.Context(), req.IDs)
	if err != nil {
		s.logger.Warn("some reports could not be deleted",
			zap.Int64s("ids", req.IDs), zap.Int64("deleted", deleted), zap.Error(err))
		if deleted == 0 {
			s.errorResponse(w, http.StatusInternalServerError, fmt.Sprintf("failed to delete reports: %v", err))
			return
		}
	}

	s.logger.Info("reports deleted", zap.Int("requested", len(req.IDs)), zap.Int64("deleted", deleted))
	s.jsonResponse(w, http.StatusOK, map[string]bool{"success": true})
}
