package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"newsreel/internal/logging"
	"newsreel/internal/queue"
	"newsreel/internal/services"
	"newsreel/internal/workflow"
)

const maxRequestBody = 64 << 10

// StatusFunc reports the running workflow state.
type StatusFunc func(ctx context.Context) workflow.StatusSummary

// Server routes the HTTP API onto a JobService.
type Server struct {
	svc    *JobService
	status StatusFunc
	token  string
	logger *slog.Logger
	router *mux.Router
}

// NewServer builds the API router. An empty token disables authentication.
// status may be nil when no workflow manager runs in-process.
func NewServer(svc *JobService, status StatusFunc, token string, logger *slog.Logger) *Server {
	s := &Server{
		svc:    svc,
		status: status,
		token:  strings.TrimSpace(token),
		logger: logging.NewComponentLogger(logger, "api-server"),
		router: mux.NewRouter(),
	}
	s.router.Use(s.requestContext)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/jobs/manual", s.handleManualJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id:[0-9]+}", s.handleGetJob).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id:[0-9]+}/resubmit", s.handleResubmit).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	// Subrouters resolve misses on their own, so both routers need the JSON
	// error handlers.
	notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	for _, router := range []*mux.Router{s.router, api} {
		router.NotFoundHandler = notFound
		router.MethodNotAllowedHandler = methodNotAllowed
	}
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// requestContext tags each request with an ID and logs it on completion.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := services.WithTrace(r.Context(), services.Trace{RequestID: requestID})

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		s.logger.Debug("api request",
			logging.String(logging.FieldCorrelationID, requestID),
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

// authMiddleware validates bearer tokens. If no token is configured all
// requests pass through.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		presented, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(s.token)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleManualJob(w http.ResponseWriter, r *http.Request) {
	var req ManualJobRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	job, err := s.svc.Submit(r.Context(), req)
	if err != nil {
		switch {
		case IsDuplicate(err):
			s.writeError(w, http.StatusConflict, "Job with this URL already exists")
		case errors.Is(err, queue.ErrInvalidJob):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.fail(r, w, "manual submission failed", err)
		}
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("manual job queued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("title", job.Title),
		logging.String("source", job.Source),
		logging.String(logging.FieldEventType, "job_submitted"),
	)
	s.writeJSON(w, http.StatusCreated, ManualJobResponse{Message: "Job queued successfully", JobID: job.ID})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := queue.ParseStatus(part)
			if !ok {
				s.writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(part))
				return
			}
			statuses = append(statuses, status)
		}
	}
	jobs, err := s.svc.List(r.Context(), statuses...)
	if err != nil {
		s.fail(r, w, "list jobs failed", err)
		return
	}
	s.writeJSON(w, http.StatusOK, JobListResponse{Jobs: jobs})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	job, err := s.svc.Describe(r.Context(), id)
	if err != nil {
		s.writeJobError(w, r, "describe job failed", err)
		return
	}
	s.writeJSON(w, http.StatusOK, JobResponse{Job: job})
}

func (s *Server) handleResubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	fromFailed, _ := strconv.ParseBool(r.URL.Query().Get("from_failed_stage"))
	job, err := s.svc.Resubmit(r.Context(), id, fromFailed)
	if err != nil {
		s.writeJobError(w, r, "resubmit failed", err)
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("job resubmitted",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("status", job.Status),
		logging.String(logging.FieldEventType, "job_resubmitted"),
	)
	s.writeJSON(w, http.StatusOK, JobResponse{Job: job})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status != nil {
		s.writeJSON(w, http.StatusOK, FromStatusSummary(s.status(r.Context())))
		return
	}
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.fail(r, w, "queue stats failed", err)
		return
	}
	s.writeJSON(w, http.StatusOK, WorkflowStatus{QueueStats: stats})
}

func (s *Server) jobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return 0, false
	}
	return id, true
}

func (s *Server) writeJobError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, queue.ErrInvalidTransition):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.fail(r, w, msg, err)
	}
}

func (s *Server) fail(r *http.Request, w http.ResponseWriter, msg string, err error) {
	logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), msg, "api_error",
		logging.Error(err),
		logging.String("path", r.URL.Path),
	)
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
