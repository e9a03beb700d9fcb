// Package server exposes the viva session pipeline over HTTP.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/keshav2232/viva/internal/logging"
	"github.com/keshav2232/viva/internal/metrics"
	"github.com/keshav2232/viva/internal/viva/domain"
	"github.com/keshav2232/viva/internal/viva/orchestrator"
	"github.com/keshav2232/viva/internal/viva/tts"
)

// MaxAudioBytes caps the size of one uploaded answer recording.
const MaxAudioBytes = 25 << 20

const maxJSONBytes = 1 << 20

// ErrUnavailable is returned by endpoints whose backing store is not configured.
var ErrUnavailable = errors.New("not configured")

var errBadRequest = errors.New("bad request")

// Synthesizer turns examiner text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Server provides the HTTP API for viva sessions.
type Server struct {
	orch     *orchestrator.Orchestrator
	users    domain.UserStore
	reports  domain.ReportArchive
	speech   Synthesizer
	metrics  *metrics.Metrics
	static   string
	addr     string
	mux      *http.ServeMux
	log      *logging.Logger
	recovery *logging.RecoveryHandler
}

// Option configures a Server.
type Option func(*Server)

// WithUsers enables the login and admin endpoints.
func WithUsers(u domain.UserStore) Option {
	return func(s *Server) { s.users = u }
}

// WithReports enables report lookup.
func WithReports(r domain.ReportArchive) Option {
	return func(s *Server) { s.reports = r }
}

// WithSpeech enables the TTS endpoint.
func WithSpeech(sy Synthesizer) Option {
	return func(s *Server) { s.speech = sy }
}

// WithStaticDir serves a single-page frontend from dir.
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.static = dir }
}

// WithMetrics replaces the process-wide metrics set.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.log = l }
}

func New(orch *orchestrator.Orchestrator, addr string, opts ...Option) *Server {
	s := &Server{
		orch:     orch,
		addr:     addr,
		mux:      http.NewServeMux(),
		metrics:  metrics.Global(),
		log:      logging.New("server"),
		recovery: logging.NewRecoveryHandler("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /metrics", s.metrics.Handler())

	s.mux.HandleFunc("POST /api/session/start", s.handleStart)
	s.mux.HandleFunc("POST /api/session/open", s.handleOpen)
	s.mux.HandleFunc("POST /api/session/answer", s.handleAnswer)
	s.mux.HandleFunc("POST /api/session/regenerate", s.handleRegenerate)
	s.mux.HandleFunc("POST /api/session/finish", s.handleFinish)
	s.mux.HandleFunc("GET /api/session/{id}", s.handleGetSession)

	s.mux.HandleFunc("POST /api/tts", s.handleTTS)
	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/admin/users", s.handleListUsers)
	s.mux.HandleFunc("GET /api/reports/{id}", s.handleGetReport)

	if s.static != "" {
		s.mux.Handle("GET /", spa(s.static))
	}
}

// Request and response bodies.

type startRequest struct {
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
	Persona    string `json:"persona"`
	Notes      string `json:"notes"`
}

type startResponse struct {
	SessionID     string `json:"sessionId"`
	FirstQuestion string `json:"firstQuestion"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type answerResponse struct {
	TranscribedAnswer string                `json:"transcribedAnswer"`
	ExaminerMessage   string                `json:"examinerMessage"`
	Analysis          domain.AnalysisResult `json:"analysis"`
	Tone              domain.Tone           `json:"tone"`
}

type finishResponse struct {
	Summary     domain.Summary     `json:"summary"`
	FillerStats domain.FillerStats `json:"fillerStats"`
}

type errorResponse struct {
	Error     string `json:"error"`
	SessionID string `json:"sessionId,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err, "")
		return
	}
	if req.Topic == "" || req.Difficulty == "" || req.Persona == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	res, err := s.orch.Start(r.Context(), domain.SessionConfig{
		Topic:      req.Topic,
		Difficulty: domain.Difficulty(strings.ToLower(req.Difficulty)),
		Persona:    domain.Persona(req.Persona),
		Notes:      req.Notes,
	})
	if res.SessionID != "" {
		s.metrics.RecordStart()
	}
	if err != nil {
		s.fail(w, r, err, res.SessionID)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{SessionID: res.SessionID, FirstQuestion: res.Question})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	id, err := s.sessionID(w, r)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	res, err := s.orch.Open(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, id)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{SessionID: res.SessionID, FirstQuestion: res.Question})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxAudioBytes+maxJSONBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		s.fail(w, r, fmt.Errorf("%w: %w", errBadRequest, err), "")
		return
	}
	defer r.MultipartForm.RemoveAll()

	id := r.FormValue("sessionId")
	file, _, err := r.FormFile("audio")
	if id == "" || err != nil {
		writeError(w, http.StatusBadRequest, "Missing session ID or audio file")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, MaxAudioBytes+1))
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: read audio: %v", errBadRequest, err), id)
		return
	}
	if len(audio) > MaxAudioBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "audio file too large")
		return
	}

	start := time.Now()
	res, err := s.orch.Answer(r.Context(), id, audio)
	if err != nil {
		s.fail(w, r, err, id)
		return
	}
	s.metrics.RecordAnswer(res.Analysis.TotalWords, res.Analysis.FillerCount, time.Since(start))
	writeJSON(w, http.StatusOK, toAnswerResponse(res))
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	id, err := s.sessionID(w, r)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	res, err := s.orch.Regenerate(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, id)
		return
	}
	writeJSON(w, http.StatusOK, toAnswerResponse(res))
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	id, err := s.sessionID(w, r)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	res, err := s.orch.Finish(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, id)
		return
	}
	s.metrics.RecordFinish(res.Summary.Degraded())
	writeJSON(w, http.StatusOK, finishResponse{Summary: res.Summary, FillerStats: res.FillerStats})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.Session(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if s.speech == nil {
		s.fail(w, r, fmt.Errorf("tts: %w", ErrUnavailable), "")
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err, "")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Missing text")
		return
	}

	audio, err := s.speech.Synthesize(r.Context(), req.Text)
	s.metrics.RecordTTS(err == nil)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"audio": base64.StdEncoding.EncodeToString(audio)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.users == nil {
		s.fail(w, r, fmt.Errorf("users: %w", ErrUnavailable), "")
		return
	}
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err, "")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "Name and email are required")
		return
	}

	user, err := s.users.SaveUser(r.Context(), req.Name, req.Email)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]*domain.User{"user": user})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if s.users == nil {
		s.fail(w, r, fmt.Errorf("users: %w", ErrUnavailable), "")
		return
	}
	users, err := s.users.ListUsers(r.Context())
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]*domain.User{"users": users})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		s.fail(w, r, fmt.Errorf("reports: %w", ErrUnavailable), "")
		return
	}
	report, err := s.reports.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return "", err
	}
	if req.SessionID == "" {
		return "", fmt.Errorf("%w: missing sessionId", errBadRequest)
	}
	return req.SessionID, nil
}

func toAnswerResponse(res orchestrator.AnswerResult) answerResponse {
	return answerResponse{
		TranscribedAnswer: res.Transcription,
		ExaminerMessage:   res.Reply,
		Analysis:          res.Analysis,
		Tone:              res.Tone,
	}
}

// fail logs err and writes the error response for it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, sessionID string) {
	status := StatusFor(err)
	switch {
	case errors.Is(err, domain.ErrTranscriptionFailure):
		s.metrics.RecordTranscriptionError()
	case errors.Is(err, domain.ErrGenerationFailure):
		s.metrics.RecordGenerationError()
	}
	log := s.log.WithRequest(logging.GetRequestID(r.Context())).WithSession(sessionID)
	extra := map[string]interface{}{"method": r.Method, "path": r.URL.Path, "status": status}
	if status >= http.StatusInternalServerError {
		log.Error("request_failed", extra, err)
	} else {
		log.Warn("request_rejected", extra, err)
	}

	writeJSON(w, status, errorResponse{Error: publicMessage(err, status), SessionID: sessionID})
}

// publicMessage is the client-facing text for err. Upstream failures get a
// fixed message; their detail can carry endpoints and credentials and stays
// in the log.
func publicMessage(err error, status int) string {
	switch {
	case errors.Is(err, domain.ErrTranscriptionFailure):
		return "transcription failed"
	case errors.Is(err, domain.ErrGenerationFailure):
		return "generation failed"
	}
	switch status {
	case http.StatusInternalServerError:
		return "internal server error"
	case http.StatusBadGateway:
		return "upstream request failed"
	case http.StatusGatewayTimeout:
		return "upstream request timed out"
	}
	return err.Error()
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrReportNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSession),
		errors.Is(err, domain.ErrInvalidUser),
		errors.Is(err, tts.ErrEmptyText),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyStarted),
		errors.Is(err, domain.ErrNothingPending):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTranscriptionFailure),
		errors.Is(err, domain.ErrGenerationFailure):
		return http.StatusBadGateway
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// spa serves files from dir and falls back to index.html for client routes.
// Unknown /api paths stay JSON 404s.
func spa(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err != nil || info.IsDir() {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	})
}

// Middleware for CORS
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+logging.RequestIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the mux wrapped in request id, recovery and CORS middleware.
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.recovery.Middleware(CORS(s.mux)))
}

// Serve listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Answer requests wait on transcription and generation.
		WriteTimeout: 3 * time.Minute,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("server_listening", map[string]interface{}{"addr": ln.Addr().String(), "static": s.static})

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("server_stopped", nil)
	return nil
}
