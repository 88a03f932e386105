// Package registrystub é um serviço de registro falso para testes e demos.
//
// Ele aceita POST no mesmo caminho da API real, confere o token Bearer e o
// envelope JSON {"document", "signature"} e guarda o que recebeu.
package registrystub

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"document-gateway/docflow/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const CreatePath = "/api/v3/lk/documents/create"

type Received struct {
	Document  domain.Document
	Signature string
	At        time.Time
}

type Server struct {
	router    chi.Router
	authToken string
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	received []Received
	// failNext força as próximas N respostas a 500.
	failNext int
}

type Option func(*Server)

// WithAuthToken exige Authorization: Bearer <token>. Vazio aceita qualquer requisição.
func WithAuthToken(token string) Option {
	return func(s *Server) { s.authToken = token }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Server {
	s := &Server{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Post(CreatePath, s.create)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// FailNext faz as próximas n requisições de criação responderem 500.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	s.failNext = n
	s.mu.Unlock()
}

func (s *Server) Received() []Received {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Received, len(s.received))
	copy(out, s.received)
	return out
}

type createRequest struct {
	Document  *domain.Document `json:"document"`
	Signature string           `json:"signature"`
}

type createResponse struct {
	Value string `json:"value,omitempty"`
	Error string `json:"error_message,omitempty"`
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	if s.authToken != "" {
		got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if got != s.authToken {
			writeJSON(w, http.StatusUnauthorized, createResponse{Error: "invalid token"})
			return
		}
	}
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		writeJSON(w, http.StatusUnsupportedMediaType, createResponse{Error: "content type must be application/json"})
		return
	}

	var body createRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, createResponse{Error: "invalid json: " + err.Error()})
		return
	}
	if body.Document == nil || strings.TrimSpace(body.Signature) == "" {
		writeJSON(w, http.StatusBadRequest, createResponse{Error: "document and signature are required"})
		return
	}

	s.mu.Lock()
	if s.failNext > 0 {
		s.failNext--
		s.mu.Unlock()
		writeJSON(w, http.StatusInternalServerError, createResponse{Error: "temporary failure"})
		return
	}
	s.received = append(s.received, Received{Document: *body.Document, Signature: body.Signature, At: s.now()})
	s.mu.Unlock()

	s.logger.Info("document received",
		zap.String("doc_id", body.Document.DocID),
		zap.String("doc_type", body.Document.DocType))
	writeJSON(w, http.StatusOK, createResponse{Value: body.Document.DocID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
