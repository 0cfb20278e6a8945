// Package verifyserver exposes a sharetoken.Verifier over HTTP for relying
// parties that scan a share code and open its verification link.
package verifyserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	sharetoken "github.com/bionicotaku/idwallet-sharetoken"
)

// maxBodyBytes bounds POST bodies: one token plus JSON framing.
const maxBodyBytes = sharetoken.MaxTokenLength + 1024

// RequestIDHeader carries the per-request identifier used in logs.
const RequestIDHeader = "X-Request-ID"

// Config holds listener settings.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// AllowedOrigins enables CORS for browser verification pages. Empty disables CORS.
	AllowedOrigins []string
}

type requestIDKey struct{}

// Server serves verification requests.
type Server struct {
	server   *http.Server
	verifier *sharetoken.Verifier
	logger   *slog.Logger
}

// VerifyRequest is the POST /api/verify body. Token may also be a verification URL.
type VerifyRequest struct {
	Token string `json:"token"`
}

// VerifyResponse is returned for every verification, whatever the outcome.
// Claims and metadata are present only when Valid is true; every rejection
// produces the same body.
type VerifyResponse struct {
	Valid    bool                    `json:"valid"`
	Message  string                  `json:"message"`
	Claims   *sharetoken.ClaimSet    `json:"claims,omitempty"`
	Metadata *sharetoken.DisplayInfo `json:"metadata,omitempty"`
}

// ClaimsResponse is returned by endpoints behind RequireShareToken.
type ClaimsResponse struct {
	Claims    sharetoken.ClaimSet `json:"claims"`
	Issuer    string              `json:"issuer"`
	IssuedAt  time.Time           `json:"issuedAt"`
	ExpiresAt *time.Time          `json:"expiresAt,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New builds a server around verifier. A nil logger uses slog.Default.
func New(verifier *sharetoken.Verifier, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	s := &Server{verifier: verifier, logger: logger}

	router := mux.NewRouter()
	router.Use(withRequestID)
	router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/verify", s.handleVerifyQuery).Methods(http.MethodGet)
	router.HandleFunc("/api/verify", s.handleVerifyQuery).Methods(http.MethodGet)
	router.HandleFunc("/api/verify", s.handleVerifyBody).Methods(http.MethodPost)
	router.Handle("/api/claims", s.RequireShareToken(http.HandlerFunc(handleClaims))).Methods(http.MethodGet)

	var handler http.Handler = router
	if len(cfg.AllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "Authorization"},
			ExposedHeaders: []string{RequestIDHeader},
		}).Handler(router)
	}

	addr := fmt.Sprintf("%v:%v", cfg.Host, cfg.Port)
	s.server = &http.Server{
		Handler:      handler,
		Addr:         addr,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	s.logger.Debug("verify server created", "address", addr)
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting verify server", "address", s.server.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully within ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down verify server")
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleVerifyQuery(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get(sharetoken.TokenQueryParam)
	if token == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing token parameter"})
		return
	}
	s.respondVerification(w, r, token)
}

func (s *Server) handleVerifyBody(w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable request body"})
		return
	}
	var req VerifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	token := sharetoken.TokenFromURL(req.Token)
	if token == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing token"})
		return
	}
	s.respondVerification(w, r, token)
}

func (s *Server) respondVerification(w http.ResponseWriter, r *http.Request, token string) {
	res := s.verifier.Verify(token)
	s.requestLogger(r).Info("verification", "outcome", res.Outcome.String(), "reason", string(res.Reason))

	resp := VerifyResponse{Valid: res.Valid(), Message: res.Message()}
	if res.Valid() {
		claims := res.Claims
		resp.Claims = &claims
		resp.Metadata = res.Metadata
	}
	writeJSON(w, http.StatusOK, resp)
}

// RequireShareToken admits requests carrying a valid share token as a bearer
// credential and binds its claims to the request context.
func (s *Server) RequireShareToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}
		res := s.verifier.Verify(token)
		vc, ok := sharetoken.VerifiedClaimsFromResult(res)
		if !ok {
			s.requestLogger(r).Info("bearer share token rejected", "outcome", res.Outcome.String(), "reason", string(res.Reason))
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: res.Message()})
			return
		}
		next.ServeHTTP(w, r.WithContext(sharetoken.BindVerifiedClaims(r.Context(), vc)))
	})
}

func handleClaims(w http.ResponseWriter, r *http.Request) {
	vc, ok := sharetoken.VerifiedClaimsFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "no verified claims"})
		return
	}
	writeJSON(w, http.StatusOK, ClaimsResponse{
		Claims:    vc.Claims,
		Issuer:    vc.Issuer,
		IssuedAt:  vc.IssuedAt,
		ExpiresAt: vc.ExpiresAt,
	})
}

// withRequestID tags every request with an ID, reusing a well-formed incoming one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return s.logger.With("request_id", id)
	}
	return s.logger
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func closeRequestBody(r *http.Request) {
	if err := r.Body.Close(); err != nil {
		slog.Error("failed to close request body", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON payload", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}
