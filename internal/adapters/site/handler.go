// Package site exposes the content service, media uploads, the chat proxy and
// live subscriptions over HTTP.
package site

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"nexonsite/internal/auth"
	"nexonsite/internal/blob"
	"nexonsite/internal/chat"
	"nexonsite/internal/core"
	"nexonsite/internal/livedata"
	"nexonsite/internal/media"
	"nexonsite/internal/ordering"
	"nexonsite/pkg/domain"
)

// maxBodyBytes bounds JSON request bodies. Uploads carry base64 images.
const maxBodyBytes = 16 << 20

// Deps wires the handler. Service is required; nil optional dependencies
// disable their routes with 503.
type Deps struct {
	Service  *core.Service
	Uploader *media.Uploader
	Chat     *chat.Proxy
	Media    blob.Store
	Auth     *auth.Signer
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Live configures the watchers behind /api/v1/watch.
	Live   []livedata.Option
	Logger *zap.Logger
}

// Handler routes site requests.
type Handler struct {
	deps   Deps
	logger *zap.Logger
	root   http.Handler
}

// NewHandler constructs the site HTTP handler.
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{deps: deps, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/portfolio", h.handleListPortfolio)
	mux.HandleFunc("POST /api/v1/portfolio", h.handleCreatePortfolio)
	mux.HandleFunc("GET /api/v1/portfolio/featured", h.handleFeatured)
	mux.HandleFunc("GET /api/v1/portfolio/{id}", h.handleGetPortfolio)
	mux.HandleFunc("PUT /api/v1/portfolio/{id}", h.handleUpdatePortfolio)
	mux.HandleFunc("DELETE /api/v1/portfolio/{id}", h.handleDeletePortfolio)
	mux.HandleFunc("POST /api/v1/portfolio/{id}/move", h.handleMovePortfolio)
	mux.HandleFunc("GET /api/v1/portfolio/{id}/suggested", h.handleSuggested)

	mux.HandleFunc("GET /api/v1/posts", h.handleListPosts)
	mux.HandleFunc("POST /api/v1/posts", h.handleCreatePost)
	mux.HandleFunc("GET /api/v1/posts/slug/{slug}", h.handlePostBySlug)
	mux.HandleFunc("GET /api/v1/posts/{id}", h.handleGetPost)
	mux.HandleFunc("PUT /api/v1/posts/{id}", h.handleUpdatePost)
	mux.HandleFunc("DELETE /api/v1/posts/{id}", h.handleDeletePost)

	mux.HandleFunc("POST /api/upload", h.handleUpload)
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("GET /api/v1/watch", h.handleWatch)
	mux.HandleFunc("GET /media/{key...}", h.handleMedia)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	h.root = mux
	if deps.Auth != nil {
		h.root = deps.Auth.Middleware(mux)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.deps.Service == nil {
		writeError(w, http.StatusInternalServerError, "content service not configured")
		return
	}
	h.root.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// decodeBody reads a JSON request body into dst. An empty body leaves dst
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON payload: "+err.Error())
		return false
	}
	return true
}

// statusFor maps service errors to HTTP status codes.
func statusFor(r *http.Request, err error) int {
	var verr core.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, ordering.ErrInvalidDirection):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPermissionDenied):
		if domain.PrincipalFromContext(r.Context()).Role == domain.RoleAnonymous {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(r, err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, status, err.Error())
}
