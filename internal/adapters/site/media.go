package site

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"nexonsite/internal/blob"
)

func zapError(err error) zap.Field { return zap.Error(err) }

// handleMedia streams a stored blob. Keys are immutable, so responses are
// cached for a year.
func (h *Handler) handleMedia(w http.ResponseWriter, r *http.Request) {
	if h.deps.Media == nil {
		http.NotFound(w, r)
		return
	}
	key := r.PathValue("key")
	info, rc, err := h.deps.Media.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Warn("media read failed", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid media key")
		return
	}
	defer rc.Close()

	if info.ETag != "" {
		etag := info.ETag
		if !strings.HasPrefix(etag, `"`) {
			etag = strconv.Quote(etag)
		}
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Debug("media copy interrupted", zap.String("key", key), zap.Error(err))
	}
}
