package site

import (
	"errors"
	"net/http"

	"nexonsite/internal/chat"
	"nexonsite/internal/media"
)

type uploadRequest struct {
	File string `json:"file"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.deps.Uploader == nil {
		writeError(w, http.StatusServiceUnavailable, "Upload failed: media storage not configured")
		return
	}
	var req uploadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.deps.Uploader.UploadDataURI(r.Context(), req.File)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, media.ErrInvalidDataURI), errors.Is(err, media.ErrUnsupportedType):
			status = http.StatusBadRequest
		case errors.Is(err, media.ErrTooLarge):
			status = http.StatusRequestEntityTooLarge
		default:
			h.logger.Error("upload failed", zapError(err))
		}
		writeError(w, status, "Upload failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": res.URL})
}

type chatRequest struct {
	Messages []chat.Message `json:"messages"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if h.deps.Chat == nil || !h.deps.Chat.Configured() {
		writeError(w, http.StatusInternalServerError, chat.ErrAPIKeyMissing.Error())
		return
	}
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, chat.ErrNoMessages.Error())
		return
	}
	text, err := h.deps.Chat.Reply(r.Context(), req.Messages)
	if err != nil {
		h.logger.Error("chat failed", zapError(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Failed to generate response",
			"details": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"response": text})
}
