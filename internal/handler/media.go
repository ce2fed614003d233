package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/askelund/dagsplan/internal/media"
)

// MediaHandler accepts multipart uploads of activity and reward assets and
// hands back the stored URL. A nil store means S3 is not configured and
// uploads are off.
type MediaHandler struct {
	store  *media.Store
	logger *slog.Logger
}

func NewMediaHandler(store *media.Store, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{store: store, logger: logger}
}

func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "media uploads are not configured")
		return
	}

	if err := r.ParseMultipartForm(media.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	url, err := h.store.Upload(r.Context(), file, header.Header.Get("Content-Type"), header.Size)
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedType) {
			writeError(w, http.StatusUnsupportedMediaType, "unsupported media type")
			return
		}
		h.logger.Error("upload media", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to upload media")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}
