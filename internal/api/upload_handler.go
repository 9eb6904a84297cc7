package api

import (
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ThanosKa/magic-room-sub001/internal/generation"
	"github.com/ThanosKa/magic-room-sub001/internal/storage"
)

type UploadHandler struct {
	store generation.ObjectStore
}

func NewUploadHandler(store generation.ObjectStore) *UploadHandler {
	return &UploadHandler{store: store}
}

type uploadResponse struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(storage.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxUploadSize+1))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}
	if len(data) > storage.MaxUploadSize {
		writeError(w, http.StatusBadRequest, "File too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	url, path, err := h.store.Upload(r.Context(), data, contentType, r.FormValue("bucket"))
	if err != nil {
		log.Error().Err(err).Str("filename", header.Filename).Msg("upload failed")
		writeError(w, http.StatusInternalServerError, "Upload failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{URL: url, Path: path})
}
