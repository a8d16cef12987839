package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hszk-dev/footage/internal/domain/model"
	"github.com/hszk-dev/footage/internal/domain/repository"
	"github.com/hszk-dev/footage/internal/usecase"
)

// DefaultMaxUploadBytes caps a single upload request.
const DefaultMaxUploadBytes int64 = 2 << 30

// multipartMemory is the part of a multipart form kept in memory; the rest
// spills to temporary files.
const multipartMemory = 32 << 20

type UploadResponse struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	Filename        string  `json:"filename"`
	Status          string  `json:"processing_status"`
	DurationSeconds float64 `json:"duration_seconds"`
	CreatedAt       string  `json:"created_at"`
}

// FootageHandler handles footage upload and polling requests.
type FootageHandler struct {
	uploads        usecase.UploadService
	progress       usecase.ProgressService
	maxUploadBytes int64
}

// NewFootageHandler creates a new FootageHandler. maxUploadBytes <= 0 uses
// DefaultMaxUploadBytes.
func NewFootageHandler(uploads usecase.UploadService, progress usecase.ProgressService, maxUploadBytes int64) *FootageHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &FootageHandler{
		uploads:        uploads,
		progress:       progress,
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload handles POST /v1/footage
func (h *FootageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "upload_too_large", "Upload exceeds the size limit")
			return
		}
		Error(w, http.StatusBadRequest, "invalid_request", "Expected a multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_file", "A file field is required")
		return
	}
	defer file.Close()

	footage, err := h.uploads.Upload(r.Context(), usecase.UploadInput{
		Title:    r.FormValue("title"),
		Filename: header.Filename,
		Content:  file,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusAccepted, UploadResponse{
		ID:              footage.ID,
		Title:           footage.Title,
		Filename:        footage.Filename,
		Status:          footage.Status.String(),
		DurationSeconds: footage.DurationSeconds,
		CreatedAt:       footage.CreatedAt.Format(time.RFC3339),
	})
}

// Get handles GET /v1/footage/{id}
func (h *FootageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := footageID(w, r)
	if !ok {
		return
	}

	footage, err := h.progress.GetFootage(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, footage)
}

// Progress handles GET /v1/footage/{id}/progress
func (h *FootageHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id, ok := footageID(w, r)
	if !ok {
		return
	}

	progress, err := h.progress.GetProgress(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, progress)
}

func (h *FootageHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrFootageNotFound):
		Error(w, http.StatusNotFound, "footage_not_found", "Footage not found")
	case errors.Is(err, usecase.ErrNormalizationFailed):
		Error(w, http.StatusUnprocessableEntity, "unsupported_media", "The file could not be converted to a playable video")
	case errors.Is(err, model.ErrTitleTooLong):
		Error(w, http.StatusBadRequest, "invalid_title", "Title exceeds maximum length")
	default:
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func footageID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		Error(w, http.StatusBadRequest, "invalid_footage_id", "Footage ID must be a positive integer")
		return 0, false
	}
	return id, true
}
