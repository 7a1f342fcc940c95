package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"video-batcher/internal/domain"
	"video-batcher/internal/http-server/handler/batch/dto"
	repo "video-batcher/internal/repository/batch"
	batch_uc "video-batcher/internal/usecase/batch"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/zlog"
)

const (
	maxMemory      = 32 << 20
	maxCorpusBytes = 1 << 20
	maxJSONBytes   = 1 << 20
)

type BatchHandler struct {
	usecase        batchUsecase
	validate       *validator.Validate
	maxRequestSize int64
	logger         *zlog.Zerolog
}

// NewBatchHandler builds the HTTP surface. maxRequestSize caps a whole
// multipart upload request.
func NewBatchHandler(usecase batchUsecase, maxRequestSize int64, logger *zlog.Zerolog) *BatchHandler {
	if maxRequestSize <= 0 {
		maxRequestSize = domain.DefaultMaxUploadSize
	}
	return &BatchHandler{
		usecase:        usecase,
		validate:       validator.New(),
		maxRequestSize: maxRequestSize,
		logger:         logger,
	}
}

func (h *BatchHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.usecase.CreateSession()
	h.respondJSON(w, http.StatusCreated, dto.NewSessionResponse(sess))
}

func (h *BatchHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.usecase.GetSession(chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, err, "Failed to get session")
		return
	}
	h.respondJSON(w, http.StatusOK, dto.NewSessionResponse(sess))
}

func (h *BatchHandler) UploadAssets(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	kind := domain.AssetKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		h.respondError(w, http.StatusBadRequest, "Kind must be one of covers, photos, music", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestSize)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to parse multipart form")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "Request too large", nil)
			return
		}
		h.respondError(w, http.StatusBadRequest, "Invalid request format", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files[]"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["files"]
	}
	if len(headers) == 0 {
		h.respondError(w, http.StatusBadRequest, "Files are required", ErrNoFiles)
		return
	}

	uploads := make([]batch_uc.Upload, 0, len(headers))
	for _, fh := range headers {
		up, err := readUpload(fh)
		if err != nil {
			h.logger.Error().Err(err).Str("filename", fh.Filename).Msg("Failed to read file")
			h.respondError(w, http.StatusBadRequest, "Failed to read file", err)
			return
		}
		uploads = append(uploads, up)
	}

	res, err := h.usecase.AddAssets(r.Context(), sessionID, kind, uploads)
	if err != nil {
		h.handleError(w, err, "Failed to upload assets")
		return
	}

	h.respondJSON(w, http.StatusOK, dto.NewUploadResponse(kind, res))
}

func (h *BatchHandler) SetCaptions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCorpusBytes+1))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	if len(body) > maxCorpusBytes {
		h.respondError(w, http.StatusRequestEntityTooLarge, "Caption corpus too large", nil)
		return
	}

	captions, err := h.usecase.SetCaptions(chi.URLParam(r, "id"), string(body))
	if err != nil {
		h.handleError(w, err, "Failed to set captions")
		return
	}

	h.respondJSON(w, http.StatusOK, dto.CaptionsResponse{Count: len(captions), Captions: captions})
}

func (h *BatchHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	if err := h.usecase.ResetSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleError(w, err, "Failed to reset session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BatchHandler) StartBatch(w http.ResponseWriter, r *http.Request) {
	req := dto.NewStartBatchRequest()
	if !h.decodeJSON(w, r, &req) {
		return
	}

	b, err := h.usecase.StartBatch(r.Context(), chi.URLParam(r, "id"), req.Style, req.Settings.ToDomain())
	if err != nil {
		h.handleError(w, err, "Failed to start batch")
		return
	}

	h.respondJSON(w, http.StatusAccepted, dto.StartBatchResponse{
		BatchID: b.ID,
		Status:  string(b.Status),
		Planned: b.Planned,
	})
}

func (h *BatchHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	report, err := h.usecase.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, err, "Failed to get batch")
		return
	}
	h.respondJSON(w, http.StatusOK, dto.NewBatchResponse(report))
}

func (h *BatchHandler) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")
	part, err := strconv.Atoi(chi.URLParam(r, "part"))
	if err != nil || part < 1 {
		h.respondError(w, http.StatusBadRequest, "Part must be a positive integer", ErrInvalidPart)
		return
	}

	p, reader, size, err := h.usecase.OpenArchive(r.Context(), batchID, part)
	if err != nil {
		h.handleError(w, err, "Failed to open archive")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.Name))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}

	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Error().
			Err(err).
			Str("batch_id", batchID).
			Int("part", part).
			Msg("Failed to stream archive")
	}
}

func (h *BatchHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.usecase.DeleteBatch(r.Context(), id); err != nil {
		h.handleError(w, err, "Failed to delete batch")
		return
	}

	h.logger.Info().Str("batch_id", id).Msg("Batch deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *BatchHandler) Preview(w http.ResponseWriter, r *http.Request) {
	req := dto.NewPreviewRequest()
	if !h.decodeJSON(w, r, &req) {
		return
	}

	data, info, err := h.usecase.Preview(req.Text, req.Style, req.Background)
	if err != nil {
		h.handleError(w, err, "Failed to render preview")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Caption-Font-Size", strconv.Itoa(info.FontSize))
	w.Header().Set("X-Caption-Overflow", strconv.FormatBool(info.Overflow))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write preview")
	}
}

func (h *BatchHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *BatchHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func (h *BatchHandler) handleError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, batch_uc.ErrSessionNotFound):
		h.respondError(w, http.StatusNotFound, "Session not found", nil)
	case errors.Is(err, repo.ErrBatchNotFound):
		h.respondError(w, http.StatusNotFound, "Batch not found", nil)
	case errors.Is(err, repo.ErrArchiveNotFound), errors.Is(err, repo.ErrFileNotFound):
		h.respondError(w, http.StatusNotFound, "Archive part not found", nil)
	case errors.Is(err, batch_uc.ErrFileTooLarge):
		h.respondError(w, http.StatusRequestEntityTooLarge, "File too large", err)
	case errors.Is(err, batch_uc.ErrInvalidKind), errors.Is(err, batch_uc.ErrEmptyUpload):
		h.respondError(w, http.StatusBadRequest, "Invalid upload", err)
	case errors.Is(err, batch_uc.ErrInvalidStyle):
		h.respondError(w, http.StatusBadRequest, "Invalid caption style", err)
	case batch_uc.IsPrecondition(err):
		h.logger.Info().Err(err).Msg("Batch precondition failed")
		h.respondError(w, http.StatusUnprocessableEntity, "Batch cannot start", err)
	case errors.Is(err, batch_uc.ErrMessageQueueError):
		h.logger.Error().Err(err).Msg(msg)
		h.respondError(w, http.StatusServiceUnavailable, "Queue unavailable", nil)
	default:
		h.logger.Error().Err(err).Msg(msg)
		h.respondError(w, http.StatusInternalServerError, msg, err)
	}
}

func (h *BatchHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Interface("data", data).Msg("Failed to encode response")
	}
}

func (h *BatchHandler) respondError(w http.ResponseWriter, status int, message string, err error) {
	response := dto.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}

	if err != nil {
		response.Details = err.Error()
	}

	h.respondJSON(w, status, response)
}

func readUpload(fh *multipart.FileHeader) (batch_uc.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return batch_uc.Upload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return batch_uc.Upload{}, err
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = http.DetectContentType(data)
	}

	return batch_uc.Upload{Name: fh.Filename, ContentType: contentType, Data: data}, nil
}
