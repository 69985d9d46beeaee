package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/armorlens/api/internal/app"
	"github.com/armorlens/api/internal/infra/http/middleware"
	"github.com/armorlens/api/pkg/apierror"
	"github.com/armorlens/api/pkg/domain/dataset"
	"github.com/armorlens/api/pkg/logger"
	"github.com/armorlens/api/pkg/validator"
)

// uploadFormField is the multipart field carrying the CSV file.
const uploadFormField = "file"

// DatasetHandler handles loading, refreshing and clearing the rule inventory.
type DatasetHandler struct {
	service   *app.DatasetService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewDatasetHandler creates a new dataset handler.
func NewDatasetHandler(service *app.DatasetService, v *validator.Validator, log *logger.Logger) *DatasetHandler {
	return &DatasetHandler{
		service:   service,
		validator: v,
		logger:    log.With("handler", "dataset"),
	}
}

// LoadSheetRequest is the body of POST /dataset/sheet.
type LoadSheetRequest struct {
	URL string `json:"url" validate:"required,max=2048,sheet_url"`
}

// LoadObjectRequest is the body of POST /dataset/object.
type LoadObjectRequest struct {
	URL string `json:"url" validate:"required,max=2048,object_url"`
}

// DatasetResponse describes the active dataset.
type DatasetResponse struct {
	ID         string         `json:"id"`
	Source     dataset.Source `json:"source"`
	RuleCount  int            `json:"ruleCount"`
	LoadedAt   time.Time      `json:"loadedAt"`
	AgeSeconds int64          `json:"ageSeconds"`
}

func toDatasetResponse(d *dataset.Dataset) DatasetResponse {
	return DatasetResponse{
		ID:         d.ID().String(),
		Source:     d.Source(),
		RuleCount:  d.Len(),
		LoadedAt:   d.LoadedAt(),
		AgeSeconds: int64(d.Age(time.Now()).Seconds()),
	}
}

// Get handles GET /dataset
func (h *DatasetHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Current()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toDatasetResponse(d))
}

// LoadSheet handles POST /dataset/sheet
func (h *DatasetHandler) LoadSheet(w http.ResponseWriter, r *http.Request) {
	var req LoadSheetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, badBody(err))
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	d, err := h.service.LoadFromSheet(r.Context(), req.URL)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toDatasetResponse(d))
}

// LoadObject handles POST /dataset/object
func (h *DatasetHandler) LoadObject(w http.ResponseWriter, r *http.Request) {
	var req LoadObjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, badBody(err))
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	d, err := h.service.LoadFromObject(r.Context(), req.URL)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toDatasetResponse(d))
}

// Upload handles POST /dataset/upload. The CSV is either the "file" part
// of a multipart form or the raw request body; ?name= labels a raw body.
func (h *DatasetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		name string
		body io.Reader
	)
	if mediaType == "multipart/form-data" {
		part, err := h.openFilePart(r)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		defer part.Close()
		name, body = part.filename, part
	} else {
		name, body = r.URL.Query().Get("name"), r.Body
	}

	d, err := h.service.LoadFromUpload(r.Context(), cleanUploadName(name), body)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toDatasetResponse(d))
}

// Refresh handles POST /dataset/refresh
func (h *DatasetHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Refresh(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toDatasetResponse(d))
}

// Clear handles DELETE /dataset
func (h *DatasetHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type filePart struct {
	io.ReadCloser
	filename string
}

// openFilePart streams the upload field of a multipart body without
// buffering the form to disk.
func (h *DatasetHandler) openFilePart(r *http.Request) (*filePart, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, apierror.BadRequest("Invalid multipart body").WithError(err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, apierror.BadRequest(`Multipart body has no "file" field`)
		}
		if err != nil {
			return nil, badBody(err)
		}
		if part.FormName() == uploadFormField {
			return &filePart{ReadCloser: part, filename: part.FileName()}, nil
		}
		_ = part.Close()
	}
}

// cleanUploadName keeps the base name of a client-supplied file name.
func cleanUploadName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "upload.csv"
	}
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}

// badBody maps a body read or decode failure.
func badBody(err error) error {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if middleware.IsBodyTooLarge(err) {
		return err
	}
	return apierror.BadRequest("Invalid request body").WithError(err)
}
