package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/koki-187/200-sub000/internal/domain"
	"github.com/koki-187/200-sub000/internal/ocr"
	"github.com/koki-187/200-sub000/internal/raster"
)

// maxRequestBytes bounds the whole multipart body: the largest legal batch
// plus form overhead.
const maxRequestBytes = int64(domain.MaxBatchSizeLimit)*ocr.MaxFileSize + 1<<20

type createJobResponse struct {
	JobID string `json:"job_id"`
}

type jobView struct {
	ID             string                `json:"id"`
	Status         domain.JobStatus      `json:"status"`
	TotalFiles     int                   `json:"total_files"`
	ProcessedFiles int                   `json:"processed_files"`
	FileNames      []string              `json:"file_names"`
	ExtractedData  *domain.ExtractedData `json:"extracted_data,omitempty"`
	ErrorMessage   string                `json:"error_message,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	CompletedAt    *time.Time            `json:"completed_at,omitempty"`
}

func viewJob(job *domain.Job) jobView {
	return jobView{
		ID:             job.ID,
		Status:         job.Status,
		TotalFiles:     job.TotalFiles,
		ProcessedFiles: job.ProcessedFiles,
		FileNames:      job.FileNames,
		ExtractedData:  job.ExtractedData,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt,
		CompletedAt:    job.CompletedAt,
	}
}

// CreateOCRJob accepts a multipart batch of property documents, runs the
// rasterization boundary and enqueues the extraction job. Validation and
// PDF failures reject the submission before any job row exists.
func (a *App) CreateOCRJob(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		a.error(w, http.StatusBadRequest, "validation_error", "at least one file is required")
		return
	}

	files := make([]raster.File, 0, len(parts))
	for _, part := range parts {
		f, err := readUpload(part)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "unreadable upload: "+part.Filename)
			return
		}
		files = append(files, f)
	}

	// Rasterize ahead of CreateJob so a corrupt PDF never leaves a job
	// record behind.
	prepared, err := raster.Prepare(r.Context(), files)
	if err != nil {
		a.domainError(w, err)
		return
	}

	jobID, err := a.Orchestrator.CreateJob(r.Context(), ownerID, prepared)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, createJobResponse{JobID: jobID})
}

// GetOCRJob returns the polled job snapshot.
func (a *App) GetOCRJob(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "id")
	job, err := a.Orchestrator.GetJob(r.Context(), jobID, ownerID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"job": viewJob(job)})
}

// CancelOCRJob requests cooperative cancellation of a running job.
func (a *App) CancelOCRJob(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "id")
	if err := a.Orchestrator.CancelJob(r.Context(), jobID, ownerID); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func readUpload(part *multipart.FileHeader) (raster.File, error) {
	f, err := part.Open()
	if err != nil {
		return raster.File{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return raster.File{}, err
	}

	mimeType := strings.TrimSpace(part.Header.Get("Content-Type"))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
		if idx := strings.Index(mimeType, ";"); idx >= 0 {
			mimeType = strings.TrimSpace(mimeType[:idx])
		}
	}

	return raster.File{
		Name: part.Filename,
		MIME: mimeType,
		Data: data,
	}, nil
}
