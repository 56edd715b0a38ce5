package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/mixdown-api/internal/job"
	"github.com/maauso/mixdown-api/internal/media"
	"github.com/maauso/mixdown-api/internal/mix"
	"github.com/maauso/mixdown-api/internal/segment"
	"github.com/maauso/mixdown-api/internal/storage"
)

// allowedExtensions is the upload allow-list. Extensions only; MIME types of
// audio uploads are too unreliable to filter on.
var allowedExtensions = map[string]bool{
	".mp3": true,
	".wav": true,
	".m4a": true,
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.MergeService
	orch               *mix.Orchestrator
	prober             media.Prober
	store              storage.Storage
	validator          *validator.Validate
	logger             *slog.Logger
	maxUploadBytes     int64
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateMerge only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithMaxUploadBytes caps the total size of a multipart ingest request.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.MergeService, orch *mix.Orchestrator, prober media.Prober, store storage.Storage, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		orch:               orch,
		prober:             prober,
		store:              store,
		validator:          validator.New(),
		logger:             logger,
		maxUploadBytes:     200 << 20,
		enableAsyncProcess: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Upload handles POST /api/upload requests. Each uploaded file is saved under
// a unique name and probed exactly once; the response carries a full-range
// segment per file, or a per-file error string with no segment.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.logger.Warn("failed to parse multipart form",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid multipart body", "INVALID_MULTIPART")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["audioFiles"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded", "NO_FILES")
		return
	}

	resp := UploadResponse{Files: make([]UploadResult, 0, len(files))}
	for _, fh := range files {
		resp.Files = append(resp.Files, h.ingestFile(r.Context(), fh))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ingestFile saves and probes one uploaded file. Failures are reported per
// file; they never fail the whole upload.
func (h *Handlers) ingestFile(ctx context.Context, fh *multipart.FileHeader) UploadResult {
	result := UploadResult{OriginalName: fh.Filename}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExtensions[ext] {
		result.Error = "only mp3, wav or m4a files are accepted"
		return result
	}

	src, err := fh.Open()
	if err != nil {
		result.Error = "failed to read uploaded file: " + err.Error()
		return result
	}
	defer func() { _ = src.Close() }()

	path, err := h.store.SaveUpload(ctx, fh.Filename, src)
	if err != nil {
		h.logger.Error("failed to save upload",
			slog.String("name", fh.Filename),
			slog.String("error", err.Error()),
		)
		result.Error = "failed to save uploaded file"
		return result
	}

	info, err := h.prober.Probe(ctx, path)
	if err != nil {
		h.logger.Warn("probe failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		result.Error = "cannot load " + fh.Filename + ": " + err.Error()
		return result
	}

	seg := segment.NewFile(path, info.DurationMs)
	result.Segment = &seg
	result.Channels = info.Channels
	result.SampleRate = info.SampleRate
	return result
}

// CreateMerge handles POST /api/merge requests.
func (h *Handlers) CreateMerge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	createdJob, err := h.service.CreateJob(r.Context(), req.Segments, segment.Format(req.Format), req.PushToS3)
	if err != nil {
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Process in the background with a detached context so the job survives
	// the end of this request.
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string) {
			if _, processErr := h.service.ProcessExistingJob(ctx, jobID, nil); processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID)
	}

	h.logger.Info("merge job created",
		slog.String("job_id", createdJob.ID),
		slog.Int("segments", len(req.Segments)),
		slog.String("format", req.Format),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	resp := JobResponse{
		ID:       foundJob.ID,
		Status:   string(foundJob.Status),
		Progress: foundJob.Progress,
		Error:    foundJob.Error,
	}
	if foundJob.Status == job.StatusCompleted {
		resp.ArtifactName = foundJob.ArtifactName
		resp.DownloadPath = "/download/" + foundJob.ArtifactName
		resp.ArtifactURL = foundJob.ArtifactURL
	}

	writeJSON(w, http.StatusOK, resp)
}

// Download handles GET /download/{name}: serves a finished merge artifact.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	h.serveFrom(w, r, h.store.OutputDir(), true)
}

// PreviewFile handles GET /preview/{name}: serves a temporary preview file.
// Previews are time-limited; the retention sweep removes them.
func (h *Handlers) PreviewFile(w http.ResponseWriter, r *http.Request) {
	h.serveFrom(w, r, h.store.TempDir(), false)
}

// serveFrom serves a single file from dir by its base name.
func (h *Handlers) serveFrom(w http.ResponseWriter, r *http.Request, dir string, attachment bool) {
	name := filepath.Base(r.PathValue("name"))
	if name == "" || name == "." || name == string(filepath.Separator) {
		writeError(w, http.StatusBadRequest, "file name is required", "MISSING_FILE_NAME")
		return
	}

	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "file not found", "FILE_NOT_FOUND")
		return
	}

	if attachment {
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	}
	http.ServeFile(w, r, path)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
