package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/jo-hoe/content-localizer/internal/blob"
	"github.com/jo-hoe/content-localizer/internal/common"
	"github.com/jo-hoe/content-localizer/internal/config"
	"github.com/jo-hoe/content-localizer/internal/dispatch"
	"github.com/jo-hoe/content-localizer/internal/errs"
	"github.com/jo-hoe/content-localizer/internal/jobs"
)

// Service bundles the dependencies of the HTTP API.
type Service struct {
	Log        *slog.Logger
	Cfg        *config.Config
	Store      jobs.Store
	Blobs      blob.Store
	Dispatcher *dispatch.Dispatcher
}

// NewHTTPServer builds the http.Server with routes and middleware.
func NewHTTPServer(svc *Service) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc(http.MethodGet+" "+common.PathHealthz, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc(http.MethodPost+" "+common.PathUpload, svc.handleUpload)
	mux.HandleFunc(http.MethodGet+" "+common.PathResults+"/{jobId}", svc.handleResults)
	mux.HandleFunc(http.MethodGet+" "+common.PathJobs, svc.handleJobHistory)
	mux.HandleFunc(http.MethodPost+" "+common.PathProcess+"/{jobId}", svc.handleProcess)
	mux.HandleFunc(http.MethodPost+" "+common.PathUpdateContext+"/{jobId}", svc.handleUpdateContext)
	mux.HandleFunc(http.MethodPut+" "+common.PathBlobs+"/{key...}", svc.handlePutBlob)
	mux.HandleFunc(http.MethodGet+" "+common.PathBlobs+"/{key...}", svc.handleGetBlob)

	s := &http.Server{
		Addr:         svc.Cfg.Server.Addr,
		Handler:      corsMiddleware(loggingMiddleware(recoveryMiddleware(mux), svc.Log)),
		ReadTimeout:  svc.Cfg.Server.ReadTimeout,
		WriteTimeout: svc.Cfg.Server.WriteTimeout,
		IdleTimeout:  svc.Cfg.Server.IdleTimeout,
	}
	return s
}

type uploadRequest struct {
	FileName    string         `json:"fileName"`
	FileType    string         `json:"fileType"`
	FileSize    int64          `json:"fileSize"`
	UserID      string         `json:"userId"`
	ContextData map[string]any `json:"contextData"`
}

type uploadResponse struct {
	Success   bool   `json:"success"`
	JobID     string `json:"jobId"`
	UploadURL string `json:"uploadUrl"`
	S3Key     string `json:"s3Key"`
	ExpiresIn int    `json:"expiresIn"`
}

// handleUpload validates the submission, creates the Pending job record and
// hands back an upload URL for the payload. No processing starts here; the
// change feed or the explicit /process call triggers it.
func (svc *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		svc.writeError(w, errs.NewValidation("body", "malformed json"))
		return
	}

	if err := svc.validateUpload(&req); err != nil {
		svc.writeError(w, err)
		return
	}

	jobID := uuid.NewString()
	key := blob.OriginalKey(jobID, req.FileName)
	job := jobs.Job{
		ID:          jobID,
		UserID:      req.UserID,
		Status:      jobs.StatusPending,
		FileType:    jobs.FileType(req.FileType),
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		FilePath:    key,
		ContextData: req.ContextData,
		CreatedAt:   time.Now().UTC(),
	}
	if job.ContextData == nil {
		job.ContextData = map[string]any{}
	}

	if err := svc.Store.CreateJob(&job); err != nil {
		svc.Log.Error("persist job", "err", err)
		svc.writeError(w, errs.NewStorage("create job", err))
		return
	}
	svc.Log.Info("job created", "job_id", jobID, "file_type", req.FileType, "user_id", req.UserID)

	writeJSON(w, http.StatusOK, uploadResponse{
		Success:   true,
		JobID:     jobID,
		UploadURL: svc.Blobs.DownloadURL(key),
		S3Key:     key,
		ExpiresIn: int(svc.Cfg.Server.UploadURLTTL.Seconds()),
	})
}

func (svc *Service) validateUpload(req *uploadRequest) error {
	if strings.TrimSpace(req.FileName) == "" {
		return errs.NewValidation("fileName", "missing required field")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return errs.NewValidation("userId", "missing required field")
	}
	if req.FileSize <= 0 {
		return errs.NewValidation("fileSize", "missing required field")
	}
	if !jobs.ValidFileType(req.FileType) {
		return errs.NewValidation("fileType", "must be one of: text, image, video")
	}
	limit := svc.sizeLimit(jobs.FileType(req.FileType))
	if uint64(req.FileSize) > limit {
		return errs.NewValidation("fileSize",
			fmt.Sprintf("exceeds %s limit for %s files", humanize.IBytes(limit), req.FileType))
	}
	return nil
}

func (svc *Service) sizeLimit(ft jobs.FileType) uint64 {
	switch ft {
	case jobs.FileTypeText:
		return uint64(svc.Cfg.Limits.Text)
	case jobs.FileTypeImage:
		return uint64(svc.Cfg.Limits.Image)
	default:
		return uint64(svc.Cfg.Limits.Video)
	}
}

// jobView is the wire representation of a job on /results.
type jobView struct {
	JobID            string         `json:"jobId"`
	Status           string         `json:"status"`
	FileType         string         `json:"fileType"`
	FileName         string         `json:"fileName"`
	FileSize         int64          `json:"fileSize"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	UserID           string         `json:"userId"`
	ContextData      map[string]any `json:"contextData"`
	OriginalContent  *string        `json:"originalContent"`
	LocalizedContent any            `json:"localizedContent"`
	FilePath         string         `json:"filePath"`
	ResultPath       *string        `json:"resultPath"`
	OriginalFileURL  string         `json:"originalFileUrl,omitempty"`
	LocalizedFileURL string         `json:"localizedFileUrl,omitempty"`
	ErrorMessage     string         `json:"errorMessage,omitempty"`
}

func (svc *Service) handleResults(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	job, err := svc.Store.GetJob(jobID)
	if err != nil {
		svc.writeError(w, err)
		return
	}

	view := jobView{
		JobID:           job.ID,
		Status:          string(job.Status),
		FileType:        string(job.FileType),
		FileName:        job.FileName,
		FileSize:        job.FileSize,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		UserID:          job.UserID,
		ContextData:     job.ContextData,
		OriginalContent: job.OriginalContent,
		FilePath:        job.FilePath,
		ResultPath:      job.ResultPath,
	}
	if view.ContextData == nil {
		view.ContextData = map[string]any{}
	}
	if job.LocalizedContent != nil {
		view.LocalizedContent = rawOrString(*job.LocalizedContent)
	}
	if job.FilePath != "" {
		view.OriginalFileURL = svc.Blobs.DownloadURL(job.FilePath)
	}
	if job.ResultPath != nil && job.Status == jobs.StatusCompleted {
		view.LocalizedFileURL = svc.Blobs.DownloadURL(*job.ResultPath)
	}
	if job.Status == jobs.StatusFailed && job.ErrorMessage != nil {
		view.ErrorMessage = *job.ErrorMessage
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"job":     view,
	})
}

type historyEntry struct {
	JobID       string         `json:"jobId"`
	FileName    string         `json:"fileName"`
	FileType    string         `json:"fileType"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	ContextData map[string]any `json:"contextData"`
}

func (svc *Service) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		svc.writeError(w, errs.NewValidation("userId", "missing required query parameter"))
		return
	}

	list, err := svc.Store.ListByUser(userID)
	if err != nil {
		svc.writeError(w, errs.NewStorage("list jobs", err))
		return
	}

	entries := make([]historyEntry, 0, len(list))
	for _, j := range list {
		ctxData := j.ContextData
		if ctxData == nil {
			ctxData = map[string]any{}
		}
		entries = append(entries, historyEntry{
			JobID:       j.ID,
			FileName:    j.FileName,
			FileType:    string(j.FileType),
			Status:      string(j.Status),
			CreatedAt:   j.CreatedAt,
			UpdatedAt:   j.UpdatedAt,
			ContextData: ctxData,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"jobs":    entries,
	})
}

func (svc *Service) handleProcess(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	if err := svc.Dispatcher.HandleDirect(r.Context(), jobID); err != nil {
		svc.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"jobId":   jobID,
		"status":  string(jobs.StatusProcessing),
	})
}

type updateContextRequest struct {
	ContextData map[string]any `json:"contextData"`
}

func (svc *Service) handleUpdateContext(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	var req updateContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		svc.writeError(w, errs.NewValidation("body", "malformed json"))
		return
	}
	if req.ContextData == nil {
		svc.writeError(w, errs.NewValidation("contextData", "missing required field"))
		return
	}

	if err := svc.Store.UpdateContext(jobID, req.ContextData); err != nil {
		svc.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"jobId":   jobID,
		"message": "context data updated",
	})
}

func (svc *Service) handlePutBlob(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	maxBytes := int64(svc.Cfg.Limits.Video)
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		svc.writeError(w, errs.NewValidation("body", "payload too large or unreadable"))
		return
	}
	contentType := r.Header.Get("Content-Type")
	if err := svc.Blobs.Put(r.Context(), key, data, contentType); err != nil {
		svc.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "key": key})
}

func (svc *Service) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	data, contentType, err := svc.Blobs.Get(r.Context(), key)
	if err != nil {
		svc.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// rawOrString returns stored localized content as a JSON object when it is
// one, so clients see structured fields rather than an escaped string.
func rawOrString(s string) any {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return s
}

// writeError maps the error taxonomy to HTTP status codes with a JSON body.
func (svc *Service) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errs.IsValidation(err):
		status = http.StatusBadRequest
	case errs.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, jobs.ErrContextLocked):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError && svc.Log != nil {
		svc.Log.Error("request failed", "err", err)
	}
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", common.ContentTypeJSON)
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(v)
}

// corsMiddleware allows all origins, headers and methods and answers
// preflight requests directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler, log *slog.Logger) http.Handler {
	// Fallback to a discard logger if none provided to avoid nil deref in tests or minimal setups.
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &writeWrap{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(ww, r)
		log.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.code,
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr)
	})
}

type writeWrap struct {
	http.ResponseWriter
	code int
}

func (w *writeWrap) WriteHeader(statusCode int) {
	w.code = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
