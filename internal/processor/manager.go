package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jo-hoe/content-localizer/internal/blob"
	"github.com/jo-hoe/content-localizer/internal/common"
	"github.com/jo-hoe/content-localizer/internal/errs"
	"github.com/jo-hoe/content-localizer/internal/jobs"
	"github.com/jo-hoe/content-localizer/internal/localize"
)

// Manager owns the job state machine. It is invoked once per trigger and is
// safe against duplicate invocation for the same job: the conditional
// Pending -> Processing claim admits exactly one trigger.
type Manager struct {
	log       *slog.Logger
	store     jobs.Store
	blobs     blob.Store
	transform localize.Transformer
	handlers  map[jobs.FileType]handlerFunc
}

// pipelineResult carries what a file-type handler produced.
type pipelineResult struct {
	resultPath       string
	originalContent  string
	localizedContent string
}

type handlerFunc func(ctx context.Context, job *jobs.Job) (pipelineResult, error)

// New wires a Manager with its adapters.
func New(log *slog.Logger, store jobs.Store, blobs blob.Store, transform localize.Transformer) *Manager {
	m := &Manager{
		log:       log,
		store:     store,
		blobs:     blobs,
		transform: transform,
	}
	// Strategy table closed over the known file types; anything else is a
	// validation failure, never a silent no-op.
	m.handlers = map[jobs.FileType]handlerFunc{
		jobs.FileTypeText:  m.processText,
		jobs.FileTypeImage: m.processBinary,
		jobs.FileTypeVideo: m.processBinary,
	}
	return m
}

// ProcessJob drives one job from Pending to a terminal state. A job already
// claimed or terminal is a no-op; errors after the claim become a Failed
// transition and are also returned to the caller.
func (m *Manager) ProcessJob(ctx context.Context, jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return errs.NewValidation("jobId", "missing required field")
	}
	job, err := m.store.GetJob(jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() || job.Status == jobs.StatusProcessing {
		m.log.Debug("skipping job in non-startable state", "job_id", jobID, "status", string(job.Status))
		return nil
	}

	claimed, err := m.store.ClaimProcessing(jobID)
	if err != nil {
		return errs.NewStorage("claim", err)
	}
	if !claimed {
		// Lost the race against a concurrent trigger.
		m.log.Debug("job already claimed", "job_id", jobID)
		return nil
	}

	res, err := m.runPipeline(ctx, job)
	if err != nil {
		m.failJob(jobID, err)
		return err
	}

	if err := m.store.SaveResult(jobID, res.resultPath, res.originalContent, res.localizedContent); err != nil {
		wrapped := errs.NewStorage("save result", err)
		m.failJob(jobID, wrapped)
		return wrapped
	}
	m.log.Info("job completed", "job_id", jobID, "result_path", res.resultPath)
	return nil
}

func (m *Manager) runPipeline(ctx context.Context, job *jobs.Job) (pipelineResult, error) {
	if strings.TrimSpace(job.FilePath) == "" {
		return pipelineResult{}, errs.NewValidation("filePath", "missing required field")
	}
	if strings.TrimSpace(string(job.FileType)) == "" {
		return pipelineResult{}, errs.NewValidation("fileType", "missing required field")
	}
	handler, ok := m.handlers[job.FileType]
	if !ok {
		return pipelineResult{}, errs.NewValidation("fileType", fmt.Sprintf("unsupported file type %q", job.FileType))
	}
	return handler(ctx, job)
}

// processText localizes a text payload through the transform service,
// substituting deterministic fallback content when the transform fails.
func (m *Manager) processText(ctx context.Context, job *jobs.Job) (pipelineResult, error) {
	data, _, err := m.blobs.Get(ctx, job.FilePath)
	if err != nil {
		return pipelineResult{}, errs.NewStorage("get original", err)
	}
	original := string(data)

	req := localize.Request{
		Content:        original,
		TargetLanguage: contextValue(job.ContextData, common.ContextKeyTargetLanguage),
		ContentType:    contextValue(job.ContextData, common.ContextKeyContentType),
		Tone:           contextValue(job.ContextData, common.ContextKeyTone),
		SpecialNotes:   contextValue(job.ContextData, common.ContextKeySpecialNotes),
	}

	res, err := m.transform.Localize(ctx, req)
	if err != nil {
		// Transform-quality issues never fail the job.
		m.log.Warn("transform failed, substituting fallback content", "job_id", job.ID, "err", err)
		res = localize.Fallback(req)
	}

	localizedJSON, err := json.Marshal(res)
	if err != nil {
		return pipelineResult{}, fmt.Errorf("marshal localized result: %w", err)
	}

	resultKey := blob.LocalizedKey(job.ID, job.FileName)
	if err := m.blobs.Put(ctx, resultKey, localizedJSON, common.ContentTypeJSON); err != nil {
		return pipelineResult{}, errs.NewStorage("put localized", err)
	}

	return pipelineResult{
		resultPath:       resultKey,
		originalContent:  original,
		localizedContent: string(localizedJSON),
	}, nil
}

// processBinary copies image and video payloads into the localized location;
// binary adaptation is not performed, matching the text-first transform scope.
func (m *Manager) processBinary(ctx context.Context, job *jobs.Job) (pipelineResult, error) {
	data, contentType, err := m.blobs.Get(ctx, job.FilePath)
	if err != nil {
		return pipelineResult{}, errs.NewStorage("get original", err)
	}

	resultKey := blob.LocalizedKey(job.ID, job.FileName)
	if err := m.blobs.Put(ctx, resultKey, data, contentType); err != nil {
		return pipelineResult{}, errs.NewStorage("put localized", err)
	}

	note := localize.Result{
		LocalizedText: "",
		CulturalNote:  fmt.Sprintf("binary %s asset copied; download via result path", job.FileType),
		Hashtags:      []string{},
		CallToAction:  "",
	}
	localizedJSON, err := json.Marshal(note)
	if err != nil {
		return pipelineResult{}, fmt.Errorf("marshal localized result: %w", err)
	}

	return pipelineResult{
		resultPath:       resultKey,
		originalContent:  "",
		localizedContent: string(localizedJSON),
	}, nil
}

// failJob converts a pipeline error into a Failed transition. Errors here are
// logged, not returned: the original cause takes precedence.
func (m *Manager) failJob(jobID string, cause error) {
	if err := m.store.SaveError(jobID, cause.Error()); err != nil {
		m.log.Error("could not mark job failed", "job_id", jobID, "err", err, "cause", cause)
		return
	}
	m.log.Info("job failed", "job_id", jobID, "err", cause)
}

func contextValue(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
