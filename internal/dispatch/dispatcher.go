package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/jo-hoe/content-localizer/internal/blob"
	"github.com/jo-hoe/content-localizer/internal/common"
	"github.com/jo-hoe/content-localizer/internal/jobs"
)

// JobProcessor is the single lifecycle entry point both trigger modes
// converge on.
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID string) error
}

// Dispatcher funnels change-feed batches and direct invocations into one
// JobProcessor call per new job.
type Dispatcher struct {
	log       *slog.Logger
	store     jobs.Store
	blobs     blob.Store
	proc      JobProcessor
	batchSize int
	wg        sync.WaitGroup
}

// New creates a Dispatcher.
func New(log *slog.Logger, store jobs.Store, blobs blob.Store, proc JobProcessor, batchSize int) *Dispatcher {
	if batchSize <= 0 {
		batchSize = common.DefaultBatchSize
	}
	return &Dispatcher{
		log:       log,
		store:     store,
		blobs:     blobs,
		proc:      proc,
		batchSize: batchSize,
	}
}

// HandleBatch processes one change-feed batch. Only insert events trigger
// processing; the manager's own update writes never re-trigger. Records are
// handled independently: one failing record does not stop the rest, and its
// job ends up Failed through the processor rather than silently dropped.
func (d *Dispatcher) HandleBatch(ctx context.Context, records []jobs.ChangeRecord) {
	for _, rec := range records {
		if rec.Event != jobs.EventInsert {
			continue
		}
		if !d.payloadReady(ctx, rec.JobID) {
			// The insert can arrive before the client finished uploading the
			// payload. The job stays Pending; the direct trigger that follows
			// the upload picks it up.
			continue
		}
		if err := d.proc.ProcessJob(ctx, rec.JobID); err != nil {
			d.log.Error("change-feed record processing failed", "job_id", rec.JobID, "err", err)
		}
	}
}

// HandleDirect is the direct-invocation trigger. It verifies the job exists,
// then processes it in the background so the caller is not held for the
// transform; request cancellation does not cancel server-side processing.
func (d *Dispatcher) HandleDirect(ctx context.Context, jobID string) error {
	if _, err := d.store.GetJob(jobID); err != nil {
		return err
	}
	bgCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.proc.ProcessJob(bgCtx, jobID); err != nil {
			d.log.Error("direct invocation processing failed", "job_id", jobID, "err", err)
		}
	}()
	return nil
}

// Run drains the change feed into batches until ctx ends or the feed closes.
func (d *Dispatcher) Run(ctx context.Context, feed *jobs.Feed) {
	for {
		rec, ok := feed.Next(ctx)
		if !ok {
			d.log.Debug("change feed consumer stopping")
			return
		}
		batch := append([]jobs.ChangeRecord{rec}, feed.DrainPending(d.batchSize-1)...)
		d.HandleBatch(ctx, batch)
	}
}

// payloadReady reports whether the job's original blob has been uploaded.
// Jobs without a file path proceed so the manager records the validation
// failure instead of the record being silently dropped.
func (d *Dispatcher) payloadReady(ctx context.Context, jobID string) bool {
	job, err := d.store.GetJob(jobID)
	if err != nil {
		d.log.Warn("change-feed record references unknown job", "job_id", jobID, "err", err)
		return false
	}
	if job.Status != jobs.StatusPending {
		return false
	}
	if strings.TrimSpace(job.FilePath) == "" {
		return true
	}
	ok, err := d.blobs.Exists(ctx, job.FilePath)
	if err != nil {
		d.log.Warn("blob existence check failed", "job_id", jobID, "err", err)
		return true
	}
	return ok
}

// Wait blocks until in-flight direct invocations finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
