package client

import (
	"context"
	"errors"
	"time"

	"github.com/jo-hoe/content-localizer/internal/common"
)

// ErrPollTimeout is returned when the attempt budget runs out before a
// terminal status was observed. The job may still be processing server-side;
// only client-side waiting stops. Distinct from a Failed job, which is a
// normal result.
var ErrPollTimeout = errors.New("job did not reach a terminal status within the polling budget")

// PollOptions tunes the status polling loop.
type PollOptions struct {
	Interval    time.Duration
	MaxAttempts int
	// OnUpdate, when set, is called with each observed job state.
	OnUpdate func(job *Job)
}

func (o *PollOptions) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = 2 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = common.DefaultPollMaxAttempts
	}
}

// PollUntilDone fetches the job status at a fixed interval until it observes
// Completed or Failed, the attempt budget is spent, or ctx is cancelled.
// Completion is only ever reported from an observed status, never inferred
// from elapsed time. Cancelling ctx stops polling but not server-side work.
func (c *Client) PollUntilDone(ctx context.Context, jobID string, opts PollOptions) (*Job, error) {
	opts.applyDefaults()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		job, err := c.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if opts.OnUpdate != nil {
			opts.OnUpdate(job)
		}
		if job.Terminal() {
			return job, nil
		}
	}
	return nil, ErrPollTimeout
}

// SubmitAndWait runs the full client flow: submit, upload the payload,
// trigger processing, then poll to a terminal state.
func (c *Client) SubmitAndWait(ctx context.Context, req SubmitRequest, payload []byte, contentType string, opts PollOptions) (*Job, error) {
	sub, err := c.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.UploadPayload(ctx, sub.UploadURL, payload, contentType); err != nil {
		return nil, err
	}
	if err := c.TriggerProcessing(ctx, sub.JobID); err != nil {
		return nil, err
	}
	return c.PollUntilDone(ctx, sub.JobID, opts)
}
