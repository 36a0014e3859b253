package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jo-hoe/content-localizer/internal/common"
)

// Client talks to the localizer HTTP API from the outside: it submits jobs,
// uploads payloads, triggers processing and polls status.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a Client for the API at baseURL.
func New(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// SubmitRequest describes a new localization job.
type SubmitRequest struct {
	FileName    string         `json:"fileName"`
	FileType    string         `json:"fileType"`
	FileSize    int64          `json:"fileSize"`
	UserID      string         `json:"userId"`
	ContextData map[string]any `json:"contextData"`
}

// SubmitResult is the server's answer to a submission.
type SubmitResult struct {
	Success   bool   `json:"success"`
	JobID     string `json:"jobId"`
	UploadURL string `json:"uploadUrl"`
	S3Key     string `json:"s3Key"`
	ExpiresIn int    `json:"expiresIn"`
}

// Job is the client-side view of a job returned by /results.
type Job struct {
	JobID            string          `json:"jobId"`
	Status           string          `json:"status"`
	FileType         string          `json:"fileType"`
	FileName         string          `json:"fileName"`
	FileSize         int64           `json:"fileSize"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	ContextData      map[string]any  `json:"contextData"`
	OriginalContent  *string         `json:"originalContent"`
	LocalizedContent json.RawMessage `json:"localizedContent"`
	OriginalFileURL  string          `json:"originalFileUrl"`
	LocalizedFileURL string          `json:"localizedFileUrl"`
	ErrorMessage     string          `json:"errorMessage"`
}

// Terminal reports whether the job reached Completed or Failed.
func (j *Job) Terminal() bool {
	return j.Status == "Completed" || j.Status == "Failed"
}

// HistoryEntry is one row of the user's job history.
type HistoryEntry struct {
	JobID       string         `json:"jobId"`
	FileName    string         `json:"fileName"`
	FileType    string         `json:"fileType"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	ContextData map[string]any `json:"contextData"`
}

type apiError struct {
	Error string `json:"error"`
}

// Submit creates the job record and returns the upload target.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	var out SubmitResult
	if err := c.doJSON(ctx, http.MethodPost, common.PathUpload, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadPayload PUTs the payload to the upload URL returned by Submit.
// Relative URLs are resolved against the client base URL.
func (c *Client) UploadPayload(ctx context.Context, uploadURL string, data []byte, contentType string) error {
	target, err := c.resolve(uploadURL)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload payload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload payload: status %d", resp.StatusCode)
	}
	return nil
}

// TriggerProcessing requests immediate processing of the job (the direct
// invocation path). Errors here surface as submission failures.
func (c *Client) TriggerProcessing(ctx context.Context, jobID string) error {
	return c.doJSON(ctx, http.MethodPost, common.PathProcess+"/"+jobID, struct{}{}, nil)
}

// GetJob fetches the current job record.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var out struct {
		Success bool `json:"success"`
		Job     Job  `json:"job"`
	}
	if err := c.doJSON(ctx, http.MethodGet, common.PathResults+"/"+jobID, nil, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// UpdateContext amends the job's localization context before processing starts.
func (c *Client) UpdateContext(ctx context.Context, jobID string, contextData map[string]any) error {
	body := map[string]any{"contextData": contextData}
	return c.doJSON(ctx, http.MethodPost, common.PathUpdateContext+"/"+jobID, body, nil)
}

// ListJobs returns the user's job history, newest first.
func (c *Client) ListJobs(ctx context.Context, userID string) ([]HistoryEntry, error) {
	var out struct {
		Success bool           `json:"success"`
		Jobs    []HistoryEntry `json:"jobs"`
	}
	path := common.PathJobs + "?userId=" + url.QueryEscape(userID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

func (c *Client) resolve(ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	if !strings.HasPrefix(ref, "/") {
		return "", fmt.Errorf("unsupported url %q", ref)
	}
	return c.baseURL + ref, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", common.ContentTypeJSON)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(respBytes, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBytes, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
