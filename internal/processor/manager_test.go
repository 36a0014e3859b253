package processor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jo-hoe/content-localizer/internal/blob"
	"github.com/jo-hoe/content-localizer/internal/errs"
	"github.com/jo-hoe/content-localizer/internal/jobs"
	"github.com/jo-hoe/content-localizer/internal/localize"
)

type memStore struct {
	mu          sync.Mutex
	jobs        map[string]*jobs.Job
	resultSaves int
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]*jobs.Job)}
}

func (s *memStore) CreateJob(job *jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *job
	if c.Status == "" {
		c.Status = jobs.StatusPending
	}
	s.jobs[job.ID] = &c
	return nil
}

func (s *memStore) GetJob(id string) (*jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		c := *j
		return &c, nil
	}
	return nil, errs.NewNotFound("job", id)
}

func (s *memStore) ListByUser(userID string) ([]jobs.Job, error) {
	return nil, nil
}

func (s *memStore) UpdateContext(id string, contextData map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return errs.NewNotFound("job", id)
	}
	if j.Status != jobs.StatusPending {
		return jobs.ErrContextLocked
	}
	j.ContextData = contextData
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memStore) ClaimProcessing(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != jobs.StatusPending {
		return false, nil
	}
	j.Status = jobs.StatusProcessing
	j.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *memStore) SaveResult(id string, resultPath, originalContent, localizedContent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != jobs.StatusProcessing {
		return nil
	}
	s.resultSaves++
	j.Status = jobs.StatusCompleted
	rp := resultPath
	oc := originalContent
	lc := localizedContent
	j.ResultPath = &rp
	j.OriginalContent = &oc
	j.LocalizedContent = &lc
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memStore) SaveError(id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != jobs.StatusProcessing {
		return nil
	}
	j.Status = jobs.StatusFailed
	em := errMsg
	j.ErrorMessage = &em
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memStore) Close() error { return nil }

type memBlob struct {
	mu     sync.Mutex
	data   map[string][]byte
	ctypes map[string]string
	puts   int
}

func newMemBlob() *memBlob {
	return &memBlob{data: make(map[string][]byte), ctypes: make(map[string]string)}
}

func (b *memBlob) Get(_ context.Context, key string) ([]byte, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.data[key]
	if !ok {
		return nil, "", errs.NewNotFound("blob", key)
	}
	return d, b.ctypes[key], nil
}

func (b *memBlob) Put(_ context.Context, key string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts++
	b.data[key] = data
	b.ctypes[key] = contentType
	return nil
}

func (b *memBlob) Exists(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.data[key]
	return ok, nil
}

func (b *memBlob) DownloadURL(key string) string { return "/blobs/" + key }

type transformMock struct {
	res localize.Result
	err error
}

func (t *transformMock) Localize(ctx context.Context, req localize.Request) (localize.Result, error) {
	if t.err != nil {
		return localize.Result{}, t.err
	}
	return t.res, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func textJob(id string) *jobs.Job {
	return &jobs.Job{
		ID:       id,
		UserID:   "user-1",
		Status:   jobs.StatusPending,
		FileType: jobs.FileTypeText,
		FileName: "post.txt",
		FileSize: 10,
		FilePath: blob.OriginalKey(id, "post.txt"),
		ContextData: map[string]any{
			"targetLanguage": "ja",
			"tone":           "casual",
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestProcessJob_TextSuccess(t *testing.T) {
	store := newMemStore()
	blobs := newMemBlob()
	job := textJob("job-1")
	_ = store.CreateJob(job)
	_ = blobs.Put(context.Background(), job.FilePath, []byte("hello world"), "text/plain")

	transform := &transformMock{res: localize.Result{
		LocalizedText: "konnichiwa world",
		CulturalNote:  "greeting adapted",
		Hashtags:      []string{"#jp"},
		CallToAction:  "motto yomu",
	}}
	m := New(discardLogger(), store, blobs, transform)

	if err := m.ProcessJob(context.Background(), job.ID); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}

	got, _ := store.GetJob(job.ID)
	if got.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s, want Completed", got.Status)
	}
	if got.ResultPath == nil || got.LocalizedContent == nil {
		t.Fatalf("completed job missing result fields: %+v", got)
	}
	if got.OriginalContent == nil || *got.OriginalContent != "hello world" {
		t.Fatalf("original content not captured: %v", got.OriginalContent)
	}

	var res localize.Result
	if err := json.Unmarshal([]byte(*got.LocalizedContent), &res); err != nil {
		t.Fatalf("localized content not json: %v", err)
	}
	if res.LocalizedText != "konnichiwa world" {
		t.Fatalf("unexpected localized text %q", res.LocalizedText)
	}

	data, _, err := blobs.Get(context.Background(), *got.ResultPath)
	if err != nil {
		t.Fatalf("localized blob missing: %v", err)
	}
	if !json.Valid(data) {
		t.Fatalf("localized blob not json")
	}
}

func TestProcessJob_TransformErrorFallsBackToCompleted(t *testing.T) {
	store := newMemStore()
	blobs := newMemBlob()
	job := textJob("job-2")
	_ = store.CreateJob(job)
	_ = blobs.Put(context.Background(), job.FilePath, []byte("original text"), "text/plain")

	m := New(discardLogger(), store, blobs, &transformMock{err: errors.New("model unavailable")})

	if err := m.ProcessJob(context.Background(), job.ID); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}

	got, _ := store.GetJob(job.ID)
	if got.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s, want Completed (transform errors must not fail the job)", got.Status)
	}
	var res localize.Result
	if err := json.Unmarshal([]byte(*got.LocalizedContent), &res); err != nil {
		t.Fatalf("localized content not json: %v", err)
	}
	if !localize.IsFallback(res) {
		t.Fatalf("expected fallback marker, got note %q", res.CulturalNote)
	}
	if res.LocalizedText != "original text" {
		t.Fatalf("fallback must preserve original content, got %q", res.LocalizedText)
	}
}

func TestProcessJob_MissingFilePathFails(t *testing.T) {
	store := newMemStore()
	blobs := newMemBlob()
	job := textJob("job-3")
	job.FilePath = ""
	_ = store.CreateJob(job)

	m := New(discardLogger(), store, blobs, &transformMock{})

	if err := m.ProcessJob(context.Background(), job.ID); err == nil {
		t.Fatalf("expected error")
	}
	got, _ := store.GetJob(job.ID)
	if got.Status != jobs.StatusFailed {
		t.Fatalf("status = %s, want Failed", got.Status)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "filePath") {
		t.Fatalf("error message should name the missing field: %v", got.ErrorMessage)
	}
	if got.ResultPath != nil {
		t.Fatalf("failed job must not have a result path")
	}
}

func TestProcessJob_UnknownFileTypeFails(t *testing.T) {
	store := newMemStore()
	blobs := newMemBlob()
	job := textJob("job-4")
	job.FileType = jobs.FileType("audio")
	_ = store.CreateJob(job)
	_ = blobs.Put(context.Background(), job.FilePath, []byte("x"), "text/plain")

	m := New(discardLogger(), store, blobs, &transformMock{})

	err := m.ProcessJob(context.Background(), job.ID)
	if err == nil || !errs.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, _ := store.GetJob(job.ID)
	if got.Status != jobs.StatusFailed {
		t.Fatalf("status = %s, want Failed", got.Status)
	}
}

func TestProcessJob_BinaryCopy(t *testing.T) {
	store := newMemStore()
	blobs := newMemBlob()
	job := textJob("job-5")
	job.FileType = jobs.FileTypeImage
	job.FileName = "banner.png"
	job.FilePath = blob.OriginalKey(job.ID, job.FileName)
	_ = store.CreateJob(job)
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	_ = blobs.Put(context.Background(), job.FilePath, payload, "image/png")

	m := New(discardLogger(), store, blobs, &transformMock{})

	if err := m.ProcessJob(context.Background(), job.ID); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	got, _ := store.GetJob(job.ID)
	if got.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s, want Completed", got.Status)
	}
	data, ctype, err := blobs.Get(context.Background(), *got.ResultPath)
	if err != nil {
		t.Fatalf("localized blob missing: %v", err)
	}
	if string(data) != string(payload) || ctype != "image/png" {
		t.Fatalf("binary payload not copied intact: ctype=%s", ctype)
	}
	if !strings.Contains(*got.ResultPath, "_localized") {
		t.Fatalf("result path missing localized suffix: %s", *got.ResultPath)
	}
}

func TestProcessJob_TerminalJobIsNoop(t *testing.T) {
	store := newMemStore()
	blobs := newMemBlob()
	job := textJob("job-6")
	job.Status = jobs.StatusCompleted
	_ = store.CreateJob(job)

	m := New(discardLogger(), store, blobs, &transformMock{})

	if err := m.ProcessJob(context.Background(), job.ID); err != nil {
		t.Fatalf("terminal job must be a no-op, got %v", err)
	}
	if blobs.puts != 0 {
		t.Fatalf("no blob writes expected for terminal job, got %d", blobs.puts)
	}
}

func TestProcessJob_UnknownJob(t *testing.T) {
	m := New(discardLogger(), newMemStore(), newMemBlob(), &transformMock{})
	err := m.ProcessJob(context.Background(), "nope")
	if err == nil || !errs.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProcessJob_ConcurrentTriggersProcessOnce(t *testing.T) {
	store := newMemStore()
	blobs := newMemBlob()
	job := textJob("job-7")
	_ = store.CreateJob(job)
	_ = blobs.Put(context.Background(), job.FilePath, []byte("race me"), "text/plain")

	m := New(discardLogger(), store, blobs, &transformMock{res: localize.Result{LocalizedText: "ok"}})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.ProcessJob(context.Background(), job.ID)
		}()
	}
	wg.Wait()

	got, _ := store.GetJob(job.ID)
	if got.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s, want Completed", got.Status)
	}
	store.mu.Lock()
	saves := store.resultSaves
	store.mu.Unlock()
	if saves != 1 {
		t.Fatalf("result saved %d times, want exactly 1", saves)
	}
	blobs.mu.Lock()
	puts := blobs.puts
	blobs.mu.Unlock()
	if puts != 2 { // one original seeded by the test, one localized write
		t.Fatalf("blob writes = %d, want 2 (no duplicate result write)", puts)
	}
}
