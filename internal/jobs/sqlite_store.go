package jobs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jo-hoe/content-localizer/internal/common"
	"github.com/jo-hoe/content-localizer/internal/errs"
)

// ErrContextLocked is returned by UpdateContext once processing has started;
// context amendments are only honored while a job is still Pending.
var ErrContextLocked = errors.New("job context can no longer be amended")

// SQLiteStore persists jobs in SQLite and publishes change records to an
// optional feed, mirroring a record store with a change stream.
type SQLiteStore struct {
	db   *sql.DB
	feed ChangePublisher
}

// NewSQLiteStore opens (and migrates) the job database at path. feed may be
// nil when no change-stream consumer exists.
func NewSQLiteStore(path string, feed ChangePublisher) (*SQLiteStore, error) {
	// Busy timeout to avoid SQLITE_BUSY in concurrent access.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, common.SQLiteBusyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, feed: feed}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		job_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		file_type TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		file_path TEXT NOT NULL,
		result_path TEXT,
		context_json TEXT,
		original_content TEXT,
		localized_content TEXT,
		error_message TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_user_created ON jobs(user_id, created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) publish(event EventType, id string) {
	if s.feed != nil {
		s.feed.Publish(ChangeRecord{Event: event, JobID: id})
	}
}

func (s *SQLiteStore) CreateJob(job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if job.ID == "" {
		return errors.New("job.ID is required")
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	ctxJSON := ""
	if job.ContextData != nil {
		b, err := json.Marshal(job.ContextData)
		if err != nil {
			return fmt.Errorf("marshal context data: %w", err)
		}
		ctxJSON = string(b)
	}

	_, err := s.db.Exec(
		`INSERT INTO jobs (job_id, user_id, status, file_type, file_name, file_size, file_path, context_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, string(job.Status), string(job.FileType), job.FileName, job.FileSize, job.FilePath,
		ctxJSON, job.CreatedAt.Format(time.RFC3339Nano), job.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	s.publish(EventInsert, job.ID)
	return nil
}

func (s *SQLiteStore) GetJob(id string) (*Job, error) {
	row := s.db.QueryRow(`SELECT job_id, user_id, status, file_type, file_name, file_size, file_path,
		result_path, context_json, original_content, localized_content, error_message, created_at, updated_at
		FROM jobs WHERE job_id = ?`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewNotFound("job", id)
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return job, nil
}

func (s *SQLiteStore) ListByUser(userID string) ([]Job, error) {
	rows, err := s.db.Query(`SELECT job_id, user_id, status, file_type, file_name, file_size, file_path,
		result_path, context_json, original_content, localized_content, error_message, created_at, updated_at
		FROM jobs WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) UpdateContext(id string, contextData map[string]any) error {
	b, err := json.Marshal(contextData)
	if err != nil {
		return fmt.Errorf("marshal context data: %w", err)
	}
	res, err := s.db.Exec(`UPDATE jobs SET context_json = ?, updated_at = ? WHERE job_id = ? AND status = ?`,
		string(b), nowString(), id, string(StatusPending))
	if err != nil {
		return fmt.Errorf("update context: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update context rows: %w", err)
	}
	if n == 0 {
		// Distinguish a missing job from one that already started processing.
		if _, err := s.GetJob(id); err != nil {
			return err
		}
		return ErrContextLocked
	}
	s.publish(EventUpdate, id)
	return nil
}

func (s *SQLiteStore) ClaimProcessing(id string) (bool, error) {
	res, err := s.db.Exec(`UPDATE jobs SET status = ?, updated_at = ? WHERE job_id = ? AND status = ?`,
		string(StatusProcessing), nowString(), id, string(StatusPending))
	if err != nil {
		return false, fmt.Errorf("claim processing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim processing rows: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	s.publish(EventUpdate, id)
	return true, nil
}

func (s *SQLiteStore) SaveResult(id string, resultPath, originalContent, localizedContent string) error {
	// Guarded by current status so a terminal job can never be rewritten.
	_, err := s.db.Exec(`UPDATE jobs
		SET status = ?, result_path = ?, original_content = ?, localized_content = ?, error_message = NULL, updated_at = ?
		WHERE job_id = ? AND status = ?`,
		string(StatusCompleted), resultPath, originalContent, localizedContent, nowString(), id, string(StatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	s.publish(EventUpdate, id)
	return nil
}

func (s *SQLiteStore) SaveError(id string, errMsg string) error {
	_, err := s.db.Exec(`UPDATE jobs
		SET status = ?, error_message = ?, updated_at = ?
		WHERE job_id = ? AND status = ?`,
		string(StatusFailed), errMsg, nowString(), id, string(StatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("save error: %w", err)
	}
	s.publish(EventUpdate, id)
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (*Job, error) {
	var job Job
	var status, fileType string
	var resultPath, ctxJSON, original, localized, errMsg sql.NullString
	var created, updated string

	if err := r.Scan(
		&job.ID,
		&job.UserID,
		&status,
		&fileType,
		&job.FileName,
		&job.FileSize,
		&job.FilePath,
		&resultPath,
		&ctxJSON,
		&original,
		&localized,
		&errMsg,
		&created,
		&updated,
	); err != nil {
		return nil, err
	}

	job.Status = Status(status)
	job.FileType = FileType(fileType)
	if resultPath.Valid {
		v := resultPath.String
		job.ResultPath = &v
	}
	if ctxJSON.Valid && ctxJSON.String != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(ctxJSON.String), &m); err == nil {
			job.ContextData = m
		}
	}
	if original.Valid {
		v := original.String
		job.OriginalContent = &v
	}
	if localized.Valid {
		v := localized.String
		job.LocalizedContent = &v
	}
	if errMsg.Valid {
		v := errMsg.String
		job.ErrorMessage = &v
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		job.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		job.UpdatedAt = t
	}
	return &job, nil
}
