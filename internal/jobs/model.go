package jobs

import (
	"time"
)

// Status represents the lifecycle state of a localization job.
// Transitions are forward-only: Pending -> Processing -> {Completed | Failed}.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
)

// Terminal reports whether no further automatic transition occurs.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FileType is the kind of asset a job localizes.
type FileType string

const (
	FileTypeText  FileType = "text"
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
)

// ValidFileType reports whether s is one of the supported file types.
func ValidFileType(s string) bool {
	switch FileType(s) {
	case FileTypeText, FileTypeImage, FileTypeVideo:
		return true
	}
	return false
}

// Job describes a single asset localization request.
type Job struct {
	ID               string         // UUIDv4, immutable
	UserID           string         // owner reference, used as a filter key only
	Status           Status         // current lifecycle state
	FileType         FileType       // text | image | video, immutable
	FileName         string         // original client file name
	FileSize         int64          // bytes, as declared at submission
	FilePath         string         // blob key of the original payload
	ResultPath       *string        // blob key of the localized payload, set on Completed
	ContextData      map[string]any // target language, tone, content type, notes
	OriginalContent  *string        // snapshot of processed content (text jobs)
	LocalizedContent *string        // structured localized result JSON, set on Completed
	ErrorMessage     *string        // set on Failed
	CreatedAt        time.Time
	UpdatedAt        time.Time // refreshed on every state transition
}

// Store defines persistence for Jobs and their lifecycle transitions.
type Store interface {
	CreateJob(job *Job) error
	GetJob(id string) (*Job, error)
	ListByUser(userID string) ([]Job, error)
	// UpdateContext replaces the job's context data. It only succeeds while
	// the job is still Pending; afterwards it returns ErrContextLocked.
	UpdateContext(id string, contextData map[string]any) error
	// ClaimProcessing performs the conditional Pending -> Processing write.
	// It returns false when another trigger already claimed the job or the
	// job is in a later state.
	ClaimProcessing(id string) (bool, error)
	// SaveResult atomically marks the job Completed with its result fields.
	// It is a no-op unless the job is currently Processing.
	SaveResult(id string, resultPath, originalContent, localizedContent string) error
	// SaveError marks the job Failed with the given message. It is a no-op
	// once the job is in a terminal state.
	SaveError(id string, errMsg string) error
	Close() error
}
