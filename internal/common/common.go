package common

// Shared constants to enforce DRY and avoid magic strings/numbers.

// HTTP headers and content types
const (
	ContentTypeJSON        = "application/json"
	ContentTypeOctetStream = "application/octet-stream"
)

// API paths
const (
	PathHealthz       = "/healthz"
	PathUpload        = "/upload"
	PathResults       = "/results"
	PathJobs          = "/jobs"
	PathProcess       = "/process"
	PathUpdateContext = "/update-context"
	PathBlobs         = "/blobs"
)

// Defaults and limits
const (
	DefaultFeedCapacity    = 256
	DefaultBatchSize       = 16
	DefaultPollMaxAttempts = 30
	DefaultUploadURLTTL    = 3600 // seconds, advisory
	SQLiteBusyTimeoutMS    = 5000
)

// Subdirectory names inside the storage dir
const (
	BlobsDirName = "blobs"
)

// Context data keys consumed by the transform step.
const (
	ContextKeyTargetLanguage = "targetLanguage"
	ContextKeyTone           = "tone"
	ContextKeyContentType    = "contentType"
	ContextKeySpecialNotes   = "specialNotes"
)
