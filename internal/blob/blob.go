package blob

import (
	"context"
)

// Store is a key-value blob store holding original and localized payloads.
// Keys follow the layout jobs/{jobId}/original/{name} and
// jobs/{jobId}/localized/{name}.
type Store interface {
	// Get returns the payload and its content type.
	Get(ctx context.Context, key string) ([]byte, string, error)
	// Put writes the payload under key, creating parent structure as needed.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	// DownloadURL returns a client-resolvable URL for key. The expiry is
	// advisory; URL mechanics are the storage backend's concern.
	DownloadURL(key string) string
}

// OriginalKey returns the blob key for a job's original payload.
func OriginalKey(jobID, fileName string) string {
	return "jobs/" + jobID + "/original/" + fileName
}

// LocalizedKey returns the blob key for a job's localized payload, derived
// from the original file name with a "_localized" suffix before the
// extension.
func LocalizedKey(jobID, fileName string) string {
	return "jobs/" + jobID + "/localized/" + localizedName(fileName)
}

func localizedName(fileName string) string {
	for i := len(fileName) - 1; i > 0; i-- {
		if fileName[i] == '.' {
			return fileName[:i] + "_localized" + fileName[i:]
		}
	}
	return fileName + "_localized"
}
