package blob

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jo-hoe/content-localizer/internal/common"
	"github.com/jo-hoe/content-localizer/internal/errs"
)

// FSStore is a filesystem-backed blob store. Content types are kept in a
// sidecar file next to each payload so copies preserve them.
type FSStore struct {
	baseDir string
	urlBase string
}

const ctypeSuffix = ".ctype"

var _ Store = (*FSStore)(nil)

// NewFSStore stores blobs under baseDir/blobs. urlBase prefixes download
// URLs, e.g. "/blobs".
func NewFSStore(baseDir, urlBase string) *FSStore {
	if urlBase == "" {
		urlBase = common.PathBlobs
	}
	return &FSStore{
		baseDir: filepath.Join(baseDir, common.BlobsDirName),
		urlBase: strings.TrimRight(urlBase, "/"),
	}
}

func (s *FSStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if strings.Contains(clean, "..") || clean == "/" {
		return "", errs.NewValidation("key", "invalid blob key")
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(clean)), nil
}

func (s *FSStore) Get(_ context.Context, key string) ([]byte, string, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(p) // #nosec G304 - path resolved against the store base dir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", errs.NewNotFound("blob", key)
		}
		return nil, "", errs.NewStorage("get", err)
	}
	return data, s.contentType(p), nil
}

func (s *FSStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return errs.NewStorage("put", fmt.Errorf("ensure dir: %w", err))
	}
	if err := os.WriteFile(p, data, 0o640); err != nil {
		return errs.NewStorage("put", err)
	}
	if contentType != "" {
		if err := os.WriteFile(p+ctypeSuffix, []byte(contentType), 0o640); err != nil {
			return errs.NewStorage("put", fmt.Errorf("write content type: %w", err))
		}
	}
	return nil
}

func (s *FSStore) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errs.NewStorage("stat", err)
	}
	return true, nil
}

func (s *FSStore) DownloadURL(key string) string {
	return s.urlBase + "/" + strings.TrimLeft(path.Clean("/"+key), "/")
}

func (s *FSStore) contentType(p string) string {
	if b, err := os.ReadFile(p + ctypeSuffix); err == nil && len(b) > 0 { // #nosec G304
		return strings.TrimSpace(string(b))
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(p))); ct != "" {
		return ct
	}
	return common.ContentTypeOctetStream
}
