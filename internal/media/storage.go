// Package media reclaims storage objects and rows for unreferenced media.
package media

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ObjectStorage is the external object-storage collaborator. Upload is
// handled by the admin flow and is not part of this interface.
type ObjectStorage interface {
	// DeleteByURL removes the object backing the given file URL.
	DeleteByURL(ctx context.Context, fileURL string) error
}

// HTTPStorage deletes objects from an S3-compatible endpoint by issuing a
// DELETE against the object URL.
type HTTPStorage struct {
	client *http.Client
	bucket string
}

// NewHTTPStorage creates a storage client. When bucket is non-empty, URLs
// that do not contain it are silently ignored: they belong to someone else.
func NewHTTPStorage(bucket string) *HTTPStorage {
	return &HTTPStorage{
		client: &http.Client{Timeout: 30 * time.Second},
		bucket: bucket,
	}
}

// DeleteByURL implements ObjectStorage.
func (s *HTTPStorage) DeleteByURL(ctx context.Context, fileURL string) error {
	if s.bucket != "" && !strings.Contains(fileURL, s.bucket) {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fileURL, nil)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	defer resp.Body.Close()

	// A missing object is already the state we want.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delete object: %s returned status %d", fileURL, resp.StatusCode)
	}
	return nil
}
