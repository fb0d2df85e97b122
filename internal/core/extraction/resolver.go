package extraction

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hireloop/hireloop/internal/core"
)

var _ core.DocumentFetcher = (*Resolver)(nil)

// Resolver turns a document storage reference into raw bytes. S3 URLs go
// through the object client; other http(s) URLs are fetched with a bounded
// client; anything else is treated as a local path.
type Resolver struct {
	obj  core.ObjectClient
	http *http.Client
}

func NewResolver(obj core.ObjectClient) *Resolver {
	return &Resolver{
		obj:  obj,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *Resolver) Fetch(ctx context.Context, storageURL string) ([]byte, error) {
	switch {
	case isS3URL(storageURL):
		bucket, key := parseS3URL(storageURL)
		rc, err := r.obj.GetObjectReader(ctx, bucket, key)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", storageURL, core.ErrDocumentNotFound)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", storageURL, err)
		}
		return data, nil

	case strings.HasPrefix(storageURL, "http://") || strings.HasPrefix(storageURL, "https://"):
		return r.fetchHTTP(ctx, storageURL)

	default:
		data, err := os.ReadFile(storageURL)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", storageURL, core.ErrDocumentNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", storageURL, err)
		}
		return data, nil
	}
}

func (r *Resolver) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, core.ErrExternalUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, core.ErrDocumentNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d: %w", rawURL, resp.StatusCode, core.ErrExternalUnavailable)
	}
	return io.ReadAll(resp.Body)
}

func isS3URL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.Contains(u.Host, ".s3.") && strings.HasSuffix(u.Host, ".amazonaws.com")
}

// parseS3URL extracts the bucket and key from a virtual-hosted-style S3 URL.
// Example: https://my-bucket.s3.us-east-2.amazonaws.com/path/to/file.pdf
func parseS3URL(u string) (bucket, key string) {
	hostPath := strings.SplitN(strings.TrimPrefix(u, "https://"), "/", 2)
	host := hostPath[0]
	if len(hostPath) == 2 {
		key = hostPath[1]
	}
	parts := strings.Split(host, ".")
	if len(parts) > 0 {
		bucket = parts[0]
	}
	return bucket, key
}
