// Package input resolves a tagged job input into raw image bytes.
package input

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/comfyimg/worker-comfyui/internal/job"
)

// DefaultFetchTimeout bounds remote fetches when no timeout is configured
const DefaultFetchTimeout = 30 * time.Second

// Errors
var (
	ErrUnsupportedKind = errors.New("unsupported input type")
	ErrDecode          = errors.New("invalid base64 data")
	ErrFetch           = errors.New("fetch failed")
)

// Resolver materializes job input descriptors into bytes
type Resolver struct {
	client *http.Client
}

// New returns a new Resolver with the given fetch timeout
func New(fetchTimeout time.Duration) *Resolver {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}

	return &Resolver{
		client: &http.Client{
			Timeout: fetchTimeout,
		},
	}
}

// Resolve returns the image bytes for a descriptor. Base64 payloads are
// decoded in place, url and s3_url payloads are fetched with a single GET.
// Pre-signed s3 urls carry their authorization in the query string, so no
// additional signing happens here. Failures propagate immediately, the
// resolver never retries.
func (r *Resolver) Resolve(ctx context.Context, descriptor job.InputDescriptor) ([]byte, error) {
	switch descriptor.Kind {
	case job.InputBase64:
		data, err := base64.StdEncoding.DecodeString(descriptor.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrDecode, err)
		}

		return data, nil
	case job.InputURL, job.InputS3URL:
		return r.fetch(ctx, descriptor.Payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, descriptor.Kind)
	}
}

func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFetch, err)
	}

	res, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFetch, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrFetch, res.Status)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFetch, err)
	}

	return data, nil
}
