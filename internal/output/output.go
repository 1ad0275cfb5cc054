// Package output publishes generated images, either to object storage or
// inline as base64.
package output

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/comfyimg/worker-comfyui/internal/job"
	"github.com/comfyimg/worker-comfyui/internal/storage"
	"github.com/google/uuid"
)

// Publisher converts raw image bytes into output descriptors
type Publisher struct {
	uploader storage.Uploader
}

// New returns a new Publisher. A nil uploader means object storage is not
// configured and every publish falls back to inline base64.
func New(uploader storage.Uploader) *Publisher {
	return &Publisher{
		uploader: uploader,
	}
}

// Publish turns one generated image into an output descriptor. Without an
// uploader it encodes inline, which never fails and performs no I/O. With an
// uploader it stores the image and returns its URL, and surfaces any upload
// failure as an error-kind descriptor instead of silently degrading to
// base64, so a misconfigured bucket is visible to the operator.
func (p *Publisher) Publish(ctx context.Context, jobID string, index int, data []byte) job.OutputDescriptor {
	if p.uploader == nil {
		return job.OutputDescriptor{
			Kind: job.OutputBase64,
			Data: base64.StdEncoding.EncodeToString(data),
		}
	}

	url, err := p.uploader.Upload(ctx, objectKey(jobID, index), data)
	if err != nil {
		// The storage provider already wraps with upload context
		return job.Error(err.Error())
	}

	return job.OutputDescriptor{
		Kind: job.OutputS3URL,
		Data: url,
	}
}

// objectKey returns the storage key for one output image. The index keeps
// sibling outputs of a job ordered, the random suffix keeps keys unique when
// concurrent invocations share a job id.
func objectKey(jobID string, index int) string {
	return fmt.Sprintf("%s/%d-%s.png", jobID, index, uuid.NewString()[:8])
}
