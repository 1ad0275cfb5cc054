// Package s3 implements an image uploader backed by any s3-compatible
// object storage endpoint.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/comfyimg/worker-comfyui/internal/config"
	"github.com/comfyimg/worker-comfyui/internal/storage"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

const contentType = "image/png"

// Uploader implements an s3-compatible image uploader
type Uploader struct {
	s3       *s3.S3
	bucket   string
	endpoint string
}

// New returns a new Uploader instance for the given storage configuration
func New(cfg config.Storage) (*Uploader, error) {
	sess, err := session.NewSession(&aws.Config{
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Endpoint:         aws.String(cfg.EndpointURL),
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(true), // Path-style addressing works for minio and the like as well
	})
	if err != nil {
		return nil, err
	}

	return &Uploader{
		s3:       s3.New(sess),
		bucket:   cfg.Bucket,
		endpoint: strings.TrimRight(cfg.EndpointURL, "/"),
	}, nil
}

// Upload stores the image data under the given key and returns the object URL
func (u *Uploader) Upload(ctx context.Context, key string, data []byte) (string, error) {
	object := s3.PutObjectInput{
		Bucket:      &u.bucket,
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	if _, err := u.s3.PutObjectWithContext(ctx, &object); err != nil {
		return "", fmt.Errorf("%w: %s", storage.ErrUpload, err)
	}

	return fmt.Sprintf("%s/%s/%s", u.endpoint, u.bucket, key), nil
}

// Check verifies that the configured bucket is reachable
func (u *Uploader) Check(ctx context.Context) error {
	_, err := u.s3.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: &u.bucket,
	})

	return err
}
