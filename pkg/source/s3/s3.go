// Package s3 provides an S3-backed data source, for serving boot images
// and other artifacts straight out of an object store.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/dtftp/pkg/source"
)

// Provider serves objects from one S3 bucket, optionally below a key
// prefix. The requested TFTP path is used directly as the object key, so
// the bucket layout mirrors the served tree.
type Provider struct {
	client    *awss3.Client
	bucket    string
	keyPrefix string
}

// Config contains the settings for an S3 provider.
type Config struct {
	// Client is the configured S3 client.
	Client *awss3.Client

	// Bucket is the bucket name. Required; the bucket must already exist.
	Bucket string

	// KeyPrefix is prepended to every object key, e.g. "tftp/" maps the
	// request "boot/pxelinux.0" to the key "tftp/boot/pxelinux.0".
	KeyPrefix string
}

// New creates an S3 provider and verifies bucket access.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &Provider{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// Open fetches the object for path. The returned source streams the object
// body; the size comes from the GetObject response, so tsize never needs a
// second round trip.
func (p *Provider) Open(ctx context.Context, path string) (source.Source, error) {
	key := p.objectKey(path)

	result, err := p.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%q: %w", path, source.ErrNotFound)
		}
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}

	size := int64(-1)
	if result.ContentLength != nil {
		size = *result.ContentLength
	}

	return &objectSource{body: result.Body, size: size}, nil
}

func (p *Provider) objectKey(path string) string {
	return p.keyPrefix + strings.TrimPrefix(path, "/")
}

type objectSource struct {
	body   io.ReadCloser
	size   int64
	closed bool
}

func (s *objectSource) Read(p []byte) (int, error) { return s.body.Read(p) }

func (s *objectSource) Size() (int64, bool) {
	if s.size < 0 {
		return 0, false
	}
	return s.size, true
}

func (s *objectSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
