// Package media uploads user supplied images to object storage.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	ErrNotConfigured = errors.New("image host not configured")
	ErrInvalidImage  = errors.New("invalid image data")
)

// ImageHost stores an image and returns its public URL.
type ImageHost interface {
	Upload(ctx context.Context, image string) (string, error)
}

type Config struct {
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Endpoint  string
	PublicURL string
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ImageHost uploads images to an S3 compatible bucket.
type S3ImageHost struct {
	client    objectPutter
	bucket    string
	publicURL string
	now       func() time.Time
}

// NewS3ImageHost builds the S3 client from static credentials. A custom
// endpoint switches to path-style addressing for MinIO.
func NewS3ImageHost(ctx context.Context, c Config) (*S3ImageHost, error) {
	if c.AccessKey == "" || c.Bucket == "" {
		return nil, ErrNotConfigured
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3ImageHost{
		client:    client,
		bucket:    c.Bucket,
		publicURL: publicBase(c),
		now:       time.Now,
	}, nil
}

func publicBase(c Config) string {
	switch {
	case c.PublicURL != "":
		return strings.TrimRight(c.PublicURL, "/")
	case c.Endpoint != "":
		return strings.TrimRight(c.Endpoint, "/") + "/" + c.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, c.Region)
	}
}

// Upload accepts a base64 data URL. Values that are already http(s) URLs
// are returned unchanged.
func (h *S3ImageHost) Upload(ctx context.Context, image string) (string, error) {
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image, nil
	}

	contentType, data, err := decodeDataURL(image)
	if err != nil {
		return "", err
	}

	key := h.objectKey(contentType)
	_, err = h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return h.publicURL + "/" + key, nil
}

func (h *S3ImageHost) objectKey(contentType string) string {
	d := h.now().UTC()
	ext := strings.TrimPrefix(contentType, "image/")
	return fmt.Sprintf("images/%d/%02d/%02d/%s.%s", d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}

// decodeDataURL parses "data:image/<type>;base64,<payload>".
func decodeDataURL(raw string) (string, []byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok || !strings.HasPrefix(raw, "data:") {
		return "", nil, ErrInvalidImage
	}
	contentType, encoding, _ := strings.Cut(meta, ";")
	if !strings.HasPrefix(contentType, "image/") || encoding != "base64" {
		return "", nil, ErrInvalidImage
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return "", nil, ErrInvalidImage
	}
	return contentType, data, nil
}

// Disabled rejects every upload. Used when no bucket is configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}
