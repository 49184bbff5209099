package media

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func newTestHost(p *fakePutter) *S3ImageHost {
	return &S3ImageHost{
		client:    p,
		bucket:    "dm-media",
		publicURL: "https://cdn.example.com",
		now:       func() time.Time { return time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC) },
	}
}

func TestUploadDataURL(t *testing.T) {
	p := &fakePutter{}
	host := newTestHost(p)

	url, err := host.Upload(context.Background(), "data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)

	assert.Regexp(t, `^https://cdn\.example\.com/images/2024/03/07/[0-9a-f-]{36}\.png$`, url)
	assert.Equal(t, "dm-media", *p.input.Bucket)
	assert.Equal(t, "image/png", *p.input.ContentType)
	assert.Equal(t, []byte("hello"), p.body)
}

func TestUploadPassesThroughURLs(t *testing.T) {
	p := &fakePutter{}
	url, err := newTestHost(p).Upload(context.Background(), "https://example.com/a.png")

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.png", url)
	assert.Nil(t, p.input)
}

func TestUploadRejectsBadPayloads(t *testing.T) {
	host := newTestHost(&fakePutter{})
	for _, raw := range []string{
		"not an image",
		"data:text/plain;base64,aGVsbG8=",
		"data:image/png,hello",
		"data:image/png;base64,!!!",
	} {
		_, err := host.Upload(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidImage, raw)
	}
}

func TestUploadPropagatesStorageError(t *testing.T) {
	_, err := newTestHost(&fakePutter{err: assert.AnError}).Upload(context.Background(), "data:image/jpeg;base64,aGVsbG8=")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPublicBase(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com", publicBase(Config{PublicURL: "https://cdn.example.com/"}))
	assert.Equal(t, "http://127.0.0.1:9000/dm-media", publicBase(Config{Endpoint: "http://127.0.0.1:9000/", Bucket: "dm-media"}))
	assert.Equal(t, "https://dm-media.s3.us-east-1.amazonaws.com", publicBase(Config{Bucket: "dm-media", Region: "us-east-1"}))
}

func TestNewS3ImageHostRequiresCredentials(t *testing.T) {
	_, err := NewS3ImageHost(context.Background(), Config{Bucket: "dm-media"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = Disabled{}.Upload(context.Background(), "data:image/png;base64,aGVsbG8=")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
