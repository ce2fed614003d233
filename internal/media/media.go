package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/askelund/dagsplan/internal/backup"
)

// MaxUploadSize caps media uploads at 10 MB, enough for illustration images
// and short recorded audio prompts.
const MaxUploadSize = 10 << 20

// extensions maps accepted content types to stored file extensions. Images
// illustrate activities and rewards; audio carries recorded prompts for
// children who cannot read yet.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"audio/mpeg": ".mp3",
	"audio/mp4":  ".m4a",
	"audio/ogg":  ".ogg",
	"audio/wav":  ".wav",
}

// ErrUnsupportedType is returned for uploads outside the accepted set.
var ErrUnsupportedType = fmt.Errorf("unsupported media type")

type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store uploads media blobs to S3-compatible storage and hands back public
// URLs for the activity and reward records to carry.
type Store struct {
	client    s3Client
	bucket    string
	publicURL string
}

// NewStore creates a media store. publicURL is the base under which the
// bucket is served (CDN or the S3 endpoint itself). Returns nil when S3 is
// not configured; callers treat a nil store as uploads-disabled.
func NewStore(cfg backup.S3Config, publicURL string) *Store {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil
	}
	return &Store{
		client:    backup.NewS3Client(cfg),
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Upload stores the blob under a random key and returns its public URL.
func (s *Store) Upload(ctx context.Context, r io.Reader, contentType string, size int64) (string, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}
	if size <= 0 || size > MaxUploadSize {
		return "", fmt.Errorf("invalid upload size %d", size)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadSize {
		return "", fmt.Errorf("upload exceeds %d bytes", MaxUploadSize)
	}

	key := fmt.Sprintf("media/%s/%s%s", time.Now().UTC().Format("2006/01"), uuid.NewString(), ext)

	err = retry.Do(ctx, retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond)), func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentType:   aws.String(contentType),
			ContentLength: aws.Int64(int64(len(data))),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}

	return s.publicURL + "/" + key, nil
}

// Delete removes a previously uploaded object by its public URL. Unknown
// URLs are ignored so callers can pass record fields blindly.
func (s *Store) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, s.publicURL+"/")
	if !ok || !strings.HasPrefix(key, "media/") {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	return nil
}
