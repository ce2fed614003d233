package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"
)

// s3Client is the subset of the S3 API the service uses, as an interface for
// testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup service configuration.
type Config struct {
	S3            S3Config
	DBPath        string
	Passphrase    string
	Hour          int // UTC hour for the nightly run
	RetentionDays int
}

// NewS3Client builds an S3 client for the given config. Shared with the
// media store, which talks to the same bucket host.
func NewS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Service takes nightly encrypted snapshots of the sqlite database and ships
// them to S3-compatible storage. Disabled when S3 or the passphrase is not
// configured.
type Service struct {
	mu         sync.RWMutex
	cfg        Config
	db         *sql.DB
	client     s3Client
	logger     *slog.Logger
	lastBackup time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a backup service. The returned service is disabled if
// the bucket, credentials, or passphrase are missing.
func NewService(cfg Config, db *sql.DB, logger *slog.Logger) *Service {
	s := &Service{cfg: cfg, db: db, logger: logger}
	if s.configured() {
		s.client = NewS3Client(cfg.S3)
	}
	return s
}

func (s *Service) configured() bool {
	return s.cfg.S3.Bucket != "" && s.cfg.S3.AccessKey != "" &&
		s.cfg.S3.SecretKey != "" && s.cfg.Passphrase != ""
}

// Enabled reports whether backups are configured.
func (s *Service) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

// LastBackup returns the time of the last successful backup, zero if none.
func (s *Service) LastBackup() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastBackup
}

// Start begins the nightly backup loop. No-op when disabled.
func (s *Service) Start(ctx context.Context) {
	if !s.Enabled() {
		return
	}

	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now().UTC()
				if now.Hour() != s.cfg.Hour || now.Minute() != 0 {
					continue
				}
				if err := s.Run(ctx); err != nil {
					s.logger.Error("nightly backup failed", "error", err)
					continue
				}
				if err := s.cleanup(ctx); err != nil {
					s.logger.Warn("backup cleanup failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (s *Service) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Run takes one snapshot, encrypts it, and uploads it. Safe to call while
// the server is live: the WAL is checkpointed first so the file copy is a
// consistent snapshot.
func (s *Service) Run(ctx context.Context) error {
	if !s.Enabled() {
		return fmt.Errorf("backup not configured")
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}

	snapshot, err := os.ReadFile(s.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("read database: %w", err)
	}

	encrypted, err := Encrypt(snapshot, s.cfg.Passphrase)
	if err != nil {
		return fmt.Errorf("encrypt snapshot: %w", err)
	}

	key := fmt.Sprintf("backups/dagsplan-%s.db.enc", time.Now().UTC().Format("2006-01-02T150405Z"))

	err = retry.Do(ctx, retry.WithMaxRetries(3, retry.NewExponential(time.Second)), func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.cfg.S3.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(encrypted),
			ContentLength: aws.Int64(int64(len(encrypted))),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}

	s.mu.Lock()
	s.lastBackup = time.Now().UTC()
	s.mu.Unlock()

	s.logger.Info("backup uploaded", "key", key, "size", len(encrypted))
	return nil
}

// cleanup deletes snapshots older than the retention period.
func (s *Service) cleanup(ctx context.Context) error {
	retention := s.cfg.RetentionDays
	if retention <= 0 {
		retention = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retention)

	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.S3.Bucket),
		Prefix: aws.String("backups/"),
	})
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	for _, obj := range out.Contents {
		if obj.Key == nil || obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
			continue
		}
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.cfg.S3.Bucket),
			Key:    obj.Key,
		}); err != nil {
			s.logger.Warn("delete old snapshot failed", "key", *obj.Key, "error", err)
		}
	}
	return nil
}

// Restore decrypts an uploaded snapshot blob and writes it over the
// configured database path. The caller is expected to restart the process
// afterwards so the new file is picked up.
func (s *Service) Restore(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	plaintext, err := Decrypt(data, s.cfg.Passphrase)
	if err != nil {
		return fmt.Errorf("decrypt snapshot: %w", err)
	}

	if err := os.WriteFile(s.cfg.DBPath, plaintext, 0600); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(s.cfg.DBPath + "-wal")
	os.Remove(s.cfg.DBPath + "-shm")
	return nil
}
