package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"

	"github.com/openspot/openspot/internal/model"
	"github.com/openspot/openspot/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
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
	S3         S3Config
	DBPath     string
	Passphrase string
}

// Service uploads encrypted database snapshots to S3-compatible storage.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	db      *sql.DB
	backups *store.BackupStore
	client  s3Client
	logger  *slog.Logger
}

func NewService(cfg Config, db *sql.DB, bs *store.BackupStore, logger *slog.Logger) *Service {
	svc := &Service{cfg: cfg, db: db, backups: bs, logger: logger}
	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" && cfg.Passphrase != "" {
		svc.client = newS3Client(cfg.S3)
	}
	return svc
}

func newS3Client(cfg S3Config) *s3.Client {
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

// Enabled reports whether the service has complete S3 configuration.
func (s *Service) Enabled() bool {
	return s.client != nil
}

// Run checkpoints the database, encrypts a snapshot, and uploads it.
// Runs are serialized; a second caller waits for the first to finish.
func (s *Service) Run(ctx context.Context) (*model.Backup, error) {
	if s.client == nil {
		return nil, fmt.Errorf("backup not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("wal checkpoint: %w", err)
	}

	plaintext, err := os.ReadFile(s.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("read database: %w", err)
	}

	encrypted, err := Encrypt(plaintext, s.cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypt snapshot: %w", err)
	}

	objectKey := fmt.Sprintf("backups/openspot-%s.db.enc", time.Now().UTC().Format("2006-01-02T150405Z"))

	backoff := retry.WithMaxRetries(3, retry.NewExponential(1*time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.cfg.S3.Bucket),
			Key:           aws.String(objectKey),
			Body:          bytes.NewReader(encrypted),
			ContentLength: aws.Int64(int64(len(encrypted))),
		})
		if err != nil {
			s.logger.Warn("backup upload attempt failed", "key", objectKey, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upload to s3: %w", err)
	}

	record, err := s.backups.Create(objectKey, int64(len(encrypted)))
	if err != nil {
		return nil, fmt.Errorf("record backup: %w", err)
	}

	s.logger.Info("backup completed", "key", objectKey, "size_bytes", len(encrypted))
	return record, nil
}
