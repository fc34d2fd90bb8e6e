package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"newsreel/internal/services"
	"newsreel/internal/services/awsutil"
)

// PutAPI is the subset of the S3 client used for uploads.
type PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PresignAPI is the subset of the S3 presign client used for share links.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config locates the bucket.
type Config struct {
	Bucket        string
	Region        string
	Prefix        string
	PresignExpiry time.Duration
}

// Store mirrors rendered artifacts into one S3 bucket.
type Store struct {
	put     PutAPI
	presign PresignAPI
	cfg     Config
}

// Object identifies an uploaded artifact.
type Object struct {
	Bucket string
	Key    string
	ETag   string
}

// New builds a Store using the SDK default credential chain.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "assembly", "object store", "bucket not configured", nil)
	}
	awsCfg, err := awsutil.LoadConfig(ctx, cfg.Region)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "assembly", "load aws config", "", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return NewWithAPI(client, s3.NewPresignClient(client), cfg), nil
}

// NewWithAPI wraps existing S3 implementations.
func NewWithAPI(put PutAPI, presign PresignAPI, cfg Config) *Store {
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 72 * time.Hour
	}
	return &Store{put: put, presign: presign, cfg: cfg}
}

// Bucket returns the configured bucket name.
func (s *Store) Bucket() string {
	return s.cfg.Bucket
}

// Key returns the object key for a job artifact under the configured prefix.
func (s *Store) Key(jobID int64, name string) string {
	return path.Join(strings.TrimPrefix(s.cfg.Prefix, "/"), strconv.FormatInt(jobID, 10), path.Base(name))
}

// PutFile uploads a local file under key. Uploading the same key again
// replaces the object, so a retried stage converges on one copy.
func (s *Store) PutFile(ctx context.Context, key, localPath, contentType string) (Object, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return Object{}, services.Wrap(services.ErrAssetMissing, "assembly", "object store", "open "+localPath, err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return Object{}, services.Wrap(services.ErrAssetMissing, "assembly", "object store", "stat "+localPath, err)
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	out, err := s.put.PutObject(ctx, input)
	if err != nil {
		return Object{}, awsutil.Classify(services.ErrConfiguration, "assembly", "put object", err)
	}
	return Object{Bucket: s.cfg.Bucket, Key: key, ETag: strings.Trim(aws.ToString(out.ETag), `"`)}, nil
}

// PresignURL returns a time-limited GET link for key.
func (s *Store) PresignURL(ctx context.Context, key string) (string, error) {
	if s.presign == nil {
		return "", errors.New("object store: presign client not configured")
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.PresignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}
