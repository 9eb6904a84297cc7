// Package storage wraps the S3-compatible object store that holds uploaded
// room photos.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// MaxUploadSize bounds a single source image.
const MaxUploadSize = 10 << 20

type Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	UsePathStyle  bool
}

type Client struct {
	cfg Config
	s3  *s3.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("storage credentials are required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("storage public base url is required")
	}

	options := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &Client{
		cfg: cfg,
		s3:  s3.New(options),
	}, nil
}

// Upload stores data under a generated key in the given bucket (the default
// bucket when empty) and returns the public URL plus the object key.
func (c *Client) Upload(ctx context.Context, data []byte, contentType, bucket string) (string, string, error) {
	if len(data) == 0 {
		return "", "", fmt.Errorf("no data to upload")
	}
	if len(data) > MaxUploadSize {
		return "", "", fmt.Errorf("file exceeds %d byte limit", MaxUploadSize)
	}
	ext := extensionFromContentType(contentType)
	if ext == "" {
		return "", "", fmt.Errorf("unsupported content type %q", contentType)
	}
	if bucket == "" {
		bucket = c.cfg.Bucket
	}

	now := time.Now().UTC()
	key := path.Join(fmt.Sprintf("%04d/%02d", now.Year(), now.Month()), uuid.NewString()+ext)

	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", "", fmt.Errorf("upload to storage: %w", err)
	}

	url := strings.TrimRight(c.cfg.PublicBaseURL, "/") + "/" + path.Join(bucket, key)
	return url, path.Join(bucket, key), nil
}

// Delete removes an object by the bucket-prefixed key Upload returned.
func (c *Client) Delete(ctx context.Context, storedPath string) error {
	bucket, key, ok := strings.Cut(strings.TrimPrefix(storedPath, "/"), "/")
	if !ok || key == "" {
		return fmt.Errorf("malformed storage path %q", storedPath)
	}

	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete from storage: %w", err)
	}
	return nil
}

func extensionFromContentType(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
