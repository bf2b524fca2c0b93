package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"jira-video-session/internal/domain"
	"jira-video-session/internal/logger"
)

// PublisherConfig holds the S3-compatible target of published manifests
type PublisherConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

// MinioPublisher implements port.ManifestPublisher.
// Frames are uploaded under <prefix>/<sessionID>/frames/ next to a manifest.json
// whose local paths are replaced by object keys.
type MinioPublisher struct {
	client *miniogo.Client
	bucket string
	prefix string
}

// NewMinioPublisher creates a publisher for the configured bucket
func NewMinioPublisher(cfg PublisherConfig) (*MinioPublisher, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioPublisher{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Publish uploads every manifest entry and the rewritten manifest, returning its location
func (p *MinioPublisher) Publish(ctx context.Context, manifest *domain.Manifest) (string, error) {
	if err := p.ensureBucket(ctx); err != nil {
		return "", err
	}

	published := *manifest
	published.Entries = make([]domain.ManifestEntry, 0, len(manifest.Entries))

	for _, entry := range manifest.Entries {
		key := ObjectKey(p.prefix, manifest.SessionID, "frames", filepath.Base(entry.LocalPath))
		_, err := p.client.FPutObject(ctx, p.bucket, key, entry.LocalPath, miniogo.PutObjectOptions{
			ContentType: contentTypeFor(entry.LocalPath),
		})
		if err != nil {
			return "", fmt.Errorf("upload frame %s: %w", entry.FrameID, err)
		}
		logger.Debug("Publish: uploaded %s -> %s/%s", entry.LocalPath, p.bucket, key)
		published.Entries = append(published.Entries, domain.ManifestEntry{FrameID: entry.FrameID, LocalPath: key})
	}

	data, err := json.MarshalIndent(&published, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	manifestKey := ObjectKey(p.prefix, manifest.SessionID, manifestJSONName)
	_, err = p.client.PutObject(ctx, p.bucket, manifestKey, bytes.NewReader(data), int64(len(data)), miniogo.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("upload manifest: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", p.bucket, manifestKey), nil
}

func (p *MinioPublisher) ensureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", p.bucket, err)
	}
	if !exists {
		if err := p.client.MakeBucket(ctx, p.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", p.bucket, err)
		}
	}
	return nil
}

// ObjectKey joins non-empty key parts with '/'
func ObjectKey(parts ...string) string {
	var clean []string
	for _, part := range parts {
		if part = strings.Trim(part, "/"); part != "" {
			clean = append(clean, part)
		}
	}
	return path.Join(clean...)
}

func contentTypeFor(localPath string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(localPath))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
