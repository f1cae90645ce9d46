package upload

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// MinIOUploader stores files in a MinIO bucket, creating it on first use.
type MinIOUploader struct {
	client *minio.Client
	cfg    MinIOConfig

	mu          sync.Mutex
	bucketReady bool
}

func NewMinIOUploader(cfg MinIOConfig) (*MinIOUploader, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return &MinIOUploader{client: client, cfg: cfg}, nil
}

func (u *MinIOUploader) Name() string { return "minio" }

// ensureBucket creates the bucket on first use. Failures are not cached,
// so the next upload tries again.
func (u *MinIOUploader) ensureBucket(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.bucketReady {
		return nil
	}
	exists, err := u.client.BucketExists(ctx, u.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := u.client.MakeBucket(ctx, u.cfg.Bucket, minio.MakeBucketOptions{Region: u.cfg.Region}); err != nil {
			return err
		}
	}
	u.bucketReady = true
	return nil
}

func (u *MinIOUploader) Upload(ctx context.Context, f File) (Descriptor, error) {
	if err := u.ensureBucket(ctx); err != nil {
		return Descriptor{}, fmt.Errorf("ensure bucket: %w", err)
	}
	key := ObjectKey(u.cfg.Prefix, f)
	contentType := DetectContentType(f.ContentType, f.Data)
	_, err := u.client.PutObject(ctx, u.cfg.Bucket, key, bytes.NewReader(f.Data), int64(len(f.Data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Descriptor{}, fmt.Errorf("minio put %s: %w", key, err)
	}
	link := fmt.Sprintf("%s/%s/%s", strings.TrimRight(u.client.EndpointURL().String(), "/"), u.cfg.Bucket, key)
	return stored(f, contentType, link), nil
}
