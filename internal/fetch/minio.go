package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig locates the object store holding s3:// audio sources.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UseSSL    bool   `yaml:"use_ssl"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// MinioFetcher resolves s3://bucket/key sources against a MinIO-compatible
// object store.
type MinioFetcher struct {
	client *minio.Client
}

func NewMinioFetcher(cfg MinioConfig) (*MinioFetcher, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio fetcher requires an endpoint")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinioFetcher{client: client}, nil
}

func (f *MinioFetcher) Fetch(ctx context.Context, rawURL, dest string) error {
	bucket, key, err := splitObjectURL(rawURL)
	if err != nil {
		return err
	}
	if err := f.client.FGetObject(ctx, bucket, key, dest, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("fetch s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// IsObjectURL reports whether the source should go through the object store.
func IsObjectURL(rawURL string) bool {
	return strings.HasPrefix(rawURL, "s3://")
}

func splitObjectURL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid object url: %s", rawURL)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("object url missing key: %s", rawURL)
	}
	return u.Host, key, nil
}
