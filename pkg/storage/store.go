package stores

import (
	"context"
	"fmt"
	"io"
	"strings"

	"VidFlow/pkg/util"
)

// Store is an object store that can hand out public URLs.
type Store interface {
	Read(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	PublicURL(key string) string
}

// NewStoreFromEnv builds the mirror store selected by driver. An empty driver means
// artifacts are only served from the local media directory.
func NewStoreFromEnv(driver string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", "local":
		return nil, nil
	case "minio":
		s, err := NewMinioStore(MinioConfig{
			Endpoint:  util.GetEnv("MINIO_ENDPOINT"),
			AccessKey: util.GetEnv("MINIO_ACCESS_KEY"),
			SecretKey: util.GetEnv("MINIO_SECRET_KEY"),
			Bucket:    util.GetEnv("MINIO_BUCKET"),
			UseSSL:    util.GetBoolEnv("MINIO_USE_SSL"),
			BaseURL:   util.GetEnv("MINIO_PUBLIC_BASE"),
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "cos":
		s, err := NewCOSStore(COSConfig{
			BucketURL: util.GetEnv("COS_BUCKET_URL"),
			SecretID:  util.GetEnv("COS_SECRET_ID"),
			SecretKey: util.GetEnv("COS_SECRET_KEY"),
			BaseURL:   util.GetEnv("COS_PUBLIC_BASE"),
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
