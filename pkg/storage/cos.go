package stores

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"VidFlow/pkg/errors"

	"github.com/tencentyun/cos-go-sdk-v5"
)

type COSConfig struct {
	BucketURL string `env:"COS_BUCKET_URL"` // https://<bucket>-<appid>.cos.<region>.myqcloud.com
	SecretID  string `env:"COS_SECRET_ID"`
	SecretKey string `env:"COS_SECRET_KEY"`
	BaseURL   string `env:"COS_PUBLIC_BASE"` // CDN 域名，可选
}

// COSStore stores artifacts in Tencent Cloud Object Storage.
type COSStore struct {
	cfg    COSConfig
	client *cos.Client
}

func NewCOSStore(cfg COSConfig) (*COSStore, error) {
	if cfg.BucketURL == "" {
		return nil, errors.ConfigMissing("COS_BUCKET_URL")
	}
	u, err := url.Parse(cfg.BucketURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse COS_BUCKET_URL")
	}
	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})
	return &COSStore{cfg: cfg, client: client}, nil
}

func (s *COSStore) Read(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	resp, err := s.client.Object.Get(ctx, key, nil)
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

func (s *COSStore) Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: contentType},
	}
	_, err := s.client.Object.Put(ctx, key, r, opt)
	return err
}

func (s *COSStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.Object.Delete(ctx, key)
	return err
}

func (s *COSStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.client.Object.IsExist(ctx, key)
}

func (s *COSStore) PublicURL(key string) string {
	if s.cfg.BaseURL != "" {
		return joinURL(s.cfg.BaseURL, key)
	}
	return s.client.Object.GetObjectURL(key).String()
}
