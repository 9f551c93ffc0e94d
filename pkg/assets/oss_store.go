package assets

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSConfig holds Alibaba Cloud OSS credentials and addressing.
type OSSConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	PublicBase   string
	RequestLimit time.Duration
}

// OSSStore stores objects in an Alibaba Cloud OSS bucket.
type OSSStore struct {
	bucket     *oss.Bucket
	endpoint   string
	bucketName string
	publicBase string
}

// NewOSSStore connects to the configured bucket.
func NewOSSStore(cfg OSSConfig) (*OSSStore, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("oss endpoint, credentials and bucket are required")
	}
	options := []oss.ClientOption{}
	if cfg.RequestLimit > 0 {
		secs := int64(cfg.RequestLimit / time.Second)
		if secs < 1 {
			secs = 1
		}
		options = append(options, oss.Timeout(secs, secs))
	}
	client, err := oss.New(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, options...)
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("client.Bucket: %w", err)
	}
	return &OSSStore{
		bucket:     bucket,
		endpoint:   cfg.Endpoint,
		bucketName: cfg.Bucket,
		publicBase: strings.TrimRight(strings.TrimSpace(cfg.PublicBase), "/"),
	}, nil
}

// Put uploads data under key and returns its public URL.
func (s *OSSStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	opts := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
		oss.CacheControl("public, max-age=31536000, immutable"),
	}
	if err := s.bucket.PutObject(key, bytes.NewReader(data), opts...); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.publicURL(key), nil
}

// Delete removes keys in a single batch request.
func (s *OSSStore) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.bucket.DeleteObjects(keys, oss.WithContext(ctx), oss.DeleteObjectsQuiet(true)); err != nil {
		return fmt.Errorf("delete objects: %w", err)
	}
	return nil
}

// KeyFromURL strips the public base (or bucket host) from url.
func (s *OSSStore) KeyFromURL(url string) (string, bool) {
	if url == "" {
		return "", false
	}
	if s.publicBase != "" {
		base := s.publicBase + "/"
		if strings.HasPrefix(url, base) {
			return strings.TrimPrefix(url, base), true
		}
	}
	host := s.bucketName + "." + trimScheme(s.endpoint) + "/"
	rest := trimScheme(url)
	if strings.HasPrefix(rest, host) {
		return strings.TrimPrefix(rest, host), true
	}
	return "", false
}

func (s *OSSStore) publicURL(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + key
	}
	return fmt.Sprintf("https://%s.%s/%s", s.bucketName, trimScheme(s.endpoint), key)
}

func trimScheme(u string) string {
	u = strings.TrimPrefix(u, "https://")
	return strings.TrimPrefix(u, "http://")
}
