package assets

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUploadFailed wraps object store failures surfaced by Upload.
var ErrUploadFailed = errors.New("asset upload failed")

// Result describes an uploaded object. Both fields are empty for pass-through input.
type Result struct {
	URL    string
	Handle string
}

// Uploaded reports whether the result refers to a newly stored object.
func (r Result) Uploaded() bool {
	return r.Handle != ""
}

// UploaderConfig tunes the uploader.
type UploaderConfig struct {
	KeyPrefix  string
	MaxBytes   int64
	Normalizer *Normalizer
	Logger     *zap.Logger
}

// Uploader turns embedded image payloads into stored objects.
type Uploader struct {
	store      Store
	keyPrefix  string
	maxBytes   int64
	normalizer *Normalizer
	logger     *zap.Logger
	now        func() time.Time
}

// NewUploader constructs an uploader over store.
func NewUploader(store Store, cfg UploaderConfig) *Uploader {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	prefix := strings.Trim(cfg.KeyPrefix, "/")
	if prefix == "" {
		prefix = "enrollments"
	}
	return &Uploader{
		store:      store,
		keyPrefix:  prefix,
		maxBytes:   cfg.MaxBytes,
		normalizer: cfg.Normalizer,
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// Check validates raw the way Upload would, without storing anything.
// Pass-through input is accepted.
func (u *Uploader) Check(raw string) error {
	if !IsEmbedded(raw) {
		return nil
	}
	_, err := u.prepare(raw)
	return err
}

// Upload stores raw when it is an embedded image and returns its URL and handle.
// Any other input is a no-op returning an empty Result. Rejected payloads wrap
// ErrInvalidPayload; store failures wrap ErrUploadFailed.
func (u *Uploader) Upload(ctx context.Context, raw string) (Result, error) {
	if !IsEmbedded(raw) {
		return Result{}, nil
	}
	payload, err := u.prepare(raw)
	if err != nil {
		return Result{}, err
	}
	if u.normalizer != nil {
		normalized, err := u.normalizer.Normalize(payload)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		payload = normalized
	}

	key := u.objectKey(payload)
	url, err := u.store.Put(ctx, key, payload.MIME(), payload.Data)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return Result{URL: url, Handle: key}, nil
}

func (u *Uploader) prepare(raw string) (*Payload, error) {
	payload, ok := ParseDataURI(raw)
	if !ok {
		return nil, fmt.Errorf("%w: malformed data uri", ErrInvalidPayload)
	}
	if !payload.Supported() {
		return nil, fmt.Errorf("%w: unsupported type image/%s", ErrInvalidPayload, payload.Subtype)
	}
	if u.maxBytes > 0 && int64(len(payload.Data)) > u.maxBytes {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds limit", ErrInvalidPayload, len(payload.Data))
	}
	if u.normalizer != nil {
		if err := u.normalizer.Check(payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	return payload, nil
}

// DeleteMany removes handles. Failures are logged and never returned.
func (u *Uploader) DeleteMany(ctx context.Context, handles []string) {
	keys := make([]string, 0, len(handles))
	for _, handle := range handles {
		if handle != "" {
			keys = append(keys, handle)
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := u.store.Delete(ctx, keys); err != nil {
		u.logger.Warn("failed to delete assets", zap.Strings("handles", keys), zap.Error(err))
	}
}

// HandleFromURL derives the deletion handle for a URL produced by Upload.
func (u *Uploader) HandleFromURL(url string) string {
	key, ok := u.store.KeyFromURL(strings.TrimSpace(url))
	if !ok {
		return ""
	}
	return key
}

func (u *Uploader) objectKey(p *Payload) string {
	now := u.now().UTC()
	return path.Join(u.keyPrefix, now.Format("2006/01"), uuid.NewString()+p.Ext())
}
