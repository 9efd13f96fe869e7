package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alvmarrod/profile-weaver/internal/storage"
)

// Persisted keys
const (
	KeyProxy      = "proxy"
	KeyUploadURL  = "uploadUrl"
	KeyAutoUpload = "autoUpload"
)

// Upload is the forwarding configuration read before each auto-upload
type Upload struct {
	URL        string
	AutoUpload bool
}

// Enabled reports whether a flushed batch should be forwarded
func (u Upload) Enabled() bool {
	return u.URL != "" && u.AutoUpload
}

// Settings reads and writes user configuration in a KV bucket
type Settings struct {
	kv storage.KV
}

// New wraps a bucket
func New(kv storage.KV) *Settings {
	return &Settings{kv: kv}
}

// Proxy returns the saved proxy string, "" when unset
func (s *Settings) Proxy(ctx context.Context) (string, error) {
	var proxy *string
	if err := s.get(ctx, KeyProxy, &proxy); err != nil {
		return "", err
	}
	if proxy == nil {
		return "", nil
	}
	return *proxy, nil
}

// SaveProxy stores the proxy string; "" clears it
func (s *Settings) SaveProxy(ctx context.Context, proxy string) error {
	return s.put(ctx, KeyProxy, nullable(proxy))
}

// Upload returns the upload endpoint and auto-upload flag
func (s *Settings) Upload(ctx context.Context) (Upload, error) {
	var url *string
	var auto bool
	if err := s.get(ctx, KeyUploadURL, &url); err != nil {
		return Upload{}, err
	}
	if err := s.get(ctx, KeyAutoUpload, &auto); err != nil {
		return Upload{}, err
	}

	u := Upload{AutoUpload: auto}
	if url != nil {
		u.URL = *url
	}
	return u, nil
}

// SaveUpload stores the endpoint and flag
func (s *Settings) SaveUpload(ctx context.Context, u Upload) error {
	if err := s.put(ctx, KeyUploadURL, nullable(u.URL)); err != nil {
		return err
	}
	return s.put(ctx, KeyAutoUpload, u.AutoUpload)
}

func (s *Settings) get(ctx context.Context, key string, dst interface{}) error {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode setting %s: %w", key, err)
	}
	return nil
}

func (s *Settings) put(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", key, err)
	}
	if err := s.kv.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
