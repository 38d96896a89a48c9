package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"sekolahkita/internal/apperr"
)

// Memory keeps objects in process. URLs point at BaseURL/{bucket}/{path};
// private buckets get an expiry query parameter.
type Memory struct {
	BaseURL   string
	Private   map[string]bool
	SignedTTL time.Duration
	Now       func() time.Time

	mu      sync.RWMutex
	objects map[string]Object
}

// Object is a stored file.
type Object struct {
	ContentType string
	Data        []byte
}

func NewMemory(baseURL string, private ...string) *Memory {
	p := make(map[string]bool, len(private))
	for _, b := range private {
		p[b] = true
	}
	return &Memory{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Private:   p,
		SignedTTL: DefaultSignedTTL,
		Now:       time.Now,
		objects:   map[string]Object{},
	}
}

func (m *Memory) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) (string, error) {
	if bucket == "" || path == "" {
		return "", apperr.Validation("storage: bucket and path are required")
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("storage: read upload: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+path] = Object{ContentType: contentType, Data: buf.Bytes()}
	return path, nil
}

// Get returns a stored object.
func (m *Memory) Get(bucket, path string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[bucket+"/"+path]
	return o, ok
}

func (m *Memory) Remove(ctx context.Context, bucket, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+"/"+path)
	return nil
}

func (m *Memory) Resolve(ctx context.Context, bucket, path string) (string, error) {
	if _, ok := m.Get(bucket, path); !ok {
		return "", apperr.NotFound("storage: %s/%s not found", bucket, path)
	}
	u := m.BaseURL + "/" + url.PathEscape(bucket) + "/" + path
	if m.Private[bucket] {
		u += fmt.Sprintf("?expires=%d", m.Now().Add(m.SignedTTL).Unix())
	}
	return u, nil
}

func (m *Memory) ResolveMany(ctx context.Context, bucket string, paths []string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		if u, err := m.Resolve(ctx, bucket, p); err == nil {
			out[p] = u
		}
	}
	return out, nil
}
