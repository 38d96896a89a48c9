// Package storage uploads files to the hosted object store and resolves
// stored paths into URLs the browser can load.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sekolahkita/internal/apperr"
)

// DefaultSignedTTL is how long signed URLs stay valid.
const DefaultSignedTTL = time.Hour

// Storage is implemented by Client and Memory.
type Storage interface {
	Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) (string, error)
	// Resolve returns a public URL, or a signed one for private buckets.
	Resolve(ctx context.Context, bucket, path string) (string, error)
	// ResolveMany resolves several paths of one bucket. Paths that could not
	// be resolved are absent from the result.
	ResolveMany(ctx context.Context, bucket string, paths []string) (map[string]string, error)
	// Remove deletes bucket/path. Removing a missing object is not an error.
	Remove(ctx context.Context, bucket, path string) error
}

// Client talks to the object storage REST API under {BaseURL}/storage/v1.
type Client struct {
	BaseURL    string
	ServiceKey string
	Private    map[string]bool
	SignedTTL  time.Duration
	HTTP       *http.Client
}

// New creates a storage client. Buckets listed in private are served through
// signed URLs.
func New(baseURL, serviceKey string, private []string, signedTTL time.Duration) *Client {
	if signedTTL <= 0 {
		signedTTL = DefaultSignedTTL
	}
	p := make(map[string]bool, len(private))
	for _, b := range private {
		if b = strings.TrimSpace(b); b != "" {
			p[b] = true
		}
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ServiceKey: serviceKey,
		Private:    p,
		SignedTTL:  signedTTL,
		HTTP:       &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload stores body at bucket/path, replacing any existing object, and
// returns the stored path.
func (c *Client) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) (string, error) {
	if bucket == "" || path == "" {
		return "", apperr.Validation("storage: bucket and path are required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.objectURL("object", bucket, path), body)
	if err != nil {
		return "", fmt.Errorf("storage: create request failed: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	if _, err := c.do(req); err != nil {
		return "", err
	}
	return path, nil
}

func (c *Client) Remove(ctx context.Context, bucket, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.objectURL("object", bucket, path), nil)
	if err != nil {
		return fmt.Errorf("storage: create request failed: %w", err)
	}
	c.authorize(req)
	if _, err := c.do(req); err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		return err
	}
	return nil
}

// PublicURL is the URL of an object in a public bucket.
func (c *Client) PublicURL(bucket, path string) string {
	return c.objectURL("object/public", bucket, path)
}

// SignedURL returns a URL for bucket/path valid for the client's TTL.
func (c *Client) SignedURL(ctx context.Context, bucket, path string) (string, error) {
	payload, _ := json.Marshal(map[string]int{"expiresIn": int(c.SignedTTL.Seconds())})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.objectURL("object/sign", bucket, path), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("storage: create request failed: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	var out struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("storage: decode response failed: %w", err)
	}
	if out.SignedURL == "" {
		return "", apperr.NotFound("storage: %s/%s has no signed url", bucket, path)
	}
	return c.BaseURL + "/storage/v1" + out.SignedURL, nil
}

func (c *Client) Resolve(ctx context.Context, bucket, path string) (string, error) {
	if !c.Private[bucket] {
		return c.PublicURL(bucket, path), nil
	}
	return c.SignedURL(ctx, bucket, path)
}

func (c *Client) ResolveMany(ctx context.Context, bucket string, paths []string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	if len(paths) == 0 {
		return out, nil
	}
	if !c.Private[bucket] {
		for _, p := range paths {
			out[p] = c.PublicURL(bucket, p)
		}
		return out, nil
	}

	payload, _ := json.Marshal(map[string]any{
		"expiresIn": int(c.SignedTTL.Seconds()),
		"paths":     paths,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/storage/v1/object/sign/"+url.PathEscape(bucket), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("storage: create request failed: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var signed []struct {
		Path      string  `json:"path"`
		SignedURL string  `json:"signedURL"`
		Error     *string `json:"error"`
	}
	if err := json.Unmarshal(body, &signed); err != nil {
		return nil, fmt.Errorf("storage: decode response failed: %w", err)
	}
	for _, s := range signed {
		if s.Error != nil || s.SignedURL == "" {
			continue
		}
		out[s.Path] = c.BaseURL + "/storage/v1" + s.SignedURL
	}
	return out, nil
}

func (c *Client) objectURL(kind, bucket, path string) string {
	segs := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/storage/v1/%s/%s/%s", c.BaseURL, kind, url.PathEscape(bucket), strings.Join(segs, "/"))
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.ServiceKey)
	req.Header.Set("apikey", c.ServiceKey)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, apperr.Transport(err, "storage: request failed")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 300 {
		return body, nil
	}
	cause := fmt.Errorf("storage: %s (%d): %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperr.Wrap(apperr.KindAuth, cause, "storage: access denied")
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperr.Wrap(apperr.KindNotFound, cause, "storage: object not found")
	case resp.StatusCode >= 500:
		return nil, apperr.Transport(cause, "storage: service unavailable")
	}
	return nil, apperr.Wrap(apperr.KindValidation, cause, "storage: rejected")
}
