package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// BlobStore is the provider-managed object storage the service reads job
// input from and writes results to.
type BlobStore interface {
	Upload(ctx context.Context, localPath string) error
	List(ctx context.Context) ([]string, error)
	Download(ctx context.Context, names []string, destDir string) ([]string, error)
	SetURL(signedURL string) error
}

// BlobClient addresses provider storage through a signed URL of the form
// https://endpoint/container/prefix?token. The URL components are parsed
// once; SetURL may rotate them mid-session. One mutex serializes rotation
// against in-flight operations on the same client.
type BlobClient struct {
	mu         sync.Mutex
	endpoint   string
	container  string
	prefix     string
	token      string
	httpClient *http.Client
}

// NewBlobClient parses a signed storage URL into a client.
func NewBlobClient(signedURL string) (*BlobClient, error) {
	c := &BlobClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	if err := c.SetURL(signedURL); err != nil {
		return nil, err
	}
	return c, nil
}

// SetURL re-parses the client's signed URL, e.g. after a token rotation.
func (c *BlobClient) SetURL(signedURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := url.Parse(signedURL)
	if err != nil {
		return fmt.Errorf("failed to parse storage URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("storage URL missing scheme or host: %s", signedURL)
	}

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if parts[0] == "" {
		return fmt.Errorf("storage URL missing container: %s", signedURL)
	}

	c.endpoint = u.Scheme + "://" + u.Host
	c.container = parts[0]
	c.prefix = ""
	if len(parts) == 2 {
		c.prefix = parts[1]
	}
	c.token = u.RawQuery
	return nil
}

// objectURL builds the full signed URL for one object name. Caller must
// hold the mutex.
func (c *BlobClient) objectURL(name string) string {
	base := c.endpoint + "/" + c.container
	if c.prefix != "" {
		base += "/" + c.prefix
	}
	if name != "" {
		base += "/" + url.PathEscape(name)
	}
	if c.token != "" {
		base += "?" + c.token
	}
	return base
}

// Upload puts one local file into storage under its base name.
func (c *BlobClient) Upload(ctx context.Context, localPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open upload file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat upload file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.objectURL(filepath.Base(localPath)), f)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload HTTP error %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// listResponse is the storage listing payload.
type listResponse struct {
	Objects []struct {
		Name string `json:"name"`
	} `json:"objects"`
}

// List returns the object names under the client's prefix.
func (c *BlobClient) List(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	listURL := c.objectURL("")
	if c.token != "" {
		listURL = strings.Replace(listURL, "?", "?list&", 1)
	} else {
		listURL += "?list"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create list request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read list response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("list HTTP error %d: %s", resp.StatusCode, string(body))
	}

	var listing listResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse list response: %w", err)
	}

	names := make([]string, 0, len(listing.Objects))
	for _, obj := range listing.Objects {
		names = append(names, obj.Name)
	}
	return names, nil
}

// Download fetches the named objects into destDir and returns the local
// paths of the files that downloaded successfully.
func (c *BlobClient) Download(ctx context.Context, names []string, destDir string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	paths := make([]string, 0, len(names))
	for _, name := range names {
		localPath, err := c.downloadOne(ctx, name, destDir)
		if err != nil {
			return paths, fmt.Errorf("failed to download %s: %w", name, err)
		}
		paths = append(paths, localPath)
	}
	return paths, nil
}

func (c *BlobClient) downloadOne(ctx context.Context, name, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectURL(name), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	localPath := filepath.Join(destDir, filepath.Base(name))
	f, err := os.Create(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", err
	}
	return localPath, nil
}
