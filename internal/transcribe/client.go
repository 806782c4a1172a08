package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Job state values reported by the remote service.
const (
	JobStatePending   = "Pending"
	JobStateRunning   = "Running"
	JobStateCompleted = "Completed"
	JobStateFailed    = "Failed"
)

// JobInfo is the remote service's response to job creation.
type JobInfo struct {
	JobID             string `json:"job_id"`
	InputStoragePath  string `json:"input_storage_path"`
	OutputStoragePath string `json:"output_storage_path"`
}

// JobStatus is one poll observation of a remote job.
type JobStatus struct {
	JobState     string `json:"job_state"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Terminal reports whether the job has reached a final state.
func (s *JobStatus) Terminal() bool {
	return s.JobState == JobStateCompleted || s.JobState == JobStateFailed
}

// Client talks to the remote batch speech-recognition service. The service
// owns all job state; the client only issues lifecycle calls and observes.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a remote-service client. A missing API key is a
// configuration error and fails fast.
func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("transcription endpoint cannot be empty")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("transcription API key cannot be empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// CreateJob asks the service for a new job with fresh storage paths.
func (c *Client) CreateJob(ctx context.Context) (*JobInfo, error) {
	body, err := c.do(ctx, http.MethodPost, "/v1/jobs", nil)
	if err != nil {
		return nil, fmt.Errorf("job init failed: %w", err)
	}

	var info JobInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse job init response: %w", err)
	}
	if info.JobID == "" {
		return nil, fmt.Errorf("job init response missing job_id")
	}
	return &info, nil
}

// startRequest is the primary job-start payload.
type startRequest struct {
	Diarization  bool   `json:"diarization"`
	LanguageCode string `json:"language_code,omitempty"`
}

// startRequestAlt is the older payload shape still accepted by some
// deployments. Tried once when the primary shape is rejected.
type startRequestAlt struct {
	Config struct {
		Diarize  bool   `json:"diarize"`
		Language string `json:"language,omitempty"`
	} `json:"config"`
}

// StartJob starts a created job. The service has historically changed which
// start payload it accepts, so a non-2xx on the primary shape triggers
// exactly one retry with the alternate shape before giving up.
func (c *Client) StartJob(ctx context.Context, jobID, language string) error {
	primary := startRequest{Diarization: true, LanguageCode: language}
	_, err := c.do(ctx, http.MethodPost, "/v1/jobs/"+jobID+"/start", primary)
	if err == nil {
		return nil
	}

	var alt startRequestAlt
	alt.Config.Diarize = true
	alt.Config.Language = language
	if _, altErr := c.do(ctx, http.MethodPost, "/v1/jobs/"+jobID+":run", alt); altErr != nil {
		return fmt.Errorf("job start failed on both endpoints: %v; fallback: %v", err, altErr)
	}
	return nil
}

// JobStatus fetches the current remote state of a job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/jobs/"+jobID+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("status check failed: %w", err)
	}

	var status JobStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}
	return &status, nil
}

// JobResults fetches a completed job's result payload directly. The payload
// is returned raw; normalization happens later. A 404 or empty body means
// the results were only materialized in storage and the caller should fall
// back to the storage path.
func (c *Client) JobResults(ctx context.Context, jobID string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/jobs/"+jobID+"/results", nil)
	if err != nil {
		return nil, fmt.Errorf("result fetch failed: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("result fetch returned empty body")
	}
	return json.RawMessage(body), nil
}

// do issues one JSON request and returns the response body on 2xx.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
