package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeStore is an in-memory BlobStore for orchestrator tests.
type fakeStore struct {
	uploads   []string
	objects   map[string][]byte
	uploadErr error
	listErr   error
}

func (f *fakeStore) Upload(ctx context.Context, localPath string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads = append(f.uploads, localPath)
	return nil
}

func (f *fakeStore) List(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	names := make([]string, 0, len(f.objects))
	for name := range f.objects {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeStore) Download(ctx context.Context, names []string, destDir string) ([]string, error) {
	paths := make([]string, 0, len(names))
	for _, name := range names {
		data, ok := f.objects[name]
		if !ok {
			return paths, fmt.Errorf("object %s not found", name)
		}
		p := filepath.Join(destDir, name)
		if err := os.WriteFile(p, data, 0644); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (f *fakeStore) SetURL(string) error { return nil }

// remoteService is a scriptable fake of the transcription API.
type remoteService struct {
	statusSequence  []string
	statusCalls     atomic.Int64
	startCalls      atomic.Int64
	rejectPrimary   bool
	rejectFallback  bool
	results         string
	resultsNotFound bool
}

func (s *remoteService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(JobInfo{
			JobID:             "job-1",
			InputStoragePath:  "https://store.example.com/in/job-1?sig=in",
			OutputStoragePath: "https://store.example.com/out/job-1?sig=out",
		})
	})
	mux.HandleFunc("POST /v1/jobs/job-1/start", func(w http.ResponseWriter, r *http.Request) {
		s.startCalls.Add(1)
		if s.rejectPrimary {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /v1/jobs/job-1:run", func(w http.ResponseWriter, r *http.Request) {
		s.startCalls.Add(1)
		if s.rejectFallback {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /v1/jobs/job-1/status", func(w http.ResponseWriter, r *http.Request) {
		call := int(s.statusCalls.Add(1)) - 1
		state := s.statusSequence[len(s.statusSequence)-1]
		if call < len(s.statusSequence) {
			state = s.statusSequence[call]
		}
		json.NewEncoder(w).Encode(JobStatus{JobState: state})
	})
	mux.HandleFunc("GET /v1/jobs/job-1/results", func(w http.ResponseWriter, r *http.Request) {
		if s.resultsNotFound {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(s.results))
	})
	return mux
}

func newTestOrchestrator(t *testing.T, svc *remoteService, store *fakeStore) (*Orchestrator, func()) {
	t.Helper()
	server := httptest.NewServer(svc.handler())

	client, err := NewClient(server.URL, "test-key", 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	o := NewOrchestrator(client, "en-US", "")
	o.SetPollPolicy(time.Millisecond, 30)
	o.newStore = func(string) (BlobStore, error) { return store, nil }
	return o, server.Close
}

func writeTestAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slice.wav")
	if err := os.WriteFile(path, []byte("RIFFfake"), 0644); err != nil {
		t.Fatalf("Failed to write test audio: %v", err)
	}
	return path
}

func TestOrchestratorHappyPath(t *testing.T) {
	svc := &remoteService{
		statusSequence: []string{"Pending", "Running", "Completed"},
		results:        `{"transcript": "done", "segments": [{"text": "done", "start_time": 0, "end_time": 1}]}`,
	}
	store := &fakeStore{}
	o, closeServer := newTestOrchestrator(t, svc, store)
	defer closeServer()

	result := o.Transcribe(context.Background(), writeTestAudio(t))
	if result.Err != nil {
		t.Fatalf("Transcribe failed: %v", result.Err)
	}
	if len(store.uploads) != 1 {
		t.Errorf("Expected 1 upload, got %d", len(store.uploads))
	}

	tr, err := Normalize(result.Raw)
	if err != nil {
		t.Fatalf("Result not normalizable: %v", err)
	}
	if tr.Transcript != "done" {
		t.Errorf("Wrong transcript: %q", tr.Transcript)
	}
}

func TestOrchestratorStartFallback(t *testing.T) {
	svc := &remoteService{
		statusSequence: []string{"Completed"},
		rejectPrimary:  true,
		results:        `{"transcript": "ok", "segments": []}`,
	}
	store := &fakeStore{}
	o, closeServer := newTestOrchestrator(t, svc, store)
	defer closeServer()

	result := o.Transcribe(context.Background(), writeTestAudio(t))
	if result.Err != nil {
		t.Fatalf("Transcribe failed despite fallback endpoint: %v", result.Err)
	}
	if calls := svc.startCalls.Load(); calls != 2 {
		t.Errorf("Expected 2 start attempts (primary + fallback), got %d", calls)
	}
}

func TestOrchestratorStartBothRejected(t *testing.T) {
	svc := &remoteService{
		statusSequence: []string{"Completed"},
		rejectPrimary:  true,
		rejectFallback: true,
	}
	store := &fakeStore{}
	o, closeServer := newTestOrchestrator(t, svc, store)
	defer closeServer()

	result := o.Transcribe(context.Background(), writeTestAudio(t))
	if result.Err == nil {
		t.Fatal("Expected error when both start shapes are rejected")
	}
	// Fallback is tried exactly once, never recursively.
	if calls := svc.startCalls.Load(); calls != 2 {
		t.Errorf("Expected exactly 2 start attempts, got %d", calls)
	}
}

func TestOrchestratorPollTimeout(t *testing.T) {
	svc := &remoteService{statusSequence: []string{"Running"}}
	store := &fakeStore{}
	o, closeServer := newTestOrchestrator(t, svc, store)
	defer closeServer()
	o.SetPollPolicy(time.Millisecond, 5)

	result := o.Transcribe(context.Background(), writeTestAudio(t))
	if result.Err == nil {
		t.Fatal("Expected timeout error")
	}
	if !strings.Contains(result.Err.Error(), "failed to check job status") {
		t.Errorf("Wrong timeout error: %v", result.Err)
	}
	if calls := svc.statusCalls.Load(); calls != 5 {
		t.Errorf("Expected exactly 5 status checks, got %d", calls)
	}
}

func TestOrchestratorRemoteFailure(t *testing.T) {
	svc := &remoteService{statusSequence: []string{"Pending", "Failed"}}
	store := &fakeStore{}
	o, closeServer := newTestOrchestrator(t, svc, store)
	defer closeServer()

	result := o.Transcribe(context.Background(), writeTestAudio(t))
	if result.Err == nil {
		t.Fatal("Expected error for remotely failed job")
	}
	if !strings.Contains(result.Err.Error(), "failed remotely") {
		t.Errorf("Wrong error: %v", result.Err)
	}
}

func TestOrchestratorStorageFallbackForResults(t *testing.T) {
	svc := &remoteService{
		statusSequence:  []string{"Completed"},
		resultsNotFound: true,
	}
	store := &fakeStore{
		objects: map[string][]byte{
			"output.json": []byte(`{"transcript": "from storage", "segments": []}`),
			"audio.wav":   []byte("not a result"),
		},
	}
	o, closeServer := newTestOrchestrator(t, svc, store)
	defer closeServer()

	result := o.Transcribe(context.Background(), writeTestAudio(t))
	if result.Err != nil {
		t.Fatalf("Expected storage fallback to recover results: %v", result.Err)
	}

	tr, err := Normalize(result.Raw)
	if err != nil {
		t.Fatalf("Recovered result not normalizable: %v", err)
	}
	if tr.Transcript != "from storage" {
		t.Errorf("Wrong recovered transcript: %q", tr.Transcript)
	}
}

func TestOrchestratorNoResultsAnywhere(t *testing.T) {
	svc := &remoteService{
		statusSequence:  []string{"Completed"},
		resultsNotFound: true,
	}
	store := &fakeStore{objects: map[string][]byte{}}
	o, closeServer := newTestOrchestrator(t, svc, store)
	defer closeServer()

	result := o.Transcribe(context.Background(), writeTestAudio(t))
	if result.Err == nil {
		t.Fatal("Expected no-results error")
	}
	if !strings.Contains(result.Err.Error(), "no results") {
		t.Errorf("Wrong error: %v", result.Err)
	}
}

func TestOrchestratorUploadFailure(t *testing.T) {
	svc := &remoteService{statusSequence: []string{"Completed"}}
	store := &fakeStore{uploadErr: fmt.Errorf("storage unavailable")}
	o, closeServer := newTestOrchestrator(t, svc, store)
	defer closeServer()

	result := o.Transcribe(context.Background(), writeTestAudio(t))
	if result.Err == nil {
		t.Fatal("Expected upload error")
	}
	if !strings.Contains(result.Err.Error(), "upload") {
		t.Errorf("Wrong error: %v", result.Err)
	}
}

func TestOrchestratorPollingCancellable(t *testing.T) {
	svc := &remoteService{statusSequence: []string{"Running"}}
	store := &fakeStore{}
	o, closeServer := newTestOrchestrator(t, svc, store)
	defer closeServer()
	o.SetPollPolicy(10*time.Second, 30)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() {
		done <- o.Transcribe(ctx, writeTestAudio(t))
	}()

	// Give the orchestrator a moment to reach the poll sleep, then abort.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case result := <-done:
		if result.Err == nil {
			t.Fatal("Expected cancellation error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Polling loop not cancelled; orphaned goroutine")
	}
}

func TestOrchestratorDebugDump(t *testing.T) {
	debugDir := t.TempDir()
	svc := &remoteService{
		statusSequence: []string{"Completed"},
		results:        `{"transcript": "dumped", "segments": []}`,
	}
	store := &fakeStore{}
	o, closeServer := newTestOrchestrator(t, svc, store)
	defer closeServer()
	o.debugDir = debugDir

	result := o.Transcribe(context.Background(), writeTestAudio(t))
	if result.Err != nil {
		t.Fatalf("Transcribe failed: %v", result.Err)
	}

	entries, err := os.ReadDir(debugDir)
	if err != nil {
		t.Fatalf("Failed to read debug dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 debug dump, got %d", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "raw_") {
		t.Errorf("Unexpected debug file name: %s", entries[0].Name())
	}
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		apiKey  string
	}{
		{"missing endpoint", "", "key"},
		{"missing api key", "https://api.example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(tt.baseURL, tt.apiKey, time.Second); err == nil {
				t.Error("Expected configuration error")
			}
		})
	}
}
