package llamaparse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/docparse-gateway/internal/core/domain"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{APIKey: ""}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if _, err := New(Config{APIKey: "   "}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey for blank key, got %v", err)
	}
}

func TestUploadSendsBearerAndMultipartFile(t *testing.T) {
	var gotAuth, gotAccept, gotBody, gotFilename string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/upload" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("read multipart file: %v", err)
		}
		defer file.Close()
		raw := make([]byte, 64)
		n, _ := file.Read(raw)
		gotBody = string(raw[:n])
		gotFilename = header.Filename
		_, _ = w.Write([]byte(`{"id":"job-42","status":"PENDING"}`))
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "secret", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	jobID, err := client.Upload(context.Background(), "scan.pdf", strings.NewReader("%PDF-fake"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if jobID != "job-42" {
		t.Fatalf("expected job id job-42, got %s", jobID)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}
	if gotAccept != "application/json" {
		t.Fatalf("expected accept json header, got %q", gotAccept)
	}
	if gotFilename != "scan.pdf" {
		t.Fatalf("expected filename scan.pdf, got %s", gotFilename)
	}
	if gotBody != "%PDF-fake" {
		t.Fatalf("expected file body round-trip, got %q", gotBody)
	}
}

func TestCallerHeadersOverrideDefaults(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"status":"PENDING"}`))
	}))
	defer server.Close()

	client, err := New(Config{
		APIKey:  "secret",
		BaseURL: server.URL,
		Headers: map[string]string{"Authorization": "Token custom"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.CheckStatus(context.Background(), "job-1"); err != nil {
		t.Fatalf("CheckStatus() error = %v", err)
	}
	if gotAuth != "Token custom" {
		t.Fatalf("expected caller auth header to win, got %q", gotAuth)
	}
}

func TestUploadSurfacesStatusText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer server.Close()

	client, _ := New(Config{APIKey: "secret", BaseURL: server.URL})
	_, err := client.Upload(context.Background(), "scan.pdf", strings.NewReader("data"))
	if err == nil {
		t.Fatalf("expected error")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Op != OpUpload {
		t.Fatalf("expected upload op, got %s", statusErr.Op)
	}
	if !strings.Contains(err.Error(), "402") {
		t.Fatalf("expected status text in error, got %v", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestCheckStatusRoundTripsServerFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/job/job-7" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"status":"FAILED","error":"bad scan"}`))
	}))
	defer server.Close()

	client, _ := New(Config{APIKey: "secret", BaseURL: server.URL})
	state, err := client.CheckStatus(context.Background(), "job-7")
	if err != nil {
		t.Fatalf("CheckStatus() error = %v", err)
	}
	if state.Status != domain.JobFailed {
		t.Fatalf("expected FAILED, got %s", state.Status)
	}
	if state.Error != "bad scan" {
		t.Fatalf("expected server error round-trip, got %q", state.Error)
	}
}

func TestCheckStatusRejectsEmptyJobID(t *testing.T) {
	client, _ := New(Config{APIKey: "secret"})
	if _, err := client.CheckStatus(context.Background(), ""); !errors.Is(err, ErrEmptyJobID) {
		t.Fatalf("expected ErrEmptyJobID, got %v", err)
	}
	if _, err := client.GetResult(context.Background(), ""); !errors.Is(err, ErrEmptyJobID) {
		t.Fatalf("expected ErrEmptyJobID, got %v", err)
	}
}

func TestParsePollsUntilSuccess(t *testing.T) {
	statuses := []string{"PENDING", "PENDING", "SUCCESS"}
	statusCalls := 0
	var pollTimes []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/upload":
			_, _ = w.Write([]byte(`{"id":"job-1","status":"PENDING"}`))
		case r.URL.Path == "/job/job-1/result/markdown":
			_, _ = w.Write([]byte(`{"markdown":"# Title","job_metadata":{"credits_used":1,"job_pages":2,"job_is_cache_hit":true}}`))
		case r.URL.Path == "/job/job-1":
			pollTimes = append(pollTimes, time.Now())
			_, _ = w.Write([]byte(`{"status":"` + statuses[statusCalls] + `"}`))
			statusCalls++
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	interval := 20 * time.Millisecond
	client, _ := New(Config{APIKey: "secret", BaseURL: server.URL}, WithPollInterval(interval))

	result, err := client.Parse(context.Background(), "scan.pdf", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Markdown != "# Title" {
		t.Fatalf("expected markdown round-trip, got %q", result.Markdown)
	}
	if result.Usage.JobPages != 2 || !result.Usage.JobIsCacheHit {
		t.Fatalf("unexpected usage metadata: %+v", result.Usage)
	}
	if statusCalls != 3 {
		t.Fatalf("expected exactly 3 status polls, got %d", statusCalls)
	}
	for i := 1; i < len(pollTimes); i++ {
		if spacing := pollTimes[i].Sub(pollTimes[i-1]); spacing < interval {
			t.Fatalf("expected >= %v between polls, got %v", interval, spacing)
		}
	}
}

func TestParseFailedShortCircuitsResultFetch(t *testing.T) {
	resultCalled := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/upload":
			_, _ = w.Write([]byte(`{"id":"job-1","status":"PENDING"}`))
		case r.URL.Path == "/job/job-1/result/markdown":
			resultCalled = true
			_, _ = w.Write([]byte(`{"markdown":""}`))
		case r.URL.Path == "/job/job-1":
			_, _ = w.Write([]byte(`{"status":"FAILED","error":"bad scan"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, _ := New(Config{APIKey: "secret", BaseURL: server.URL}, WithPollInterval(time.Millisecond))
	_, err := client.Parse(context.Background(), "scan.pdf", strings.NewReader("data"))
	if err == nil {
		t.Fatalf("expected error")
	}

	var failedErr *ParseFailedError
	if !errors.As(err, &failedErr) {
		t.Fatalf("expected ParseFailedError, got %v", err)
	}
	if !strings.Contains(failedErr.Reason, "bad scan") {
		t.Fatalf("expected server reason, got %q", failedErr.Reason)
	}
	if !domain.IsKind(err, domain.ErrParseFailed) {
		t.Fatalf("expected ErrParseFailed kind, got %v", err)
	}
	if resultCalled {
		t.Fatalf("result endpoint must not be called for a failed job")
	}
}

func TestParseHonorsPollTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/upload" {
			_, _ = w.Write([]byte(`{"id":"job-1","status":"PENDING"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"PENDING"}`))
	}))
	defer server.Close()

	client, _ := New(
		Config{APIKey: "secret", BaseURL: server.URL},
		WithPollInterval(5*time.Millisecond),
		WithPollTimeout(30*time.Millisecond),
	)

	_, err := client.Parse(context.Background(), "scan.pdf", strings.NewReader("data"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
