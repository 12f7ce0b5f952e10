package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/docparse-gateway/internal/core/domain"
)

type statusCall struct {
	status domain.ParseJobStatus
	errMsg string
}

type processRepoFake struct {
	job         *domain.ParseJob
	getErr      error
	saveErr     error
	statusCalls []statusCall

	savedRemoteID string
	savedMarkdown string
	savedPages    int
	savedUsage    domain.UsageMetadata
}

func (f *processRepoFake) Create(context.Context, *domain.ParseJob) error { return nil }

func (f *processRepoFake) GetByID(context.Context, string) (*domain.ParseJob, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyJob := *f.job
	return &copyJob, nil
}

func (f *processRepoFake) ListRecent(context.Context, int) ([]domain.ParseJob, error) {
	return nil, errors.New("not implemented")
}

func (f *processRepoFake) UpdateStatus(_ context.Context, _ string, status domain.ParseJobStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	return nil
}

func (f *processRepoFake) SaveResult(_ context.Context, _ string, remoteJobID, markdownPath string, pages int, usage domain.UsageMetadata) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedRemoteID = remoteJobID
	f.savedMarkdown = markdownPath
	f.savedPages = pages
	f.savedUsage = usage
	return nil
}

type processStorageFake struct {
	source    string
	openErr   error
	saveErr   error
	savedKey  string
	savedBody string
}

func (f *processStorageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *processStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return io.NopCloser(strings.NewReader(f.source)), nil
}

type inspectorFake struct {
	info domain.DocumentInfo
	err  error
}

func (f *inspectorFake) Inspect(context.Context, string, []byte) (domain.DocumentInfo, error) {
	if f.err != nil {
		return domain.DocumentInfo{}, f.err
	}
	return f.info, nil
}

type parserFake struct {
	remoteID  string
	uploadErr error
	result    *domain.ParseResult
	waitErr   error

	uploadedFilename string
	uploadedBody     string
	waitedID         string
}

func (f *parserFake) Upload(_ context.Context, filename string, body io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	raw, _ := io.ReadAll(body)
	f.uploadedFilename = filename
	f.uploadedBody = string(raw)
	return f.remoteID, nil
}

func (f *parserFake) WaitForResult(_ context.Context, remoteJobID string) (*domain.ParseResult, error) {
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	f.waitedID = remoteJobID
	return f.result, nil
}

func TestProcessByIDSuccess(t *testing.T) {
	repo := &processRepoFake{job: &domain.ParseJob{
		ID:          "job-1",
		Filename:    "scan.pdf",
		MimeType:    "application/pdf",
		StoragePath: "job-1_scan.pdf",
	}}
	storage := &processStorageFake{source: "%PDF-data"}
	parser := &parserFake{
		remoteID: "remote-9",
		result: &domain.ParseResult{
			Markdown: "# Title",
			Usage:    domain.UsageMetadata{CreditsUsed: 2, JobPages: 4},
		},
	}
	uc := NewProcessJobUseCase(repo, storage, &inspectorFake{info: domain.DocumentInfo{Pages: 4}}, parser)

	if err := uc.ProcessByID(context.Background(), "job-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	wantStatuses := []domain.ParseJobStatus{domain.StatusProcessing, domain.StatusReady}
	if len(repo.statusCalls) != len(wantStatuses) {
		t.Fatalf("expected %d status updates, got %d", len(wantStatuses), len(repo.statusCalls))
	}
	for i, want := range wantStatuses {
		if repo.statusCalls[i].status != want {
			t.Fatalf("status update %d: expected %s, got %s", i, want, repo.statusCalls[i].status)
		}
	}
	if parser.uploadedFilename != "scan.pdf" || parser.uploadedBody != "%PDF-data" {
		t.Fatalf("unexpected upload: %s %q", parser.uploadedFilename, parser.uploadedBody)
	}
	if parser.waitedID != "remote-9" {
		t.Fatalf("expected wait on remote-9, got %s", parser.waitedID)
	}
	if storage.savedKey != "job-1.md" || storage.savedBody != "# Title" {
		t.Fatalf("unexpected markdown save: %s %q", storage.savedKey, storage.savedBody)
	}
	if repo.savedRemoteID != "remote-9" || repo.savedMarkdown != "job-1.md" || repo.savedPages != 4 {
		t.Fatalf("unexpected saved result: %s %s %d", repo.savedRemoteID, repo.savedMarkdown, repo.savedPages)
	}
	if repo.savedUsage.CreditsUsed != 2 {
		t.Fatalf("expected usage persisted, got %+v", repo.savedUsage)
	}
}

func TestProcessByIDFallsBackToInspectedPages(t *testing.T) {
	repo := &processRepoFake{job: &domain.ParseJob{ID: "job-1", StoragePath: "job-1_a.pdf"}}
	parser := &parserFake{remoteID: "remote-1", result: &domain.ParseResult{Markdown: "x"}}
	uc := NewProcessJobUseCase(repo, &processStorageFake{source: "data"}, &inspectorFake{info: domain.DocumentInfo{Pages: 7}}, parser)

	if err := uc.ProcessByID(context.Background(), "job-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if repo.savedPages != 7 {
		t.Fatalf("expected inspected page count fallback, got %d", repo.savedPages)
	}
}

func TestProcessByIDMarksFailedOnParseError(t *testing.T) {
	repo := &processRepoFake{job: &domain.ParseJob{ID: "job-1", StoragePath: "job-1_a.pdf"}}
	storage := &processStorageFake{source: "data"}
	parser := &parserFake{remoteID: "remote-1", waitErr: errors.New("job remote-1 failed: bad scan")}
	uc := NewProcessJobUseCase(repo, storage, &inspectorFake{}, parser)

	err := uc.ProcessByID(context.Background(), "job-1")
	if err == nil {
		t.Fatalf("expected error")
	}

	last := repo.statusCalls[len(repo.statusCalls)-1]
	if last.status != domain.StatusFailed {
		t.Fatalf("expected failed status, got %s", last.status)
	}
	if !strings.Contains(last.errMsg, "bad scan") {
		t.Fatalf("expected failure reason recorded, got %q", last.errMsg)
	}
	if storage.savedKey != "" {
		t.Fatalf("markdown must not be saved for a failed parse")
	}
}

func TestProcessByIDMarksFailedOnPreflightError(t *testing.T) {
	repo := &processRepoFake{job: &domain.ParseJob{ID: "job-1", StoragePath: "job-1_a.pdf"}}
	inspector := &inspectorFake{err: domain.WrapError(domain.ErrInvalidInput, "inspect document", errors.New("pdf has no pages"))}
	parser := &parserFake{remoteID: "remote-1", result: &domain.ParseResult{}}
	uc := NewProcessJobUseCase(repo, &processStorageFake{source: "data"}, inspector, parser)

	err := uc.ProcessByID(context.Background(), "job-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if parser.uploadedFilename != "" {
		t.Fatalf("document must not be uploaded when preflight fails")
	}
	last := repo.statusCalls[len(repo.statusCalls)-1]
	if last.status != domain.StatusFailed {
		t.Fatalf("expected failed status, got %s", last.status)
	}
}
