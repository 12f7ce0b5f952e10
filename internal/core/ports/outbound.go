package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docparse-gateway/internal/core/domain"
)

// JobRepository persists and reads parse-job state.
type JobRepository interface {
	Create(ctx context.Context, job *domain.ParseJob) error
	GetByID(ctx context.Context, id string) (*domain.ParseJob, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ParseJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.ParseJobStatus, errMessage string) error
	SaveResult(ctx context.Context, id string, remoteJobID, markdownPath string, pages int, usage domain.UsageMetadata) error
}

// ObjectStorage stores source documents and markdown results.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes parse-requested events.
type MessageQueue interface {
	PublishParseRequested(ctx context.Context, jobID string) error
	SubscribeParseRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// DocumentParser submits a document to the remote parsing service and
// waits out the job until a terminal status.
type DocumentParser interface {
	Upload(ctx context.Context, filename string, body io.Reader) (remoteJobID string, err error)
	WaitForResult(ctx context.Context, remoteJobID string) (*domain.ParseResult, error)
}

// DocumentInspector validates a source document before upload.
type DocumentInspector interface {
	Inspect(ctx context.Context, mimeType string, data []byte) (domain.DocumentInfo, error)
}
