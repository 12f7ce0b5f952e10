package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docparse-gateway/internal/core/domain"
)

// DocumentSubmitter is the inbound contract for accepting documents.
type DocumentSubmitter interface {
	Submit(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.ParseJob, error)
}

// JobReader is the inbound read model for parse-job metadata/state.
type JobReader interface {
	GetByID(ctx context.Context, id string) (*domain.ParseJob, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ParseJob, error)
}

// JobProcessor is the inbound contract for asynchronous job processing.
type JobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}

// UsageReporter renders a usage report over finished jobs.
type UsageReporter interface {
	ExportUsageXLSX(ctx context.Context, limit int) ([]byte, error)
}
