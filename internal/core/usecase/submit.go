package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docparse-gateway/internal/core/domain"
	"github.com/kirillkom/docparse-gateway/internal/core/ports"
)

type SubmitDocumentUseCase struct {
	repo    ports.JobRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewSubmitDocumentUseCase(
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *SubmitDocumentUseCase {
	return &SubmitDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *SubmitDocumentUseCase) Submit(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.ParseJob, error) {
	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	job := &domain.ParseJob{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create parse job: %w", err)
	}

	if err := uc.queue.PublishParseRequested(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("publish parse request: %w", err)
	}

	return job, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
