package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/docparse-gateway/internal/core/domain"
	"github.com/kirillkom/docparse-gateway/internal/core/ports"
)

type ProcessJobUseCase struct {
	repo      ports.JobRepository
	storage   ports.ObjectStorage
	inspector ports.DocumentInspector
	parser    ports.DocumentParser
}

func NewProcessJobUseCase(
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	inspector ports.DocumentInspector,
	parser ports.DocumentParser,
) *ProcessJobUseCase {
	return &ProcessJobUseCase{
		repo:      repo,
		storage:   storage,
		inspector: inspector,
		parser:    parser,
	}
}

func (uc *ProcessJobUseCase) ProcessByID(ctx context.Context, jobID string) error {
	if err := uc.markStatus(ctx, jobID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, jobID); err != nil {
		if failErr := uc.markFailed(ctx, jobID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, jobID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	return nil
}

func (uc *ProcessJobUseCase) processPipeline(ctx context.Context, jobID string) error {
	job, err := uc.loadJob(ctx, jobID)
	if err != nil {
		return err
	}

	data, err := uc.readSource(ctx, job)
	if err != nil {
		return err
	}

	info, err := uc.inspect(ctx, job, data)
	if err != nil {
		return err
	}

	remoteID, result, err := uc.parse(ctx, job, data)
	if err != nil {
		return err
	}

	markdownKey, err := uc.saveMarkdown(ctx, job, result)
	if err != nil {
		return err
	}

	pages := result.Usage.JobPages
	if pages == 0 {
		pages = info.Pages
	}
	if err := uc.repo.SaveResult(ctx, job.ID, remoteID, markdownKey, pages, result.Usage); err != nil {
		return fmt.Errorf("save parse result: %w", err)
	}
	return nil
}

func (uc *ProcessJobUseCase) loadJob(ctx context.Context, jobID string) (*domain.ParseJob, error) {
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetch parse job by id: %w", err)
	}
	return job, nil
}

func (uc *ProcessJobUseCase) readSource(ctx context.Context, job *domain.ParseJob) ([]byte, error) {
	rc, err := uc.storage.Open(ctx, job.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	return data, nil
}

func (uc *ProcessJobUseCase) inspect(ctx context.Context, job *domain.ParseJob, data []byte) (domain.DocumentInfo, error) {
	info, err := uc.inspector.Inspect(ctx, job.MimeType, data)
	if err != nil {
		return domain.DocumentInfo{}, fmt.Errorf("preflight document: %w", err)
	}
	return info, nil
}

func (uc *ProcessJobUseCase) parse(ctx context.Context, job *domain.ParseJob, data []byte) (string, *domain.ParseResult, error) {
	remoteID, err := uc.parser.Upload(ctx, job.Filename, bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("upload to parsing service: %w", err)
	}

	result, err := uc.parser.WaitForResult(ctx, remoteID)
	if err != nil {
		return "", nil, fmt.Errorf("wait for parse result: %w", err)
	}
	return remoteID, result, nil
}

func (uc *ProcessJobUseCase) saveMarkdown(ctx context.Context, job *domain.ParseJob, result *domain.ParseResult) (string, error) {
	key := job.ID + ".md"
	if err := uc.storage.Save(ctx, key, strings.NewReader(result.Markdown)); err != nil {
		return "", fmt.Errorf("save markdown result: %w", err)
	}
	return key, nil
}

func (uc *ProcessJobUseCase) markStatus(ctx context.Context, jobID string, status domain.ParseJobStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, jobID, status, errMessage)
}

func (uc *ProcessJobUseCase) markFailed(ctx context.Context, jobID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, jobID, domain.StatusFailed, processErr.Error())
}
