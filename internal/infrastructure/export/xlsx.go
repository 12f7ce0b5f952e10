package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/docparse-gateway/internal/core/ports"
)

// Service renders XLSX usage reports over recently finished parse jobs.
type Service struct {
	jobs   ports.JobRepository
	logger *slog.Logger
}

func NewService(jobs ports.JobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

// ExportUsageXLSX returns a workbook with one row per job: status, pages,
// credits and cache-hit flag, newest first.
func (s *Service) ExportUsageXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	jobs, err := s.jobs.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs for report: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Usage"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{
		"Submitted At",
		"Filename",
		"Status",
		"Pages",
		"Credits Used",
		"Cache Hit",
		"Error",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	var totalCredits float64
	for _, job := range jobs {
		values := []any{
			job.CreatedAt.UTC().Format(time.RFC3339),
			job.Filename,
			string(job.Status),
			job.Pages,
			job.Usage.CreditsUsed,
			job.Usage.JobIsCacheHit,
			job.Error,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		totalCredits += job.Usage.CreditsUsed
		row++
	}

	totalLabel, _ := excelize.CoordinatesToCellName(4, row)
	totalCell, _ := excelize.CoordinatesToCellName(5, row)
	_ = f.SetCellValue(sheet, totalLabel, "Total")
	_ = f.SetCellValue(sheet, totalCell, totalCredits)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}

	s.logger.Info("usage_report_rendered",
		"jobs", len(jobs),
		"total_credits", totalCredits,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
