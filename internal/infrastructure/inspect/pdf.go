package inspect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/docparse-gateway/internal/core/domain"
)

// Inspector runs a cheap local preflight before a document is shipped to
// the metered parsing service. PDFs get opened and counted; other types
// pass through untouched since only the remote service understands them.
type Inspector struct {
	maxPages int
}

// New builds an Inspector. maxPages <= 0 disables the page cap.
func New(maxPages int) *Inspector {
	return &Inspector{maxPages: maxPages}
}

func (i *Inspector) Inspect(_ context.Context, mimeType string, data []byte) (domain.DocumentInfo, error) {
	if len(data) == 0 {
		return domain.DocumentInfo{}, domain.WrapError(domain.ErrInvalidInput, "inspect document", errors.New("empty document"))
	}
	if !isPDF(mimeType, data) {
		return domain.DocumentInfo{}, nil
	}

	pages, err := countPages(data)
	if err != nil {
		return domain.DocumentInfo{}, domain.WrapError(domain.ErrInvalidInput, "inspect document", err)
	}
	if pages <= 0 {
		return domain.DocumentInfo{}, domain.WrapError(domain.ErrInvalidInput, "inspect document", errors.New("pdf has no pages"))
	}
	if i.maxPages > 0 && pages > i.maxPages {
		return domain.DocumentInfo{}, domain.WrapError(
			domain.ErrInvalidInput,
			"inspect document",
			fmt.Errorf("pdf has %d pages, limit is %d", pages, i.maxPages),
		)
	}
	return domain.DocumentInfo{Pages: pages}, nil
}

// countPages isolates the pdf library behind a recover; it panics on some
// malformed files instead of returning an error.
func countPages(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("open pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return reader.NumPage(), nil
}

func isPDF(mimeType string, data []byte) bool {
	if strings.EqualFold(strings.TrimSpace(mimeType), "application/pdf") {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}
