package llamaparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// Op names one of the three client operations for error reporting.
type Op string

const (
	OpUpload Op = "upload"
	OpStatus Op = "status"
	OpResult Op = "result"
)

// StatusError is a non-2xx response from the parsing service.
type StatusError struct {
	Op         Op
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("llamaparse %s status: %s", e.Op, e.Status)
	}
	return fmt.Sprintf("llamaparse %s status: %s: %s", e.Op, e.Status, strings.TrimSpace(e.Body))
}

func encodeMultipart(filename string, body io.Reader) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, body); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *Client) postForm(ctx context.Context, path, contentType string, payload []byte, out any, op Op) error {
	return c.do(ctx, http.MethodPost, path, contentType, payload, out, op)
}

func (c *Client) getJSON(ctx context.Context, path string, out any, op Op) error {
	return c.do(ctx, http.MethodGet, path, "", nil, out, op)
}

// do performs one request. The payload is held as bytes so a retrying
// executor can replay it.
func (c *Client) do(ctx context.Context, method, path, contentType string, payload []byte, out any, op Op) error {
	call := func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("llamaparse %s rate limit: %w", op, err)
			}
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("create %s request: %w", op, err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		for k, vals := range c.headers {
			req.Header[k] = vals
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("llamaparse %s request: %w", op, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &StatusError{
				Op:         op,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       string(raw),
			}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", op, err)
		}
		return nil
	}

	if c.executor == nil {
		return call(ctx)
	}
	err := c.executor.Execute(ctx, "llamaparse."+string(op), call, classifyParseError)
	return wrapTemporaryIfNeeded(op, err)
}
