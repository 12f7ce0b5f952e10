package httpadapter

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/docparse-gateway/internal/core/domain"
	"github.com/kirillkom/docparse-gateway/internal/core/ports"
	"github.com/kirillkom/docparse-gateway/internal/observability/metrics"
)

const maxUploadBytes = 64 << 20

type Router struct {
	submitUC ports.DocumentSubmitter
	jobs     ports.JobReader
	storage  ports.ObjectStorage
	reporter ports.UsageReporter
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	submitUC ports.DocumentSubmitter,
	jobs ports.JobReader,
	storage ports.ObjectStorage,
	reporter ports.UsageReporter,
	m *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		submitUC: submitUC,
		jobs:     jobs,
		storage:  storage,
		reporter: reporter,
		metrics:  m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.submitDocument)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	mux.HandleFunc("/v1/reports/usage.xlsx", rt.usageReport)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) submitDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	job, err := rt.submitUC.Submit(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch sub {
	case "":
		rt.getJob(w, r, id)
	case "markdown":
		rt.getMarkdown(w, r, id)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown resource"})
	}
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request, id string) {
	job, err := rt.jobs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) getMarkdown(w http.ResponseWriter, r *http.Request, id string) {
	job, err := rt.jobs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if job.Status != domain.StatusReady || job.MarkdownPath == "" {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "parse result is not ready",
			"status": string(job.Status),
		})
		return
	}

	rc, err := rt.storage.Open(r.Context(), job.MarkdownPath)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func (rt *Router) usageReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	raw, err := rt.reporter.ExportUsageXLSX(r.Context(), 500)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="usage.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
