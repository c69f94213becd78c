package api

import (
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/p-shah256/resume-optimizer/internal/optimizer"
	"github.com/p-shah256/resume-optimizer/internal/storage"
	"github.com/p-shah256/resume-optimizer/pkg/errors"
	"github.com/p-shah256/resume-optimizer/pkg/logger"
)

// Multipart field names.
const (
	fieldFile           = "file"
	fieldTemplate       = "template"
	fieldJobDescription = "job_description"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	// multipart overhead allowed on top of the document limits
	formSlack = 1 << 20
)

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r, 2) {
		return
	}
	name, data, err := s.formFile(r, fieldFile, true)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	tmplName, tmpl, err := s.formFile(r, fieldTemplate, false)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	res, err := s.svc.Optimize(r.Context(), optimizer.Upload{
		Filename:       name,
		Data:           data,
		JobDescription: r.FormValue(fieldJobDescription),
		Template:       tmpl,
		TemplateName:   tmplName,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	w.Header().Set("X-Match-Score-Original", formatScore(res.OriginalScore))
	w.Header().Set("X-Match-Score-Optimized", formatScore(res.OptimizedScore))
	writeDocx(w, r, res.Filename, res.Document)
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r, 1) {
		return
	}
	name, data, err := s.formFile(r, fieldFile, true)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	out, err := s.svc.Format(r.Context(), name, data)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeDocx(w, r, "formatted_"+storage.SanitizeFilename(name), out)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r, 1) {
		return
	}
	name, data, err := s.formFile(r, fieldFile, true)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	secs, err := s.svc.Extract(r.Context(), name, data)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, secs)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r, 1) {
		return
	}
	name, data, err := s.formFile(r, fieldFile, true)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	report, err := s.svc.Match(r.Context(), name, data, r.FormValue(fieldJobDescription))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, report)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GetRequestID(r.Context())
	if s.history == nil {
		RespondWithError(w, errors.ErrNotFound("history is not enabled for this storage driver").WithRequestID(requestID))
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			RespondWithError(w, errors.ErrBadRequest("limit must be a positive integer").WithRequestID(requestID))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	recs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to list history", "component", "api", "error", err)
		RespondWithError(w, errors.ErrServiceUnavailable("history is unavailable").WithRequestID(requestID))
		return
	}
	RespondWithJSON(w, http.StatusOK, recs)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// parseForm reads a multipart body holding up to docs documents.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request, docs int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, docs*s.maxUpload+formSlack)
	if err := r.ParseMultipartForm(s.maxUpload + formSlack); err != nil {
		detail := "expected a multipart/form-data body"
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			detail = fmt.Sprintf("request body exceeds %d MB", (docs*s.maxUpload+formSlack)>>20)
		}
		s.respondErr(w, r, errors.E(errors.InvalidUpload, "api.parse_form", err).WithDetail(detail))
		return false
	}
	return true
}

// formFile reads one uploaded file. A missing optional file yields empty
// results and no error.
func (s *Server) formFile(r *http.Request, field string, required bool) (string, []byte, error) {
	const op = "api.form_file"
	f, hdr, err := r.FormFile(field)
	if err != nil {
		if stderrors.Is(err, http.ErrMissingFile) {
			if !required {
				return "", nil, nil
			}
			return "", nil, errors.E(errors.InvalidUpload, op, err).WithKey(field).WithDetail("file is required")
		}
		return "", nil, errors.E(errors.InvalidUpload, op, err).WithKey(field)
	}
	defer f.Close()

	data, err := readLimited(f, s.maxUpload)
	if err != nil {
		return "", nil, errors.E(errors.InvalidUpload, op, err).WithKey(field).WithDetail(err.Error())
	}
	return hdr.Filename, data, nil
}

func readLimited(f multipart.File, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds %d MB", limit>>20)
	}
	return data, nil
}

func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := errors.FromError(err).WithRequestID(logger.GetRequestID(r.Context()))
	if apiErr.StatusCode() >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "component", "api", "path", r.URL.Path, "error", err)
	}
	RespondWithError(w, apiErr)
}

func writeDocx(w http.ResponseWriter, r *http.Request, filename string, data []byte) {
	w.Header().Set("Content-Type", storage.ContentTypeDocx)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.FromContext(r.Context()).Warn("failed to write document", "component", "api", "error", err)
	}
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
