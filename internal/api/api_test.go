package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-shah256/resume-optimizer/internal/docx"
	"github.com/p-shah256/resume-optimizer/internal/optimizer"
	"github.com/p-shah256/resume-optimizer/internal/rewrite"
	"github.com/p-shah256/resume-optimizer/internal/storage"
	"github.com/p-shah256/resume-optimizer/pkg/errors"
	"github.com/p-shah256/resume-optimizer/pkg/types"
)

const jd = "Looking for an engineer with Docker and Kubernetes experience."

type staticGenerator string

func (g staticGenerator) Generate(context.Context, string, string) (string, error) {
	return string(g), nil
}

func resume(t *testing.T, lines ...string) []byte {
	t.Helper()
	b := docx.NewBuilder()
	for _, l := range lines {
		b.AddParagraph(docx.ParagraphSpec{Text: l})
	}
	data, err := b.Bytes()
	require.NoError(t, err)
	return data
}

type part struct {
	field, filename string
	data            []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func newTestServer(t *testing.T, gen rewrite.Generator) (*httptest.Server, *storage.Memory, *optimizer.Service) {
	t.Helper()
	mem := storage.NewMemory()
	svc := optimizer.New(optimizer.Options{
		Rewriter:  rewrite.New(gen, rewrite.WithRetryPolicy(rewrite.RetryPolicy{MaxAttempts: 1})),
		Persister: storage.NewPersister(mem, mem, 0),
	})
	srv := httptest.NewServer(NewServer(0, svc, WithHistory(mem)).Handler())
	t.Cleanup(srv.Close)
	return srv, mem, svc
}

func post(t *testing.T, url string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, contentType, body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) errors.ApiError {
	t.Helper()
	var apiErr errors.ApiError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	return apiErr
}

func TestOptimizeReturnsDocument(t *testing.T) {
	srv, mem, svc := newTestServer(t, staticGenerator(`{"summary": "Engineer running Docker and Kubernetes."}`))

	body, ct := multipartBody(t,
		map[string]string{fieldJobDescription: jd},
		part{fieldFile, "cv.docx", resume(t, "SUMMARY", "Engineer.")})
	resp := post(t, srv.URL+"/api/optimize", body, ct)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, storage.ContentTypeDocx, resp.Header.Get("Content-Type"))
	assert.Equal(t, "attachment; filename=optimized_cv.docx", resp.Header.Get("Content-Disposition"))
	assert.Contains(t, resp.Header.Get("Access-Control-Expose-Headers"), "Content-Disposition")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "0.00", resp.Header.Get("X-Match-Score-Original"))
	assert.Equal(t, "100.00", resp.Header.Get("X-Match-Score-Optimized"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	doc, err := docx.Parse(data)
	require.NoError(t, err)
	assert.Contains(t, doc.Text(), "Engineer running Docker and Kubernetes.")

	svc.Wait()
	recs := mem.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, resp.Header.Get("X-Request-ID"), recs[0].RequestID)
}

func TestOptimizeEmptyUploadWritesNothing(t *testing.T) {
	srv, mem, svc := newTestServer(t, staticGenerator(`{}`))

	body, ct := multipartBody(t,
		map[string]string{fieldJobDescription: jd},
		part{fieldFile, "cv.docx", nil})
	resp := post(t, srv.URL+"/api/optimize", body, ct)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	apiErr := decodeError(t, resp)
	assert.Equal(t, "invalid_upload", apiErr.Kind)
	assert.Equal(t, fieldFile, apiErr.Key)
	assert.NotEmpty(t, apiErr.RequestID)

	svc.Wait()
	assert.Empty(t, mem.Objects())
	assert.Empty(t, mem.Records())
}

func TestOptimizeValidationErrors(t *testing.T) {
	srv, _, _ := newTestServer(t, staticGenerator(`{}`))

	tests := []struct {
		name string
		body func() (*bytes.Buffer, string)
		kind string
		key  string
	}{
		{
			name: "missing file",
			body: func() (*bytes.Buffer, string) {
				return multipartBody(t, map[string]string{fieldJobDescription: jd})
			},
			kind: "invalid_upload", key: fieldFile,
		},
		{
			name: "missing job description",
			body: func() (*bytes.Buffer, string) {
				return multipartBody(t, nil, part{fieldFile, "cv.docx", resume(t, "SUMMARY", "x")})
			},
			kind: "invalid_upload", key: fieldJobDescription,
		},
		{
			name: "not a docx",
			body: func() (*bytes.Buffer, string) {
				return multipartBody(t, map[string]string{fieldJobDescription: jd}, part{fieldFile, "cv.docx", []byte("plain text")})
			},
			kind: "invalid_document", key: fieldFile,
		},
		{
			name: "not multipart",
			body: func() (*bytes.Buffer, string) {
				return bytes.NewBufferString(`{"file": "x"}`), "application/json"
			},
			kind: "invalid_upload",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := tt.body()
			resp := post(t, srv.URL+"/api/optimize", body, ct)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			apiErr := decodeError(t, resp)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.key, apiErr.Key)
		})
	}
}

func TestOptimizeMalformedResponseIs500WithoutProviderBody(t *testing.T) {
	srv, _, _ := newTestServer(t, staticGenerator(`I'm sorry, SECRET-PROVIDER-TEXT`))

	body, ct := multipartBody(t,
		map[string]string{fieldJobDescription: jd},
		part{fieldFile, "cv.docx", resume(t, "SUMMARY", "x")})
	resp := post(t, srv.URL+"/api/optimize", body, ct)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "malformed_response")
	assert.NotContains(t, string(raw), "SECRET-PROVIDER-TEXT")
}

func TestExtractAndMatch(t *testing.T) {
	srv, _, _ := newTestServer(t, staticGenerator(`{}`))
	cv := resume(t, "Jane Doe", "SKILLS", "Docker")

	body, ct := multipartBody(t, nil, part{fieldFile, "cv.docx", cv})
	resp := post(t, srv.URL+"/api/extract", body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var secs types.SectionMap
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&secs))
	assert.Equal(t, []string{"header", "skills"}, secs.Keys())

	body, ct = multipartBody(t, map[string]string{fieldJobDescription: jd}, part{fieldFile, "cv.docx", cv})
	resp = post(t, srv.URL+"/api/match", body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report types.MatchReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, 50.0, report.SkillsScore)
	assert.Equal(t, []string{"Kubernetes"}, report.MissingSkills)
}

func TestFormat(t *testing.T) {
	srv, _, _ := newTestServer(t, staticGenerator(`{}`))
	b := docx.NewBuilder()
	b.AddParagraph(docx.ParagraphSpec{Text: "Education", Style: docx.StyleHeading1})
	b.AddParagraph(docx.ParagraphSpec{Text: "BSc"})
	cv, err := b.Bytes()
	require.NoError(t, err)

	body, ct := multipartBody(t, nil, part{fieldFile, "My CV.docx", cv})
	resp := post(t, srv.URL+"/api/format", body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "attachment; filename=formatted_My_CV.docx", resp.Header.Get("Content-Disposition"))
}

func TestHistory(t *testing.T) {
	srv, mem, _ := newTestServer(t, staticGenerator(`{}`))
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, mem.Record(context.Background(), types.OptimizationRecord{ID: id}))
	}

	resp, err := http.Get(srv.URL + "/api/history?limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var recs []types.OptimizationRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].ID)

	resp2, err := http.Get(srv.URL + "/api/history?limit=zero")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestHealthAndMethods(t *testing.T) {
	srv, _, _ := newTestServer(t, staticGenerator(`{}`))

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])

	resp2, err := http.Get(srv.URL + "/api/optimize")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
	assert.Equal(t, http.MethodPost, resp2.Header.Get("Allow"))

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/optimize", nil)
	require.NoError(t, err)
	resp3, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusOK, resp3.StatusCode)
	assert.Equal(t, "*", resp3.Header.Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	h := Chain(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, RateLimit(1, 2))

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		h(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	h(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecover(t *testing.T) {
	panics := func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}
	tests := []struct {
		name string
		h    http.HandlerFunc
	}{
		{"request id outermost", Chain(panics, RequestID, Recover)},
		{"recover outermost", Chain(panics, Recover, RequestID)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, rec.Body.String(), "boom")

			var apiErr errors.ApiError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
			assert.NotEmpty(t, apiErr.RequestID)
			assert.Equal(t, rec.Header().Get("X-Request-ID"), apiErr.RequestID)
		})
	}
}

func TestHistoryDisabled(t *testing.T) {
	srv := httptest.NewServer(NewServer(0, optimizer.New(optimizer.Options{})).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
