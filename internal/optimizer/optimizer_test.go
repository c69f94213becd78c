package optimizer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-shah256/resume-optimizer/internal/docx"
	"github.com/p-shah256/resume-optimizer/internal/rewrite"
	"github.com/p-shah256/resume-optimizer/internal/storage"
	"github.com/p-shah256/resume-optimizer/pkg/errors"
	"github.com/p-shah256/resume-optimizer/pkg/types"
)

const jobDescription = "We need a backend engineer with Go, Docker and Kubernetes. 3+ years of experience required."

type fakeGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.reply, f.err
}

func resumeDocx(t *testing.T, lines ...string) []byte {
	t.Helper()
	b := docx.NewBuilder()
	for _, l := range lines {
		b.AddParagraph(docx.ParagraphSpec{Text: l})
	}
	data, err := b.Bytes()
	require.NoError(t, err)
	return data
}

func styledDocx(t *testing.T) []byte {
	t.Helper()
	b := docx.NewBuilder()
	b.AddParagraph(docx.ParagraphSpec{Text: "Jane Doe"})
	b.AddParagraph(docx.ParagraphSpec{Text: "Experience", Style: docx.StyleHeading1})
	b.AddParagraph(docx.ParagraphSpec{Text: "Acme Corp"})
	b.AddParagraph(docx.ParagraphSpec{Text: "Skills", Style: docx.StyleHeading1})
	b.AddParagraph(docx.ParagraphSpec{Text: "Go, SQL"})
	data, err := b.Bytes()
	require.NoError(t, err)
	return data
}

func newService(gen rewrite.Generator, mem *storage.Memory) *Service {
	return New(Options{
		Rewriter:  rewrite.New(gen, rewrite.WithRetryPolicy(rewrite.RetryPolicy{MaxAttempts: 2})),
		Persister: storage.NewPersister(mem, mem, 0),
	})
}

func objectNames(mem *storage.Memory) []string {
	var names []string
	for _, o := range mem.Objects() {
		names = append(names, o.Name)
	}
	return names
}

func TestOptimizeEndToEnd(t *testing.T) {
	mem := storage.NewMemory()
	gen := &fakeGenerator{reply: "```json\n" + `{"header": "Jane Doe", "summary": "Go engineer shipping Docker services.", "skills": "Go, Docker\nKubernetes"}` + "\n```"}
	svc := newService(gen, mem)

	res, err := svc.Optimize(context.Background(), Upload{
		Filename:       "My Resume.docx",
		Data:           resumeDocx(t, "Jane Doe", "SUMMARY", "Backend engineer.", "SKILLS", "Go", "Python"),
		JobDescription: jobDescription,
	})
	require.NoError(t, err)

	assert.Equal(t, "optimized_My_Resume.docx", res.Filename)
	assert.Equal(t, []string{"header", "summary", "skills"}, res.Rewritten.Keys())
	assert.Empty(t, res.Fallbacks)
	assert.Equal(t, 1, res.Attempts)
	assert.Greater(t, res.OptimizedScore, res.OriginalScore)

	doc, err := docx.Parse(res.Document)
	require.NoError(t, err)
	assert.Contains(t, doc.Text(), "Go engineer shipping Docker services.")

	svc.Wait()
	names := strings.Join(objectNames(mem), " ")
	for _, prefix := range []string{storage.PrefixOriginal, storage.PrefixOptimized, storage.PrefixSections, storage.PrefixRewritten, storage.PrefixJob} {
		assert.Contains(t, names, prefix+"_")
	}

	recs := mem.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, statusSucceeded, recs[0].Status)
	assert.Equal(t, 3, recs[0].SectionCount)
	assert.NotEmpty(t, recs[0].ID)
}

func TestOptimizeWithTemplate(t *testing.T) {
	mem := storage.NewMemory()
	gen := &fakeGenerator{reply: `{"summary": "Tailored summary.", "skills": "Go"}`}
	svc := newService(gen, mem)

	res, err := svc.Optimize(context.Background(), Upload{
		Filename:       "cv.docx",
		Data:           resumeDocx(t, "SUMMARY", "Old summary.", "SKILLS", "Go"),
		JobDescription: jobDescription,
		Template:       resumeDocx(t, "Profile", "{{ summary }}", "Toolbox: {{skills}}"),
		TemplateName:   "template.docx",
	})
	require.NoError(t, err)

	doc, err := docx.Parse(res.Document)
	require.NoError(t, err)
	var texts []string
	for _, p := range doc.Paragraphs() {
		texts = append(texts, p.Text)
	}
	assert.Equal(t, []string{"Profile", "Tailored summary.", "Toolbox: Go"}, texts)
}

func TestOptimizeFallbackOnMissingKey(t *testing.T) {
	mem := storage.NewMemory()
	svc := newService(&fakeGenerator{reply: `{"summary": "New."}`}, mem)

	res, err := svc.Optimize(context.Background(), Upload{
		Filename:       "cv.docx",
		Data:           resumeDocx(t, "SUMMARY", "Old.", "EDUCATION", "BSc"),
		JobDescription: jobDescription,
	})
	require.NoError(t, err)
	require.Len(t, res.Fallbacks, 1)
	assert.Equal(t, "education", res.Fallbacks[0].Key)
	v, _ := res.Rewritten.Get("education")
	assert.Equal(t, "BSc", v)
	svc.Wait()
	assert.Equal(t, 1, mem.Records()[0].FallbackCount)
}

func TestOptimizeRejectsBadUploadsWithoutWriting(t *testing.T) {
	valid := resumeDocx(t, "SUMMARY", "x")
	tests := []struct {
		name string
		up   Upload
		key  string
	}{
		{"empty file", Upload{Filename: "cv.docx", JobDescription: jobDescription}, "file"},
		{"wrong extension", Upload{Filename: "cv.pdf", Data: valid, JobDescription: jobDescription}, "file"},
		{"missing job description", Upload{Filename: "cv.docx", Data: valid, JobDescription: "  \n "}, "job_description"},
		{"template without data", Upload{Filename: "cv.docx", Data: valid, JobDescription: jobDescription, TemplateName: "t.docx"}, "template"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := storage.NewMemory()
			gen := &fakeGenerator{reply: `{}`}
			svc := newService(gen, mem)

			_, err := svc.Optimize(context.Background(), tt.up)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.InvalidUpload))
			var e *errors.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.key, e.Key)

			svc.Wait()
			assert.Empty(t, mem.Objects())
			assert.Empty(t, mem.Records())
			assert.Zero(t, gen.calls)
		})
	}
}

func TestOptimizeRejectsOversizedUpload(t *testing.T) {
	svc := New(Options{MaxUploadBytes: 10})
	_, err := svc.Optimize(context.Background(), Upload{Filename: "cv.docx", Data: make([]byte, 11), JobDescription: jobDescription})
	assert.True(t, errors.Is(err, errors.InvalidUpload))
}

func TestOptimizeInvalidDocument(t *testing.T) {
	mem := storage.NewMemory()
	svc := newService(&fakeGenerator{}, mem)

	_, err := svc.Optimize(context.Background(), Upload{Filename: "cv.docx", Data: []byte("not a zip"), JobDescription: jobDescription})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.InvalidDocument))
	svc.Wait()
	assert.Empty(t, mem.Objects())

	recs := mem.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, statusFailed, recs[0].Status)
	assert.Equal(t, "invalid_document", recs[0].Error)
}

func TestOptimizeRewriteFailureKeepsOriginalArtifacts(t *testing.T) {
	mem := storage.NewMemory()
	gen := &fakeGenerator{err: fmt.Errorf("quota exceeded")}
	svc := newService(gen, mem)

	_, err := svc.Optimize(context.Background(), Upload{
		Filename:       "cv.docx",
		Data:           resumeDocx(t, "SUMMARY", "x"),
		JobDescription: jobDescription,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.RewriteUnavailable))
	assert.Equal(t, 2, gen.calls)

	svc.Wait()
	names := strings.Join(objectNames(mem), " ")
	assert.Contains(t, names, storage.PrefixOriginal+"_")
	assert.NotContains(t, names, storage.PrefixOptimized+"_")
	assert.Equal(t, statusFailed, mem.Records()[0].Status)
}

func TestOptimizeUnresolvedPlaceholder(t *testing.T) {
	svc := newService(&fakeGenerator{reply: `{"summary": "s"}`}, storage.NewMemory())
	_, err := svc.Optimize(context.Background(), Upload{
		Filename:       "cv.docx",
		Data:           resumeDocx(t, "SUMMARY", "x"),
		JobDescription: jobDescription,
		Template:       resumeDocx(t, "{{ projects }}"),
		TemplateName:   "t.docx",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.UnresolvedPlaceholder))
}

func TestOptimizeSucceedsWhenStorageFails(t *testing.T) {
	svc := New(Options{
		Rewriter:  rewrite.Passthrough{},
		Persister: storage.NewPersister(brokenStore{}, brokenStore{}, 0),
	})
	res, err := svc.Optimize(context.Background(), Upload{
		Filename:       "cv.docx",
		Data:           resumeDocx(t, "SUMMARY", "x"),
		JobDescription: jobDescription,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Document)
	svc.Wait()
}

func TestOptimizeDoesNotWaitForStorage(t *testing.T) {
	store := &hungStore{}
	svc := New(Options{
		Rewriter:  rewrite.Passthrough{},
		Persister: storage.NewPersister(store, store, 300*time.Millisecond),
	})

	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	res, err := svc.Optimize(ctx, Upload{
		Filename:       "cv.docx",
		Data:           resumeDocx(t, "SUMMARY", "x"),
		JobDescription: jobDescription,
	})
	elapsed := time.Since(start)
	cancel()
	require.NoError(t, err)
	assert.NotEmpty(t, res.Document)
	assert.Less(t, elapsed, 300*time.Millisecond)

	// request cancellation does not cut writes short; the timeout does
	svc.Wait()
	assert.EqualValues(t, 6, store.calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

// hungStore blocks every write until its context ends.
type hungStore struct {
	calls atomic.Int32
}

func (h *hungStore) Put(ctx context.Context, _, _ string, _ []byte) error {
	h.calls.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func (h *hungStore) Record(ctx context.Context, _ types.OptimizationRecord) error {
	h.calls.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

type brokenStore struct{}

func (brokenStore) Put(context.Context, string, string, []byte) error {
	return fmt.Errorf("disk full")
}

func (brokenStore) Record(context.Context, types.OptimizationRecord) error {
	return fmt.Errorf("disk full")
}

func TestExtract(t *testing.T) {
	svc := New(Options{})
	secs, err := svc.Extract(context.Background(), "cv.docx", resumeDocx(t, "Jane Doe", "EXPERIENCE", "Acme", "SKILLS:", "Go"))
	require.NoError(t, err)
	assert.Equal(t, []string{"header", "experience", "skills"}, secs.Keys())

	_, err = svc.Extract(context.Background(), "cv.docx", resumeDocx(t, " ", ""))
	assert.True(t, errors.Is(err, errors.InvalidDocument))
}

func TestFormatUsesStyles(t *testing.T) {
	svc := New(Options{})
	out, err := svc.Format(context.Background(), "cv.docx", styledDocx(t))
	require.NoError(t, err)

	doc, err := docx.Parse(out)
	require.NoError(t, err)
	paras := doc.Paragraphs()
	require.Len(t, paras, 5)
	assert.Equal(t, "Jane Doe", paras[0].Text)
	assert.True(t, paras[0].Bold)
	assert.Equal(t, "Experience", paras[1].Text)
	assert.Equal(t, "Heading 1", paras[1].StyleName)
	assert.Equal(t, "Go, SQL", paras[4].Text)
}

func TestMatch(t *testing.T) {
	svc := New(Options{})
	report, err := svc.Match(context.Background(), "cv.docx", resumeDocx(t, "SKILLS", "Go, Docker"), jobDescription)
	require.NoError(t, err)
	assert.Equal(t, []string{"Docker"}, report.MatchingSkills)
	assert.Equal(t, []string{"Kubernetes"}, report.MissingSkills)

	_, err = svc.Match(context.Background(), "cv.docx", resumeDocx(t, "x"), "")
	assert.True(t, errors.Is(err, errors.InvalidUpload))
}

func TestOutputFilename(t *testing.T) {
	assert.Equal(t, "optimized_cv.docx", OutputFilename("/tmp/uploads/cv.docx"))
	assert.Equal(t, "optimized_resume.docx", OutputFilename("()"))
}
