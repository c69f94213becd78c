// Package optimizer runs the resume pipeline: parse, extract sections,
// rewrite, render and persist.
package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/p-shah256/resume-optimizer/internal/cleaner"
	"github.com/p-shah256/resume-optimizer/internal/docx"
	"github.com/p-shah256/resume-optimizer/internal/matching"
	"github.com/p-shah256/resume-optimizer/internal/render"
	"github.com/p-shah256/resume-optimizer/internal/rewrite"
	"github.com/p-shah256/resume-optimizer/internal/sections"
	"github.com/p-shah256/resume-optimizer/internal/storage"
	"github.com/p-shah256/resume-optimizer/pkg/errors"
	"github.com/p-shah256/resume-optimizer/pkg/logger"
	"github.com/p-shah256/resume-optimizer/pkg/types"
)

const (
	DocxExt             = ".docx"
	DefaultMaxUpload    = 10 << 20
	maxJobDescriptionSz = 200 << 10

	statusSucceeded = "succeeded"
	statusFailed    = "failed"
)

// Rewriter is satisfied by *rewrite.Rewriter and rewrite.Passthrough.
type Rewriter interface {
	Rewrite(ctx context.Context, secs *types.SectionMap, jobDescription string) (*rewrite.Result, error)
}

// Upload is one optimization request.
type Upload struct {
	Filename       string
	Data           []byte
	JobDescription string
	// Template is an optional .docx with {{ key }} markers.
	Template     []byte
	TemplateName string
}

type Options struct {
	Extractor      *sections.Extractor
	Rewriter       Rewriter
	Render         render.Options
	Persister      *storage.Persister
	Matcher        *matching.Matcher
	MaxUploadBytes int64
}

type Service struct {
	extractor *sections.Extractor
	rewriter  Rewriter
	render    render.Options
	persister *storage.Persister
	matcher   *matching.Matcher
	cleaner   *cleaner.Cleaner
	maxUpload int64
	now       func() time.Time
}

func New(opts Options) *Service {
	s := &Service{
		extractor: opts.Extractor,
		rewriter:  opts.Rewriter,
		render:    opts.Render,
		persister: opts.Persister,
		matcher:   opts.Matcher,
		cleaner:   cleaner.NewCleaner(),
		maxUpload: opts.MaxUploadBytes,
		now:       time.Now,
	}
	if s.extractor == nil {
		s.extractor = sections.NewExtractor()
	}
	if s.rewriter == nil {
		s.rewriter = rewrite.Passthrough{}
	}
	if s.persister == nil {
		s.persister = storage.NewPersister(nil, nil, 0)
	}
	if s.matcher == nil {
		s.matcher = matching.NewMatcher()
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUpload
	}
	return s
}

// ValidateDocument checks an uploaded document before anything else touches it.
func ValidateDocument(field, filename string, data []byte, maxBytes int64) error {
	const op = "optimizer.validate"
	if len(data) == 0 {
		return errors.E(errors.InvalidUpload, op, nil).WithKey(field).WithDetail("file is empty")
	}
	if !strings.EqualFold(filepath.Ext(filename), DocxExt) {
		return errors.E(errors.InvalidUpload, op, nil).WithKey(field).
			WithDetail(fmt.Sprintf("only %s files are supported", DocxExt))
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return errors.E(errors.InvalidUpload, op, nil).WithKey(field).
			WithDetail(fmt.Sprintf("file exceeds %d MB", maxBytes>>20))
	}
	return nil
}

func (s *Service) validate(up Upload) (string, error) {
	if err := ValidateDocument("file", up.Filename, up.Data, s.maxUpload); err != nil {
		return "", err
	}
	if len(up.Template) > 0 || up.TemplateName != "" {
		if err := ValidateDocument("template", up.TemplateName, up.Template, s.maxUpload); err != nil {
			return "", err
		}
	}
	return s.cleanJobDescription(up.JobDescription)
}

func (s *Service) cleanJobDescription(jd string) (string, error) {
	const op = "optimizer.validate"
	if len(jd) > maxJobDescriptionSz {
		return "", errors.E(errors.InvalidUpload, op, nil).WithKey("job_description").WithDetail("job description is too long")
	}
	jd = s.cleaner.CleanJobDescription(jd)
	if jd == "" {
		return "", errors.E(errors.InvalidUpload, op, nil).WithKey("job_description").WithDetail("job description is required")
	}
	return jd, nil
}

// parse reads the document and extracts its sections with ext.
func (s *Service) parse(data []byte, ext *sections.Extractor) (*types.SectionMap, error) {
	const op = "optimizer.parse"
	doc, err := docx.Parse(data)
	if err != nil {
		return nil, errors.E(errors.InvalidDocument, op, err).WithKey("file").WithDetail(err.Error())
	}
	secs, err := ext.Extract(doc.Paragraphs())
	if err != nil {
		return nil, err
	}
	if secs.Len() == 0 {
		return nil, errors.E(errors.InvalidDocument, op, nil).WithKey("file").WithDetail("document contains no text")
	}
	return secs, nil
}

// Optimize runs the full pipeline. Inputs are validated before any artifact
// is written; artifact writes run in the background and never fail or delay
// the request.
func (s *Service) Optimize(ctx context.Context, up Upload) (*types.OptimizeResult, error) {
	log := logger.FromContext(ctx).With("component", "optimizer", "operation", "optimize")
	start := s.now()

	jd, err := s.validate(up)
	if err != nil {
		log.Warn("upload rejected", "filename", up.Filename, "error", err)
		return nil, err
	}

	rec := types.OptimizationRecord{
		ID:        uuid.New().String(),
		RequestID: logger.GetRequestID(ctx),
		Filename:  up.Filename,
		CreatedAt: start.UTC(),
	}
	fail := func(err error) (*types.OptimizeResult, error) {
		rec.Status = statusFailed
		rec.Error = errors.KindOf(err).String()
		rec.DurationMs = s.now().Sub(start).Milliseconds()
		s.record(ctx, rec)
		return nil, err
	}

	// ================= extract =================
	secs, err := s.parse(up.Data, s.extractor)
	if err != nil {
		log.Warn("document rejected", "filename", up.Filename, "error", err)
		return fail(err)
	}
	rec.SectionCount = secs.Len()
	log.Info("extracted sections", "filename", up.Filename, "sections", secs.Keys())

	s.save(ctx, start,
		storage.Artifact{Prefix: storage.PrefixOriginal, Filename: up.Filename, ContentType: storage.ContentTypeDocx, Data: up.Data},
		storage.Artifact{Prefix: storage.PrefixJob, Filename: storage.WithExt(up.Filename, ".txt"), ContentType: storage.ContentTypeText, Data: []byte(jd)},
		jsonArtifact(storage.PrefixSections, up.Filename, secs),
	)

	// ================= rewrite =================
	res, err := s.rewriter.Rewrite(ctx, secs, jd)
	if err != nil {
		log.Error("rewrite failed", "error", err)
		return fail(err)
	}
	rec.Attempts = res.Attempts
	rec.FallbackCount = len(res.Fallbacks)

	// ================= render =================
	out, err := render.Render(up.Template, res.Sections, s.render)
	if err != nil {
		log.Error("render failed", "error", err)
		return fail(err)
	}

	s.save(ctx, start,
		storage.Artifact{Prefix: storage.PrefixOptimized, Filename: up.Filename, ContentType: storage.ContentTypeDocx, Data: out},
		jsonArtifact(storage.PrefixRewritten, up.Filename, res.Sections),
	)

	result := &types.OptimizeResult{
		Filename:       OutputFilename(up.Filename),
		Document:       out,
		Original:       secs,
		Rewritten:      res.Sections,
		Fallbacks:      res.Fallbacks,
		Attempts:       res.Attempts,
		OriginalScore:  s.matcher.Score(jd, matching.SectionText(secs)),
		OptimizedScore: s.matcher.Score(jd, matching.SectionText(res.Sections)),
	}

	rec.Status = statusSucceeded
	rec.OriginalScore = result.OriginalScore
	rec.OptimizedScore = result.OptimizedScore
	rec.DurationMs = s.now().Sub(start).Milliseconds()
	s.record(ctx, rec)

	log.Info("optimization completed",
		"filename", up.Filename,
		"sections", secs.Len(),
		"fallbacks", len(res.Fallbacks),
		"attempts", res.Attempts,
		"original_score", result.OriginalScore,
		"optimized_score", result.OptimizedScore,
		"duration_ms", rec.DurationMs)
	return result, nil
}

// save and record hand writes to the persister in the background; the
// response never waits on storage.
func (s *Service) save(ctx context.Context, at time.Time, artifacts ...storage.Artifact) {
	s.persister.Go(ctx, func(ctx context.Context) {
		s.persister.Save(ctx, at, artifacts...)
	})
}

func (s *Service) record(ctx context.Context, rec types.OptimizationRecord) {
	s.persister.Go(ctx, func(ctx context.Context) {
		s.persister.Record(ctx, rec)
	})
}

// Wait blocks until pending artifact and history writes have finished.
func (s *Service) Wait() {
	s.persister.Wait()
}

// Extract returns the section map of an uploaded document.
func (s *Service) Extract(ctx context.Context, filename string, data []byte) (*types.SectionMap, error) {
	if err := ValidateDocument("file", filename, data, s.maxUpload); err != nil {
		return nil, err
	}
	return s.parse(data, s.extractor)
}

// Format rebuilds a document with a clean layout without rewriting it.
// Headings are taken from paragraph styles.
func (s *Service) Format(ctx context.Context, filename string, data []byte) ([]byte, error) {
	if err := ValidateDocument("file", filename, data, s.maxUpload); err != nil {
		return nil, err
	}
	ext := *s.extractor
	ext.Heading = sections.StyleHeading
	secs, err := s.parse(data, &ext)
	if err != nil {
		return nil, err
	}

	opts := s.render.Rebuild
	opts.CenterHeader = true
	out, err := render.Rebuild(secs, opts)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("document formatted",
		"component", "optimizer",
		"operation", "format",
		"filename", filename,
		"sections", secs.Len())
	return out, nil
}

// Match scores an uploaded document against a job description.
func (s *Service) Match(ctx context.Context, filename string, data []byte, jobDescription string) (*types.MatchReport, error) {
	if err := ValidateDocument("file", filename, data, s.maxUpload); err != nil {
		return nil, err
	}
	jd, err := s.cleanJobDescription(jobDescription)
	if err != nil {
		return nil, err
	}
	secs, err := s.parse(data, s.extractor)
	if err != nil {
		return nil, err
	}
	return s.matcher.Match(jd, matching.SectionText(secs)), nil
}

// OutputFilename names the rendered document after the upload.
func OutputFilename(filename string) string {
	name := storage.SanitizeFilename(filepath.Base(filename))
	if name == "" {
		name = "resume" + DocxExt
	}
	return "optimized_" + name
}

func jsonArtifact(prefix, filename string, secs *types.SectionMap) storage.Artifact {
	data, err := json.Marshal(secs)
	if err != nil {
		// SectionMap only holds strings
		data = []byte("{}")
	}
	return storage.Artifact{
		Prefix:      prefix,
		Filename:    storage.WithExt(filename, ".json"),
		ContentType: storage.ContentTypeJSON,
		Data:        data,
	}
}
