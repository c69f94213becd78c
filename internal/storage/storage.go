// Package storage persists request artifacts and optimization history.
// Persistence is a side effect of a request: callers go through Persister,
// which logs and swallows failures.
package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/p-shah256/resume-optimizer/pkg/types"
)

// Artifact prefixes.
const (
	PrefixOriginal  = "original"
	PrefixOptimized = "optimized"
	PrefixSections  = "sections"
	PrefixRewritten = "rewritten"
	PrefixJob       = "jd"
)

const (
	ContentTypeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

const timestampLayout = "20060102_150405"

// Store writes named blobs.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) error
}

// History records one row per optimization request.
type History interface {
	Record(ctx context.Context, rec types.OptimizationRecord) error
}

// HistoryReader lists recent history records, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]types.OptimizationRecord, error)
}

// Backend is a store that also keeps history.
type Backend interface {
	Store
	History
	Close() error
}

var (
	bracketed = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\{[^}]*\}`)
	unsafe    = regexp.MustCompile(`[^A-Za-z0-9.\-]`)
)

// SanitizeFilename removes bracketed substrings, replaces anything other than
// ASCII letters, digits, '.' and '-' with '_', and trims surrounding '_'.
func SanitizeFilename(name string) string {
	name = bracketed.ReplaceAllString(name, "")
	name = unsafe.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}

// ArtifactName builds <prefix>_<YYYYMMDD_HHMMSS>_<sanitized filename>.
func ArtifactName(prefix string, at time.Time, filename string) string {
	name := SanitizeFilename(filename)
	if name == "" {
		name = "upload"
	}
	return fmt.Sprintf("%s_%s_%s", prefix, at.Format(timestampLayout), name)
}

// WithExt swaps the extension of filename, so sections of resume.docx are
// stored as resume.json.
func WithExt(filename, ext string) string {
	if i := strings.LastIndexByte(filename, '.'); i > 0 {
		filename = filename[:i]
	}
	return filename + ext
}

// Nop discards everything.
type Nop struct{}

func (Nop) Put(context.Context, string, string, []byte) error     { return nil }
func (Nop) Record(context.Context, types.OptimizationRecord) error { return nil }
func (Nop) Close() error                                           { return nil }
