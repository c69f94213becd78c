// Package sections partitions a paragraph stream into an ordered section map.
package sections

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-shah256/resume-optimizer/pkg/errors"
	"github.com/p-shah256/resume-optimizer/pkg/types"
)

// HeaderKey collects content that appears before the first heading.
const HeaderKey = "header"

// DuplicatePolicy decides what happens when two headings normalise to the
// same key.
type DuplicatePolicy int

const (
	DuplicateAppend DuplicatePolicy = iota
	DuplicateOverwrite
	DuplicateReject
)

// EmptyPolicy decides whether headings without body lines produce entries.
type EmptyPolicy int

const (
	EmptyDrop EmptyPolicy = iota
	EmptyKeep
)

func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "append":
		return DuplicateAppend, nil
	case "overwrite":
		return DuplicateOverwrite, nil
	case "reject":
		return DuplicateReject, nil
	}
	return 0, fmt.Errorf("unknown duplicate policy %q", s)
}

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateOverwrite:
		return "overwrite"
	case DuplicateReject:
		return "reject"
	default:
		return "append"
	}
}

func ParseEmptyPolicy(s string) (EmptyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop":
		return EmptyDrop, nil
	case "keep":
		return EmptyKeep, nil
	}
	return 0, fmt.Errorf("unknown empty section policy %q", s)
}

func (p EmptyPolicy) String() string {
	if p == EmptyKeep {
		return "keep"
	}
	return "drop"
}

type Extractor struct {
	Heading       HeadingFunc
	Duplicates    DuplicatePolicy
	EmptySections EmptyPolicy
}

// NewExtractor returns an extractor using the caps-or-colon rule, appending
// duplicates and dropping empty sections.
func NewExtractor() *Extractor {
	return &Extractor{Heading: CapsOrColon}
}

// Extract walks paragraphs in order. Body lines accumulate under the most
// recent heading and are flushed, newline-joined, when the next heading or
// the end of input is reached.
func (e *Extractor) Extract(paragraphs []types.Paragraph) (*types.SectionMap, error) {
	isHeading := e.Heading
	if isHeading == nil {
		isHeading = CapsOrColon
	}

	out := types.NewSectionMap()
	var (
		currentKey string
		open       bool
		body       []string
	)

	flush := func() error {
		if !open {
			return nil
		}
		if len(body) == 0 && e.EmptySections == EmptyDrop {
			return nil
		}
		return e.store(out, currentKey, strings.Join(body, "\n"))
	}

	for _, p := range paragraphs {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		p.Text = text

		// a heading that normalizes to nothing (a lone ":") stays body text
		if key := NormalizeKey(text); key != "" && isHeading(p) {
			if err := flush(); err != nil {
				return nil, err
			}
			body = body[:0]
			currentKey = key
			open = true
			continue
		}

		if !open {
			currentKey = HeaderKey
			open = true
		}
		body = append(body, text)
	}

	if err := flush(); err != nil {
		return nil, err
	}

	slog.Debug("sections extracted",
		"component", "sections",
		"paragraphs", len(paragraphs),
		"sections", out.Len(),
		"keys", out.Keys())
	return out, nil
}

func (e *Extractor) store(out *types.SectionMap, key, body string) error {
	existing, dup := out.Get(key)
	if !dup {
		out.Set(key, body)
		return nil
	}

	switch e.Duplicates {
	case DuplicateOverwrite:
		slog.Warn("duplicate section overwritten", "component", "sections", "key", key)
		out.Set(key, body)
	case DuplicateReject:
		return errors.E(errors.InvalidDocument, "sections.extract", nil).
			WithKey(key).
			WithDetail("duplicate section heading")
	default:
		switch {
		case existing == "":
			out.Set(key, body)
		case body != "":
			out.Set(key, existing+"\n"+body)
		}
	}
	return nil
}
