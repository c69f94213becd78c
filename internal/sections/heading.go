package sections

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/p-shah256/resume-optimizer/pkg/types"
)

// HeadingFunc decides whether a paragraph opens a new section. It receives
// the paragraph with its text already trimmed.
type HeadingFunc func(p types.Paragraph) bool

// Heading rule names accepted by HeadingRule.
const (
	RuleCaps     = "caps"
	RuleKeywords = "keywords"
	RuleStyle    = "style"
)

var sectionKeywords = []string{"summary", "experience", "education", "skills", "contact", "objective"}

// maxKeywordHeadingWords keeps "Designed experience metrics" style body
// lines from matching the keyword rule.
const maxKeywordHeadingWords = 4

// CapsOrColon treats a line as a heading when it is entirely upper-case or
// ends with a colon.
func CapsOrColon(p types.Paragraph) bool {
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return false
	}
	return strings.HasSuffix(text, ":") || isAllUpper(text)
}

// CapsColonOrKeyword extends CapsOrColon with short lines naming a common
// resume section.
func CapsColonOrKeyword(p types.Paragraph) bool {
	if CapsOrColon(p) {
		return true
	}
	text := strings.ToLower(strings.TrimSpace(p.Text))
	if len(strings.Fields(text)) > maxKeywordHeadingWords {
		return false
	}
	for _, kw := range sectionKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// StyleHeading uses the paragraph style: Heading N and Title styles open
// sections.
func StyleHeading(p types.Paragraph) bool {
	style := strings.ToLower(strings.TrimSpace(p.StyleName))
	return strings.HasPrefix(style, "heading") || strings.HasPrefix(style, "title")
}

// HeadingRule resolves a configured rule name.
func HeadingRule(name string) (HeadingFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", RuleCaps:
		return CapsOrColon, nil
	case RuleKeywords:
		return CapsColonOrKeyword, nil
	case RuleStyle:
		return StyleHeading, nil
	default:
		return nil, fmt.Errorf("unknown heading rule %q", name)
	}
}

// isAllUpper requires at least one cased letter and no lower-case ones, so
// "2019 - 2023" is not a heading.
func isAllUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}

// NormalizeKey derives a section key from heading text: trimmed,
// lower-cased, trailing colon removed.
func NormalizeKey(heading string) string {
	key := strings.ToLower(strings.TrimSpace(heading))
	key = strings.TrimSuffix(key, ":")
	return strings.TrimSpace(key)
}
