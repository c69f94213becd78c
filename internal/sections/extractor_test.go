package sections

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-shah256/resume-optimizer/pkg/errors"
	"github.com/p-shah256/resume-optimizer/pkg/types"
)

func paras(lines ...string) []types.Paragraph {
	out := make([]types.Paragraph, len(lines))
	for i, l := range lines {
		out[i] = types.Paragraph{Text: l, StyleName: "Normal"}
	}
	return out
}

func TestHeadingDetection(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"EXPERIENCE", true},
		{"Objective:", true},
		{"Led a team of 5 engineers", false},
		{"WORK HISTORY", true},
		{"2019 - 2023", false},
		{"Go, Python, AWS", false},
		{"C++ / AWS", true},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, CapsOrColon(types.Paragraph{Text: tt.text}))
		})
	}
}

func TestKeywordAndStyleRules(t *testing.T) {
	assert.True(t, CapsColonOrKeyword(types.Paragraph{Text: "Work Experience"}))
	assert.True(t, CapsColonOrKeyword(types.Paragraph{Text: "SUMMARY"}))
	assert.False(t, CapsColonOrKeyword(types.Paragraph{Text: "Built an experience tracking platform for teams"}))

	assert.True(t, StyleHeading(types.Paragraph{Text: "anything", StyleName: "Heading 2"}))
	assert.True(t, StyleHeading(types.Paragraph{Text: "Jane", StyleName: "Title"}))
	assert.False(t, StyleHeading(types.Paragraph{Text: "EXPERIENCE", StyleName: "Normal"}))

	rule, err := HeadingRule("")
	require.NoError(t, err)
	assert.True(t, rule(types.Paragraph{Text: "SKILLS"}))

	_, err = HeadingRule("fancy")
	assert.Error(t, err)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "objective", NormalizeKey("  Objective:  "))
	assert.Equal(t, "work history", NormalizeKey("WORK HISTORY"))
	assert.Equal(t, "skills", NormalizeKey("SKILLS :"))
	assert.Equal(t, "", NormalizeKey(" : "))
}

func TestExtractIgnoresEmptyHeadingKeys(t *testing.T) {
	got, err := NewExtractor().Extract(paras("SUMMARY", "Engineer.", ":", " : ", "SKILLS", "Go"))
	require.NoError(t, err)

	assert.Equal(t, []string{"summary", "skills"}, got.Keys())
	assert.False(t, got.Has(""))
	v, _ := got.Get("summary")
	assert.Equal(t, "Engineer.\n:\n:", v)
}

func TestExtractEndToEnd(t *testing.T) {
	got, err := NewExtractor().Extract(paras("SUMMARY", "Experienced engineer.", "SKILLS", "Python", "Go"))
	require.NoError(t, err)

	assert.Equal(t, []string{"summary", "skills"}, got.Keys())
	v, _ := got.Get("summary")
	assert.Equal(t, "Experienced engineer.", v)
	v, _ = got.Get("skills")
	assert.Equal(t, "Python\nGo", v)
}

func TestExtractHeaderAndBlankLines(t *testing.T) {
	got, err := NewExtractor().Extract(paras(
		"Jane Doe",
		"   ",
		"jane@example.com",
		"EXPERIENCE",
		"",
		"  Led a team of 5 engineers  ",
	))
	require.NoError(t, err)

	assert.Equal(t, []string{HeaderKey, "experience"}, got.Keys())
	v, _ := got.Get(HeaderKey)
	assert.Equal(t, "Jane Doe\njane@example.com", v)
	v, _ = got.Get("experience")
	assert.Equal(t, "Led a team of 5 engineers", v)
}

// Each body line must land under exactly the nearest preceding heading, so
// the sum of body lines equals the number of non-heading lines.
func TestExtractFlushBound(t *testing.T) {
	input := paras("SUMMARY", "a", "b", "SKILLS", "c", "EDUCATION", "d", "e", "f")
	got, err := NewExtractor().Extract(input)
	require.NoError(t, err)

	assert.False(t, got.Has(HeaderKey))
	lines := 0
	for _, k := range got.Keys() {
		v, _ := got.Get(k)
		lines += len(splitLines(v))
	}
	assert.Equal(t, 6, lines)

	v, _ := got.Get("skills")
	assert.Equal(t, "c", v)
	v, _ = got.Get("education")
	assert.Equal(t, "d\ne\nf", v)
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func TestExtractEmptySections(t *testing.T) {
	input := paras("SUMMARY", "SKILLS", "Go", "AWARDS")

	dropped, err := NewExtractor().Extract(input)
	require.NoError(t, err)
	assert.Equal(t, []string{"skills"}, dropped.Keys())

	e := NewExtractor()
	e.EmptySections = EmptyKeep
	kept, err := e.Extract(input)
	require.NoError(t, err)
	assert.Equal(t, []string{"summary", "skills", "awards"}, kept.Keys())
	v, _ := kept.Get("awards")
	assert.Equal(t, "", v)
}

func TestExtractDuplicatePolicies(t *testing.T) {
	input := paras("SKILLS", "Go", "EXPERIENCE", "Acme", "Skills:", "Rust")

	appended, err := NewExtractor().Extract(input)
	require.NoError(t, err)
	v, _ := appended.Get("skills")
	assert.Equal(t, "Go\nRust", v)
	assert.Equal(t, []string{"skills", "experience"}, appended.Keys())

	e := NewExtractor()
	e.Duplicates = DuplicateOverwrite
	overwritten, err := e.Extract(input)
	require.NoError(t, err)
	v, _ = overwritten.Get("skills")
	assert.Equal(t, "Rust", v)

	e.Duplicates = DuplicateReject
	_, err = e.Extract(input)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.InvalidDocument))
	var de *errors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "skills", de.Key)
}

func TestExtractWithStyleRule(t *testing.T) {
	e := &Extractor{Heading: StyleHeading}
	got, err := e.Extract([]types.Paragraph{
		{Text: "Summary", StyleName: "Heading 1"},
		{Text: "BUILT THINGS", StyleName: "Normal"},
	})
	require.NoError(t, err)
	v, _ := got.Get("summary")
	assert.Equal(t, "BUILT THINGS", v)
}

func TestParsePolicies(t *testing.T) {
	d, err := ParseDuplicatePolicy("Reject")
	require.NoError(t, err)
	assert.Equal(t, DuplicateReject, d)
	assert.Equal(t, "reject", d.String())

	_, err = ParseDuplicatePolicy("merge")
	assert.Error(t, err)

	ep, err := ParseEmptyPolicy("keep")
	require.NoError(t, err)
	assert.Equal(t, EmptyKeep, ep)
	_, err = ParseEmptyPolicy("maybe")
	assert.Error(t, err)
}
