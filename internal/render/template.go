package render

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/p-shah256/resume-optimizer/internal/docx"
	"github.com/p-shah256/resume-optimizer/internal/sections"
	"github.com/p-shah256/resume-optimizer/pkg/errors"
	"github.com/p-shah256/resume-optimizer/pkg/types"
)

// UnresolvedPolicy decides what happens to a marker naming an unknown key.
type UnresolvedPolicy int

const (
	UnresolvedFail UnresolvedPolicy = iota
	UnresolvedLeave
)

func ParseUnresolvedPolicy(s string) (UnresolvedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return UnresolvedFail, nil
	case "leave":
		return UnresolvedLeave, nil
	}
	return 0, fmt.Errorf("unknown unresolved placeholder policy %q", s)
}

func (p UnresolvedPolicy) String() string {
	if p == UnresolvedLeave {
		return "leave"
	}
	return "fail"
}

type TemplateOptions struct {
	Unresolved UnresolvedPolicy
}

var (
	textElemRe = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	markerRe   = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)
	partRe     = regexp.MustCompile(`^word/(document|header\d*|footer\d*)\.xml$`)
)

// textSegment is one w:t element of a part.
type textSegment struct {
	start, end int // byte range of the whole element
	text       string
	changed    bool
}

// Template fills {{ key }} markers in a template package. Markers may span
// several runs; the replacement lands in the run holding the opening braces
// and the other runs keep their own text and formatting. The template bytes
// are not modified.
func Template(template []byte, secs *types.SectionMap, opts TemplateOptions) ([]byte, error) {
	const op = "render.template"

	pkg, err := docx.OpenPackage(template)
	if err != nil {
		return nil, errors.E(errors.InvalidDocument, op, err).WithDetail("template is not a valid document")
	}
	out := pkg.Clone()

	var unresolved []string
	replaced := 0
	for _, name := range out.PartNames() {
		if !partRe.MatchString(name) {
			continue
		}
		data, _ := out.Part(name)
		newData, n, missing := fillPart(data, secs)
		replaced += n
		unresolved = append(unresolved, missing...)
		if n > 0 {
			out.SetPart(name, newData)
		}
	}

	if len(unresolved) > 0 {
		unresolved = dedupe(unresolved)
		if opts.Unresolved == UnresolvedFail {
			return nil, errors.E(errors.UnresolvedPlaceholder, op, nil).
				WithKey(unresolved[0]).
				WithDetail("unresolved markers: " + strings.Join(unresolved, ", "))
		}
		slog.Warn("leaving unresolved template markers",
			"component", "render",
			"operation", "template",
			"keys", unresolved)
	}

	data, err := out.Bytes()
	if err != nil {
		return nil, errors.E(errors.RenderFailure, op, err)
	}
	slog.Debug("template rendered", "component", "render", "replaced", replaced, "bytes", len(data))
	return data, nil
}

// fillPart substitutes markers in one XML part and reports how many were
// replaced and which keys were missing.
func fillPart(data []byte, secs *types.SectionMap) ([]byte, int, []string) {
	matches := textElemRe.FindAllSubmatchIndex(data, -1)
	if len(matches) == 0 {
		return data, 0, nil
	}

	segs := make([]*textSegment, len(matches))
	for i, m := range matches {
		segs[i] = &textSegment{
			start: m[0],
			end:   m[1],
			text:  html.UnescapeString(string(data[m[2]:m[3]])),
		}
	}

	// group segments by the paragraph they belong to
	ends := paragraphEnds(data)
	var groups [][]*textSegment
	lastGroup := -1
	for _, s := range segs {
		g := sort.SearchInts(ends, s.start)
		if g != lastGroup {
			groups = append(groups, nil)
			lastGroup = g
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], s)
	}

	replaced := 0
	var missing []string
	for _, group := range groups {
		n, miss := fillParagraph(group, secs)
		replaced += n
		missing = append(missing, miss...)
	}
	if replaced == 0 {
		return data, 0, missing
	}

	var buf bytes.Buffer
	buf.Grow(len(data))
	prev := 0
	for _, s := range segs {
		if !s.changed {
			continue
		}
		buf.Write(data[prev:s.start])
		buf.WriteString(docx.RunTextXML(s.text))
		prev = s.end
	}
	buf.Write(data[prev:])
	return buf.Bytes(), replaced, missing
}

func paragraphEnds(data []byte) []int {
	var ends []int
	closing := []byte("</w:p>")
	for off := 0; ; {
		i := bytes.Index(data[off:], closing)
		if i < 0 {
			return ends
		}
		ends = append(ends, off+i)
		off += i + len(closing)
	}
}

// fillParagraph works on the concatenated text of one paragraph so markers
// split across runs are still found. Markers are replaced last to first so
// earlier offsets stay valid.
func fillParagraph(group []*textSegment, secs *types.SectionMap) (int, []string) {
	var joined strings.Builder
	offsets := make([]int, len(group))
	for i, s := range group {
		offsets[i] = joined.Len()
		joined.WriteString(s.text)
	}
	text := joined.String()
	if !strings.Contains(text, "{{") {
		return 0, nil
	}

	locs := markerRe.FindAllStringSubmatchIndex(text, -1)
	replaced := 0
	var missing []string
	for i := len(locs) - 1; i >= 0; i-- {
		loc := locs[i]
		key := text[loc[2]:loc[3]]
		value, ok := lookup(secs, key)
		if !ok {
			missing = append(missing, key)
			continue
		}

		first, firstOff := locate(offsets, loc[0])
		last, lastOff := locate(offsets, loc[1]-1)
		lastOff++

		if first == last {
			s := group[first]
			s.text = s.text[:firstOff] + value + s.text[lastOff:]
			s.changed = true
		} else {
			group[first].text = group[first].text[:firstOff] + value
			group[first].changed = true
			for j := first + 1; j < last; j++ {
				group[j].text = ""
				group[j].changed = true
			}
			group[last].text = group[last].text[lastOff:]
			group[last].changed = true
		}
		replaced++
	}

	// report in document order
	for l, r := 0, len(missing)-1; l < r; l, r = l+1, r-1 {
		missing[l], missing[r] = missing[r], missing[l]
	}
	return replaced, missing
}

// locate maps an offset in the joined paragraph text to a segment index and
// an offset within that segment.
func locate(offsets []int, pos int) (int, int) {
	i := sort.Search(len(offsets), func(i int) bool { return offsets[i] > pos }) - 1
	return i, pos - offsets[i]
}

func lookup(secs *types.SectionMap, key string) (string, bool) {
	if v, ok := secs.Get(key); ok {
		return v, true
	}
	norm := sections.NormalizeKey(key)
	if norm == "" {
		return "", false
	}
	return secs.Get(norm)
}

func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
