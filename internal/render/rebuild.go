package render

import (
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/p-shah256/resume-optimizer/internal/docx"
	"github.com/p-shah256/resume-optimizer/internal/sections"
	"github.com/p-shah256/resume-optimizer/pkg/errors"
	"github.com/p-shah256/resume-optimizer/pkg/types"
)

const (
	DefaultMargins = 0.8

	headingSpaceBefore = 12
	headingSpaceAfter  = 6
	nameSizePt         = 14
)

var bulletGlyphs = []string{"•", "-"}

type RebuildOptions struct {
	// Margins in inches; zero means DefaultMargins.
	Margins float64
	// CenterHeader renders the synthetic header section as a centred name
	// and contact block instead of a titled section.
	CenterHeader bool
	Title        string
}

// Rebuild writes a fresh document: a Heading 1 paragraph per section key
// followed by one paragraph per body line. Lines starting with a bullet glyph
// get the List Bullet style with the glyph removed.
func Rebuild(secs *types.SectionMap, opts RebuildOptions) ([]byte, error) {
	b := docx.NewBuilder()
	margins := opts.Margins
	if margins <= 0 {
		margins = DefaultMargins
	}
	b.SetMargins(margins)
	if opts.Title != "" {
		b.SetTitle(opts.Title)
	}

	title := cases.Title(language.English)
	for _, key := range secs.Keys() {
		body, _ := secs.Get(key)

		if opts.CenterHeader && key == sections.HeaderKey {
			addHeaderBlock(b, body)
			continue
		}

		b.AddParagraph(docx.ParagraphSpec{
			Text:        title.String(key),
			Style:       docx.StyleHeading1,
			SpaceBefore: headingSpaceBefore,
			SpaceAfter:  headingSpaceAfter,
		})
		for _, line := range bodyLines(body) {
			text, bullet := stripBullet(line)
			spec := docx.ParagraphSpec{Text: text}
			if bullet {
				spec.Style = docx.StyleListBullet
			}
			b.AddParagraph(spec)
		}
	}

	data, err := b.Bytes()
	if err != nil {
		return nil, errors.E(errors.RenderFailure, "render.rebuild", err)
	}
	slog.Debug("document rebuilt", "component", "render", "sections", secs.Len(), "bytes", len(data))
	return data, nil
}

func addHeaderBlock(b *docx.Builder, body string) {
	for i, line := range bodyLines(body) {
		spec := docx.ParagraphSpec{Text: line, Align: docx.AlignCenter}
		if i == 0 {
			spec.Bold = true
			spec.SizePt = nameSizePt
		}
		b.AddParagraph(spec)
	}
}

func bodyLines(body string) []string {
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func stripBullet(line string) (string, bool) {
	for _, g := range bulletGlyphs {
		if strings.HasPrefix(line, g) {
			return strings.TrimSpace(strings.TrimPrefix(line, g)), true
		}
	}
	return line, false
}
