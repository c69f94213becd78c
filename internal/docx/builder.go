package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// Style ids written by Builder.
const (
	StyleNormal     = "Normal"
	StyleTitle      = "Title"
	StyleHeading1   = "Heading1"
	StyleListBullet = "ListBullet"
)

// Paragraph alignments.
const (
	AlignLeft   = ""
	AlignCenter = "center"
)

// ParagraphSpec describes one paragraph for Builder.
type ParagraphSpec struct {
	Text        string
	Style       string
	Bold        bool
	Italic      bool
	SizePt      float64
	Align       string
	SpaceBefore float64 // points
	SpaceAfter  float64 // points
}

// Builder assembles a new single-section document.
type Builder struct {
	body    bytes.Buffer
	margin  float64
	title   string
	created time.Time
}

func NewBuilder() *Builder {
	return &Builder{margin: 1.0, created: time.Now().UTC()}
}

// SetMargins sets all four page margins in inches.
func (b *Builder) SetMargins(inches float64) {
	if inches > 0 {
		b.margin = inches
	}
}

func (b *Builder) SetTitle(title string) {
	b.title = title
}

func (b *Builder) AddParagraph(p ParagraphSpec) {
	b.body.WriteString("<w:p>")

	var ppr strings.Builder
	if p.Style != "" {
		fmt.Fprintf(&ppr, `<w:pStyle w:val="%s"/>`, escapeAttr(p.Style))
	}
	if p.SpaceBefore > 0 || p.SpaceAfter > 0 {
		fmt.Fprintf(&ppr, `<w:spacing w:before="%d" w:after="%d"/>`, twips(p.SpaceBefore), twips(p.SpaceAfter))
	}
	if p.Align != AlignLeft {
		fmt.Fprintf(&ppr, `<w:jc w:val="%s"/>`, escapeAttr(p.Align))
	}
	if ppr.Len() > 0 {
		b.body.WriteString("<w:pPr>")
		b.body.WriteString(ppr.String())
		b.body.WriteString("</w:pPr>")
	}

	if p.Text != "" {
		b.body.WriteString("<w:r>")
		var rpr strings.Builder
		if p.Bold {
			rpr.WriteString("<w:b/>")
		}
		if p.Italic {
			rpr.WriteString("<w:i/>")
		}
		if p.SizePt > 0 {
			fmt.Fprintf(&rpr, `<w:sz w:val="%d"/>`, int(p.SizePt*2))
		}
		if rpr.Len() > 0 {
			b.body.WriteString("<w:rPr>")
			b.body.WriteString(rpr.String())
			b.body.WriteString("</w:rPr>")
		}
		b.body.WriteString(RunTextXML(p.Text))
		b.body.WriteString("</w:r>")
	}

	b.body.WriteString("</w:p>")
}

// Bytes serialises the document into a complete package.
func (b *Builder) Bytes() ([]byte, error) {
	margin := twips(b.margin * 72)

	var doc strings.Builder
	doc.WriteString(xml.Header)
	doc.WriteString(`<w:document xmlns:w="` + nsW + `" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><w:body>`)
	doc.Write(b.body.Bytes())
	fmt.Fprintf(&doc, `<w:sectPr><w:pgSz w:w="12240" w:h="15840"/><w:pgMar w:top="%d" w:right="%d" w:bottom="%d" w:left="%d" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr>`,
		margin, margin, margin, margin)
	doc.WriteString(`</w:body></w:document>`)

	var core strings.Builder
	core.WriteString(xml.Header)
	core.WriteString(`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`)
	if b.title != "" {
		core.WriteString("<dc:title>" + escapeText(b.title) + "</dc:title>")
	}
	core.WriteString(`<dcterms:created xsi:type="dcterms:W3CDTF">` + b.created.Format(time.RFC3339) + `</dcterms:created>`)
	core.WriteString(`</cp:coreProperties>`)

	pkg := NewPackage()
	pkg.SetPart(ContentTypesPart, []byte(contentTypesXML))
	pkg.SetPart("_rels/.rels", []byte(packageRelsXML))
	pkg.SetPart(DocumentPart, []byte(doc.String()))
	pkg.SetPart("word/_rels/document.xml.rels", []byte(documentRelsXML))
	pkg.SetPart(StylesPart, []byte(stylesXMLTemplate))
	pkg.SetPart("word/numbering.xml", []byte(numberingXML))
	pkg.SetPart("docProps/core.xml", []byte(core.String()))
	for _, part := range pkg.parts {
		part.Modified = b.created
	}
	return pkg.Bytes()
}

// RunTextXML renders text as the content of a w:r element. Newlines become
// w:br and tabs w:tab.
func RunTextXML(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var out strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			out.WriteString("<w:br/>")
		}
		for j, chunk := range strings.Split(line, "\t") {
			if j > 0 {
				out.WriteString("<w:tab/>")
			}
			if chunk == "" {
				continue
			}
			out.WriteString(`<w:t xml:space="preserve">`)
			out.WriteString(escapeText(chunk))
			out.WriteString("</w:t>")
		}
	}
	if out.Len() == 0 {
		return `<w:t xml:space="preserve"></w:t>`
	}
	return out.String()
}

func escapeText(s string) string {
	var buf bytes.Buffer
	// EscapeText only fails on writer errors
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func escapeAttr(s string) string {
	return escapeText(s)
}

func twips(points float64) int {
	return int(points*20 + 0.5)
}

const contentTypesXML = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/word/numbering.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`</Types>`

const packageRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`</Relationships>`

const documentRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/numbering" Target="numbering.xml"/>` +
	`</Relationships>`

const stylesXMLTemplate = xml.Header + `<w:styles xmlns:w="` + nsW + `">` +
	`<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri" w:cs="Calibri"/><w:sz w:val="22"/></w:rPr></w:rPrDefault>` +
	`<w:pPrDefault><w:pPr><w:spacing w:after="80" w:line="259" w:lineRule="auto"/></w:pPr></w:pPrDefault></w:docDefaults>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:qFormat/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/>` +
	`<w:pPr><w:jc w:val="center"/></w:pPr><w:rPr><w:b/><w:sz w:val="28"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/>` +
	`<w:pPr><w:keepNext/><w:spacing w:before="240" w:after="120"/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="ListBullet"><w:name w:val="List Bullet"/><w:basedOn w:val="Normal"/>` +
	`<w:pPr><w:numPr><w:numId w:val="1"/></w:numPr><w:ind w:left="360" w:hanging="360"/></w:pPr></w:style>` +
	`</w:styles>`

const numberingXML = xml.Header + `<w:numbering xmlns:w="` + nsW + `">` +
	`<w:abstractNum w:abstractNumId="0"><w:multiLevelType w:val="singleLevel"/>` +
	`<w:lvl w:ilvl="0"><w:start w:val="1"/><w:numFmt w:val="bullet"/><w:lvlText w:val="•"/><w:lvlJc w:val="left"/>` +
	`<w:pPr><w:ind w:left="360" w:hanging="360"/></w:pPr></w:lvl></w:abstractNum>` +
	`<w:num w:numId="1"><w:abstractNumId w:val="0"/></w:num>` +
	`</w:numbering>`
