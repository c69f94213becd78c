package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/p-shah256/resume-optimizer/pkg/types"
)

// XML namespaces of the word-processing main part (transitional and strict).
const (
	nsW       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsWStrict = "http://purl.oclc.org/ooxml/wordprocessingml/main"
)

const defaultStyleName = "Normal"

// Document is a parsed .docx.
type Document struct {
	pkg        *Package
	styles     map[string]string
	paragraphs []types.Paragraph
}

// stylesXML is the subset of word/styles.xml needed to resolve style names.
type stylesXML struct {
	XMLName xml.Name      `xml:"styles"`
	Styles  []styleDefXML `xml:"style"`
}

type styleDefXML struct {
	Type    string `xml:"type,attr"`
	StyleID string `xml:"styleId,attr"`
	Default string `xml:"default,attr"`
	Name    struct {
		Val string `xml:"val,attr"`
	} `xml:"name"`
}

// Parse reads a .docx from memory.
func Parse(data []byte) (*Document, error) {
	pkg, err := OpenPackage(data)
	if err != nil {
		return nil, err
	}
	return FromPackage(pkg)
}

func FromPackage(pkg *Package) (*Document, error) {
	d := &Document{pkg: pkg, styles: make(map[string]string)}

	defaultStyle := ""
	if raw, ok := pkg.Part(StylesPart); ok {
		var styles stylesXML
		// styles are optional; a broken styles part only costs style names
		if err := xml.Unmarshal(raw, &styles); err == nil {
			for _, s := range styles.Styles {
				if s.StyleID == "" {
					continue
				}
				d.styles[s.StyleID] = displayStyleName(s.Name.Val, s.StyleID)
				// w:default is off unless present
				if s.Type == "paragraph" && s.Default != "" && isOn(s.Default) {
					defaultStyle = s.StyleID
				}
			}
		}
	}

	raw, _ := pkg.Part(DocumentPart)
	paragraphs, err := parseParagraphs(raw, func(styleID string) string {
		if styleID == "" {
			styleID = defaultStyle
		}
		if styleID == "" {
			return defaultStyleName
		}
		if name, ok := d.styles[styleID]; ok {
			return name
		}
		return styleID
	})
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	d.paragraphs = paragraphs
	return d, nil
}

// Paragraphs returns the body paragraphs in document order, including empty
// ones.
func (d *Document) Paragraphs() []types.Paragraph {
	out := make([]types.Paragraph, len(d.paragraphs))
	copy(out, d.paragraphs)
	return out
}

func (d *Document) Package() *Package {
	return d.pkg
}

// Text joins all paragraph texts with newlines.
func (d *Document) Text() string {
	texts := make([]string, 0, len(d.paragraphs))
	for _, p := range d.paragraphs {
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "\n")
}

// displayStyleName maps built-in lower-case names ("heading 1") to the names
// Word shows ("Heading 1").
func displayStyleName(name, id string) string {
	if name == "" {
		return id
	}
	if name == strings.ToLower(name) {
		return cases.Title(language.English).String(name)
	}
	return name
}

type paragraphState struct {
	styleID    string
	text       strings.Builder
	runs       int
	boldRuns   int
	italicRuns int
}

type runState struct {
	text   strings.Builder
	bold   bool
	italic bool
}

func isWordNS(name xml.Name) bool {
	return name.Space == nsW || name.Space == nsWStrict
}

func isOn(val string) bool {
	switch strings.ToLower(val) {
	case "false", "0", "off", "none":
		return false
	}
	return true
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// parseParagraphs walks document.xml in token order so text, tabs and breaks
// keep their relative positions. Paragraphs nested in text boxes are folded
// into their enclosing paragraph.
func parseParagraphs(data []byte, styleName func(string) string) ([]types.Paragraph, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		out     []types.Paragraph
		para    *paragraphState
		run     *runState
		depth   int
		inPPr   bool
		inRPr   bool
		inText  bool
		inBody  bool
		sawBody bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !isWordNS(t.Name) {
				continue
			}
			switch t.Name.Local {
			case "body":
				inBody, sawBody = true, true
			case "p":
				if !inBody {
					continue
				}
				depth++
				if depth == 1 {
					para = &paragraphState{}
				}
			case "pPr":
				inPPr = para != nil && run == nil
			case "pStyle":
				if inPPr && para != nil && depth == 1 {
					para.styleID = attr(t, "val")
				}
			case "r":
				if para != nil {
					run = &runState{}
				}
			case "rPr":
				inRPr = run != nil
			case "b":
				if inRPr {
					run.bold = isOn(attr(t, "val"))
				}
			case "i":
				if inRPr {
					run.italic = isOn(attr(t, "val"))
				}
			case "t":
				inText = run != nil
			case "tab":
				if run != nil && !inPPr {
					run.text.WriteString("\t")
				}
			case "br", "cr":
				if run != nil {
					run.text.WriteString("\n")
				}
			}

		case xml.CharData:
			if inText {
				run.text.Write(t)
			}

		case xml.EndElement:
			if !isWordNS(t.Name) {
				continue
			}
			switch t.Name.Local {
			case "body":
				inBody = false
			case "t":
				inText = false
			case "rPr":
				inRPr = false
			case "pPr":
				inPPr = false
			case "r":
				if run == nil || para == nil {
					continue
				}
				text := run.text.String()
				para.text.WriteString(text)
				if strings.TrimSpace(text) != "" {
					para.runs++
					if run.bold {
						para.boldRuns++
					}
					if run.italic {
						para.italicRuns++
					}
				}
				run = nil
			case "p":
				if !inBody || depth == 0 {
					continue
				}
				depth--
				if depth > 0 {
					continue
				}
				out = append(out, types.Paragraph{
					Text:      para.text.String(),
					Bold:      para.runs > 0 && para.boldRuns == para.runs,
					Italic:    para.runs > 0 && para.italicRuns == para.runs,
					StyleName: styleName(para.styleID),
				})
				para = nil
			}
		}
	}

	if !sawBody {
		return nil, fmt.Errorf("document has no body")
	}
	return out, nil
}
