// Package docx reads and writes Office Open XML word-processing packages
// (.docx) at the level the optimizer needs: an ordered paragraph stream with
// style names and run-level bold/italic, plus raw part access for template
// substitution.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"
	"time"
)

const (
	ContentTypesPart = "[Content_Types].xml"
	DocumentPart     = "word/document.xml"
	StylesPart       = "word/styles.xml"

	// maxPartSize bounds a single decompressed part.
	maxPartSize = 64 << 20
)

// Part is one file inside the package.
type Part struct {
	Name     string
	Data     []byte
	Modified time.Time
}

// Package is an in-memory OPC package. Part order is preserved on write.
type Package struct {
	parts []*Part
	index map[string]int
}

func NewPackage() *Package {
	return &Package{index: make(map[string]int)}
}

// OpenPackage reads a .docx from memory and checks the required parts exist.
func OpenPackage(data []byte) (*Package, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty package")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening ZIP archive: %w", err)
	}

	pkg := NewPackage()
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		content, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		pkg.parts = append(pkg.parts, &Part{Name: f.Name, Data: content, Modified: f.Modified})
		pkg.index[f.Name] = len(pkg.parts) - 1
	}

	for _, name := range []string{ContentTypesPart, DocumentPart} {
		if _, ok := pkg.index[name]; !ok {
			return nil, fmt.Errorf("missing required file: %s", name)
		}
	}
	return pkg, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxPartSize {
		return nil, fmt.Errorf("part exceeds %d bytes", maxPartSize)
	}
	return data, nil
}

func (p *Package) Part(name string) ([]byte, bool) {
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return p.parts[i].Data, true
}

// SetPart replaces an existing part or appends a new one.
func (p *Package) SetPart(name string, data []byte) {
	if i, ok := p.index[name]; ok {
		p.parts[i].Data = data
		return
	}
	p.parts = append(p.parts, &Part{Name: name, Data: data})
	p.index[name] = len(p.parts) - 1
}

func (p *Package) PartNames() []string {
	names := make([]string, 0, len(p.parts))
	for _, part := range p.parts {
		names = append(names, part.Name)
	}
	return names
}

// Clone returns a deep copy so a template package is never mutated.
func (p *Package) Clone() *Package {
	out := NewPackage()
	for _, part := range p.parts {
		data := make([]byte, len(part.Data))
		copy(data, part.Data)
		out.parts = append(out.parts, &Part{Name: part.Name, Data: data, Modified: part.Modified})
		out.index[part.Name] = len(out.parts) - 1
	}
	return out
}

// Bytes serialises the package. [Content_Types].xml is written first, as
// some consumers expect. Nothing is returned unless the archive closed
// cleanly.
func (p *Package) Bytes() ([]byte, error) {
	parts := make([]*Part, len(p.parts))
	copy(parts, p.parts)
	sort.SliceStable(parts, func(i, j int) bool {
		return parts[i].Name == ContentTypesPart && parts[j].Name != ContentTypesPart
	})

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range parts {
		hdr := &zip.FileHeader{Name: part.Name, Method: zip.Deflate}
		if !part.Modified.IsZero() {
			hdr.Modified = part.Modified
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("creating %s: %w", part.Name, err)
		}
		if _, err := w.Write(part.Data); err != nil {
			zw.Close()
			return nil, fmt.Errorf("writing %s: %w", part.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing ZIP archive: %w", err)
	}
	return buf.Bytes(), nil
}
