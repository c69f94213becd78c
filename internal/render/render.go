// Package render turns a section map back into a .docx, either by filling a
// placeholder template or by building a new document.
package render

import "github.com/p-shah256/resume-optimizer/pkg/types"

type Options struct {
	Template TemplateOptions
	Rebuild  RebuildOptions
}

// Render fills template when one is supplied and rebuilds otherwise.
func Render(template []byte, secs *types.SectionMap, opts Options) ([]byte, error) {
	if len(template) > 0 {
		return Template(template, secs, opts.Template)
	}
	return Rebuild(secs, opts.Rebuild)
}
