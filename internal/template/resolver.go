package template

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultExt is the file extension of template documents.
const DefaultExt = ".mxml"

// Resolver finds the template named by a form's marker barcode.
type Resolver struct {
	Dir string
	Ext string
}

// Path returns the file a template name maps to.
func (r Resolver) Path(name string) string {
	ext := r.Ext
	if ext == "" {
		ext = DefaultExt
	}
	return filepath.Join(r.Dir, name+ext)
}

// Resolve loads the template for name.
func (r Resolver) Resolve(name string) (*Template, error) {
	if name == "" {
		return nil, fmt.Errorf("no template name: the form carries no marker barcode")
	}
	if filepath.Base(name) != name || strings.Contains(name, "..") {
		return nil, fmt.Errorf("invalid template name %q", name)
	}
	return Load(r.Path(name))
}
