package processor

import (
	"github.com/ironsheep/omr-engine/internal/template"
)

// TemplateFromScan starts a template from a reference scan of a blank form.
//
// The scan is deskewed, and the registration mark centres in the deskewed
// frame become the template corners. The template is named after the
// marker barcode when one was read, otherwise id is used. The result has no
// fields; they are added by a designer.
func TemplateFromScan(s *ScannedImage, id, sourcePath string) (*template.Template, error) {
	if err := s.Analyze(true); err != nil {
		return nil, err
	}
	if err := s.PrepareProcessing(); err != nil {
		return nil, err
	}

	t := template.New()
	if name := s.TemplateName(); name != "" {
		t.ID = name
	} else if id != "" {
		t.ID = id
	}
	t.Quad = s.Corners()
	t.SourcePath = sourcePath
	return t, nil
}
