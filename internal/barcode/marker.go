package barcode

import "strings"

// MarkerPrefix starts the text of every marker barcode.
const MarkerPrefix = "OMR:"

// Marker is the template reference carried by a marker barcode.
type Marker struct {
	TemplateName string   `json:"template_name"`
	Parameters   []string `json:"parameters,omitempty"`
}

// IsMarker reports whether text is reserved for marker barcodes.
func IsMarker(text string) bool {
	return strings.HasPrefix(text, MarkerPrefix)
}

// ParseMarker extracts the template reference from an "OMR:TL:<name>:<p>..."
// or "OMR:ID:<name>:<p>..." marker. Other marker kinds, such as the plain
// registration codes printed next to the corner marks, return false.
func ParseMarker(text string) (Marker, bool) {
	if !strings.HasPrefix(text, MarkerPrefix+"TL") && !strings.HasPrefix(text, MarkerPrefix+"ID") {
		return Marker{}, false
	}

	parts := strings.Split(text, ":")
	if len(parts) < 3 || parts[2] == "" {
		return Marker{}, false
	}

	m := Marker{TemplateName: parts[2]}
	if len(parts) > 3 {
		m.Parameters = parts[3:]
	}
	return m, true
}
