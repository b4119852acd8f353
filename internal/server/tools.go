package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func schema(properties map[string]interface{}, required ...string) map[string]interface{} {
	s := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        typ,
		"description": description,
	}
}

func stringList(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": description,
	}
}

var (
	scanPathProp = prop("string", "Absolute path to the scanned page (PNG, JPEG, GIF, BMP, TIFF, HEIC or PDF)")
	pageIDProp   = prop("string", "Id of a stored page, e.g. Survey20261019140509")
	formatProp   = map[string]interface{}{
		"type":        "string",
		"enum":        []string{"json", "xml"},
		"description": "Output format of the page. Default json",
		"default":     "json",
	}
)

func regionProps(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"path": scanPathProp,
		"x1":   prop("integer", "Left edge X coordinate (0-based)"),
		"y1":   prop("integer", "Top edge Y coordinate (0-based)"),
		"x2":   prop("integer", "Right edge X coordinate (exclusive)"),
		"y2":   prop("integer", "Bottom edge Y coordinate (exclusive)"),
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Scan inspection
		{
			Name:        "omr_image_info",
			Description: "Load a scanned page and return its dimensions, detected format and file size. The decoded page is cached for later calls.",
			InputSchema: schema(map[string]interface{}{"path": scanPathProp}, "path"),
		},
		{
			Name:        "omr_crop",
			Description: "Crop a rectangular region from a scanned page and return it as base64-encoded PNG. Use this to look closely at bubbles or barcodes.",
			InputSchema: schema(regionProps(map[string]interface{}{
				"scale": map[string]interface{}{
					"type":        "number",
					"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
					"default":     1.0,
				},
			}), "path", "x1", "y1", "x2", "y2"),
		},
		{
			Name:        "omr_analyze_image",
			Description: "Locate the four registration marks of a scanned form and read its marker barcodes. Reports whether the page is scannable, the mark corners and the template name printed on the form.",
			InputSchema: schema(map[string]interface{}{
				"path":     scanPathProp,
				"thorough": prop("boolean", "Scan every row of the page for marker barcodes (default true). false is faster but misses markers printed near the top or bottom"),
			}, "path"),
		},
		{
			Name:        "omr_read_barcodes",
			Description: "Decode every barcode on a scanned page, or inside a region of it when x1,y1,x2,y2 are given.",
			InputSchema: schema(regionProps(map[string]interface{}{
				"formats": stringList("Restrict decoding to these symbologies, e.g. CODE_128, CODE_39, QR_CODE"),
			}), "path"),
		},
		{
			Name:        "omr_ocr_region",
			Description: "Read printed text inside a region of a scanned page with Tesseract. Word boxes are returned in page coordinates.",
			InputSchema: schema(regionProps(nil), "path", "x1", "y1", "x2", "y2"),
		},
		{
			Name:        "omr_make_marker",
			Description: "Render the marker barcode that names a template, for printing onto blank forms. Returns the barcode text and a base64-encoded PNG.",
			InputSchema: schema(map[string]interface{}{
				"template":   prop("string", "Template name"),
				"parameters": stringList("Optional page parameters appended to the marker"),
				"width":      prop("integer", "Minimum width in pixels. Default 400"),
				"height":     prop("integer", "Height in pixels. Default 80"),
			}, "template"),
		},
		{
			Name:        "omr_clear_cache",
			Description: "Drop a cached page, or every cached page when no path is given.",
			InputSchema: schema(map[string]interface{}{
				"path": prop("string", "Absolute path of the page to drop"),
			}),
		},

		// Templates
		{
			Name:        "omr_load_template",
			Description: "Load an OMR template document (.mxml) and return its summary: corners, scan threshold and field counts.",
			InputSchema: schema(map[string]interface{}{
				"path": prop("string", "Absolute path to the template file"),
			}, "path"),
		},
		{
			Name:        "omr_create_template",
			Description: "Start a template from a reference scan of a blank form. The registration marks become the template corners; fields are added afterwards.",
			InputSchema: schema(map[string]interface{}{
				"path":    scanPathProp,
				"id":      prop("string", "Template id used when the form carries no marker barcode"),
				"save_as": prop("string", "Optional absolute path to write the template to"),
			}, "path"),
		},

		// Page processing
		{
			Name:        "omr_apply_template",
			Description: "Read the marked answers and barcodes of a scanned page. The template is taken from template_path, template_id, or the marker barcode on the form, in that order. The page is validated and optionally stored.",
			InputSchema: schema(map[string]interface{}{
				"path":          scanPathProp,
				"template_id":   prop("string", "Name of a loaded template or of a template in the template directory"),
				"template_path": prop("string", "Absolute path to a template file"),
				"format":        formatProp,
				"save":          prop("boolean", "Store the page so it can be queried later"),
			}, "path"),
		},
		{
			Name:        "omr_render_page",
			Description: "Draw the answers of a stored page over its analyzed image and return it as base64-encoded PNG.",
			InputSchema: schema(map[string]interface{}{
				"page_id": pageIDProp,
				"color":   prop("string", "Highlight colour for marked bubbles as #RRGGBB. Default #FFD700"),
			}, "page_id"),
		},

		// Stored pages
		{
			Name:        "omr_list_pages",
			Description: "List stored pages with their template, outcome and answer count.",
			InputSchema: schema(map[string]interface{}{}),
		},
		{
			Name:        "omr_get_page",
			Description: "Return a stored page as JSON or XML.",
			InputSchema: schema(map[string]interface{}{
				"page_id": pageIDProp,
				"format":  formatProp,
			}, "page_id"),
		},
		{
			Name:        "omr_validate_page",
			Description: "Check a stored page against its template: outcome, barcode presence, single answers and aggregate ranges.",
			InputSchema: schema(map[string]interface{}{
				"page_id":       pageIDProp,
				"template_path": prop("string", "Absolute path to the template. Default: resolve by the page's template id"),
			}, "page_id"),
		},
		{
			Name:        "omr_delete_page",
			Description: "Delete a stored page.",
			InputSchema: schema(map[string]interface{}{"page_id": pageIDProp}, "page_id"),
		},
		{
			Name:        "omr_import_page",
			Description: "Store a page from an XML analysis document written by the scan command.",
			InputSchema: schema(map[string]interface{}{
				"path": prop("string", "Absolute path to the XML document"),
			}, "path"),
		},
	}
}
