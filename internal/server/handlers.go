package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/ironsheep/omr-engine/internal/barcode"
	omrerrors "github.com/ironsheep/omr-engine/internal/errors"
	"github.com/ironsheep/omr-engine/internal/geometry"
	"github.com/ironsheep/omr-engine/internal/imaging"
	"github.com/ironsheep/omr-engine/internal/output"
	"github.com/ironsheep/omr-engine/internal/processor"
	"github.com/ironsheep/omr-engine/internal/template"
)

// Defaults for optional tool arguments.
const (
	defaultMarkerWidth  = 400
	defaultMarkerHeight = 80
	defaultHighlight    = "#FFD700"
)

var errNoStore = errors.New("no page store configured")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "omr_apply_template").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		var oe *omrerrors.OMRError
		if errors.As(err, &oe) {
			s.logger.Warn("tool failed", "tool", params.Name, "error", oe.ToMap())
		} else {
			s.logger.Debug("tool failed", "tool", params.Name, "error", err)
		}
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	return s.reply(req.ID, map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": mustMarshalJSON(result)},
		},
	})
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Scan inspection
	case "omr_image_info":
		return s.handleImageInfo(args)
	case "omr_crop":
		return s.handleCrop(args)
	case "omr_analyze_image":
		return s.handleAnalyzeImage(args)
	case "omr_read_barcodes":
		return s.handleReadBarcodes(args)
	case "omr_ocr_region":
		return s.handleOCRRegion(args)
	case "omr_make_marker":
		return s.handleMakeMarker(args)
	case "omr_clear_cache":
		return s.handleClearCache(args)

	// Templates
	case "omr_load_template":
		return s.handleLoadTemplate(args)
	case "omr_create_template":
		return s.handleCreateTemplate(args)

	// Page processing
	case "omr_apply_template":
		return s.handleApplyTemplate(args)
	case "omr_render_page":
		return s.handleRenderPage(args)

	// Stored pages
	case "omr_list_pages":
		return s.handleListPages(args)
	case "omr_get_page":
		return s.handleGetPage(args)
	case "omr_validate_page":
		return s.handleValidatePage(args)
	case "omr_delete_page":
		return s.handleDeletePage(args)
	case "omr_import_page":
		return s.handleImportPage(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	resp := &MCPResponse{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
		},
	}
	if data != "" {
		resp.Error.Data = data
	}
	return resp
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Scan Inspection Handlers ===

type pathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageInfo(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

type regionArgs struct {
	Path string `json:"path"`
	X1   int    `json:"x1"`
	Y1   int    `json:"y1"`
	X2   int    `json:"x2"`
	Y2   int    `json:"y2"`
}

func (a regionArgs) rect() image.Rectangle {
	return image.Rect(a.X1, a.Y1, a.X2, a.Y2)
}

func (a regionArgs) hasRegion() bool {
	return a.X1 != 0 || a.Y1 != 0 || a.X2 != 0 || a.Y2 != 0
}

type cropArgs struct {
	regionArgs
	Scale float64 `json:"scale"`
}

func (s *Server) handleCrop(args json.RawMessage) (interface{}, error) {
	var a cropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, a.rect(), a.Scale)
}

type analyzeArgs struct {
	Path     string `json:"path"`
	Thorough *bool  `json:"thorough"`
}

// AnalyzeResult describes the registration of a scanned page.
type AnalyzeResult struct {
	Scannable    bool             `json:"scannable"`
	MarksFound   int              `json:"marks_found"`
	Corners      *geometry.Quad   `json:"corners,omitempty"`
	TemplateName string           `json:"template_name,omitempty"`
	Parameters   []string         `json:"parameters,omitempty"`
	Markers      []barcode.Result `json:"markers,omitempty"`
}

func (s *Server) handleAnalyzeImage(args json.RawMessage) (interface{}, error) {
	var a analyzeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	scan, err := s.openScan(a.Path)
	if err != nil {
		return nil, err
	}
	defer scan.Close()

	thorough := s.thorough
	if a.Thorough != nil {
		thorough = *a.Thorough
	}
	if err := scan.Analyze(thorough); err != nil {
		return nil, err
	}

	res := &AnalyzeResult{
		Scannable:    scan.IsScannable(),
		MarksFound:   scan.MarksFound(),
		TemplateName: scan.TemplateName(),
		Parameters:   scan.Parameters(),
		Markers:      scan.MarkerCodes(),
	}
	if res.Scannable {
		corners := scan.Corners()
		res.Corners = &corners
	}
	return res, nil
}

type readBarcodesArgs struct {
	regionArgs
	Formats []string `json:"formats"`
}

// BarcodesResult lists the barcodes found on a page or region.
type BarcodesResult struct {
	Barcodes []barcode.Result `json:"barcodes"`
	Count    int              `json:"count"`
}

func (s *Server) handleReadBarcodes(args json.RawMessage) (interface{}, error) {
	var a readBarcodesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	formats, err := barcode.ParseFormats(a.Formats)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	var origin geometry.Point
	if a.hasRegion() {
		rect := a.rect().Intersect(img.Bounds())
		if rect.Empty() {
			return nil, fmt.Errorf("region %v outside image bounds %v", a.rect(), img.Bounds())
		}
		img = imaging.Region(img, rect)
		origin = geometry.Pt(float64(rect.Min.X), float64(rect.Min.Y))
	}

	results, err := s.decoder.DecodeMultiple(img, barcode.Options{
		TryHarder:    true,
		TryInverted:  true,
		ExtendedMode: true,
		Formats:      formats,
	})
	if err != nil {
		return nil, err
	}
	for i := range results {
		for j := range results[i].Points {
			results[i].Points[j] = results[i].Points[j].Add(origin)
		}
	}
	if results == nil {
		results = []barcode.Result{}
	}
	return &BarcodesResult{Barcodes: results, Count: len(results)}, nil
}

func (s *Server) handleOCRRegion(args json.RawMessage) (interface{}, error) {
	var a regionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.text == nil {
		return nil, errors.New("OCR is disabled; start the server with --ocr-fallback")
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return s.text.ExtractRegion(img, a.rect())
}

type makeMarkerArgs struct {
	Template   string   `json:"template"`
	Parameters []string `json:"parameters"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
}

// MarkerResult is a rendered marker barcode.
type MarkerResult struct {
	Text string `json:"text"`
	*imaging.CropResult
}

func (s *Server) handleMakeMarker(args json.RawMessage) (interface{}, error) {
	var a makeMarkerArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Template == "" {
		return nil, errors.New("template name is required")
	}
	if a.Width <= 0 {
		a.Width = defaultMarkerWidth
	}
	if a.Height <= 0 {
		a.Height = defaultMarkerHeight
	}

	text := barcode.MarkerText(a.Template, a.Parameters...)
	img, err := barcode.Encode(text, barcode.Code128, a.Width, a.Height)
	if err != nil {
		return nil, err
	}
	enc, err := imaging.Encode64(img)
	if err != nil {
		return nil, err
	}
	return &MarkerResult{Text: text, CropResult: enc}, nil
}

func (s *Server) handleClearCache(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		s.cache.Clear()
	} else {
		s.cache.Evict(a.Path)
	}
	return map[string]int{"cached": s.cache.Len()}, nil
}

// === Template Handlers ===

func (s *Server) handleLoadTemplate(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	t, err := template.Load(a.Path)
	if err != nil {
		return nil, err
	}
	s.remember(t)
	return t.Summarize(), nil
}

type createTemplateArgs struct {
	Path   string `json:"path"`
	ID     string `json:"id"`
	SaveAs string `json:"save_as"`
}

// TemplateResult is a template created from a reference scan.
type TemplateResult struct {
	template.Summary
	SavedTo string `json:"saved_to,omitempty"`
}

func (s *Server) handleCreateTemplate(args json.RawMessage) (interface{}, error) {
	var a createTemplateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	scan, err := s.openScan(a.Path)
	if err != nil {
		return nil, err
	}
	defer scan.Close()

	t, err := processor.TemplateFromScan(scan, a.ID, a.Path)
	if err != nil {
		return nil, err
	}
	if a.SaveAs != "" {
		if err := t.SaveAs(a.SaveAs); err != nil {
			return nil, err
		}
	}
	s.remember(t)
	return &TemplateResult{Summary: t.Summarize(), SavedTo: a.SaveAs}, nil
}

// === Page Processing Handlers ===

type applyArgs struct {
	Path         string `json:"path"`
	TemplateID   string `json:"template_id"`
	TemplatePath string `json:"template_path"`
	Format       string `json:"format"`
	Save         bool   `json:"save"`
}

// ApplyResult is a processed page with its validation.
type ApplyResult struct {
	PageID     string                  `json:"page_id"`
	Outcome    output.Outcome          `json:"outcome"`
	Validation output.ValidationResult `json:"validation"`
	Stored     bool                    `json:"stored"`
	Page       *output.PageOutput      `json:"page,omitempty"`
	XML        string                  `json:"xml,omitempty"`
}

func (s *Server) handleApplyTemplate(args json.RawMessage) (interface{}, error) {
	var a applyArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	scan, err := s.openScan(a.Path)
	if err != nil {
		return nil, err
	}
	defer scan.Close()

	t, err := s.templateFor(a.TemplateID, a.TemplatePath, scan)
	if err != nil {
		return nil, err
	}

	page := s.engine.ApplyTemplate(t, scan)
	res := &ApplyResult{
		PageID:     page.ID,
		Outcome:    page.Outcome,
		Validation: page.Validate(t),
	}
	if a.Save {
		if s.pages == nil {
			return nil, errNoStore
		}
		if err := s.pages.SavePage(page); err != nil {
			return nil, err
		}
		res.Stored = true
	}
	if err := renderPage(res, page, a.Format); err != nil {
		return nil, err
	}
	return res, nil
}

type renderArgs struct {
	PageID string `json:"page_id"`
	Color  string `json:"color"`
}

func (s *Server) handleRenderPage(args json.RawMessage) (interface{}, error) {
	var a renderArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Color == "" {
		a.Color = defaultHighlight
	}
	c, err := imaging.ParseColor(a.Color)
	if err != nil {
		return nil, err
	}
	if s.pages == nil {
		return nil, errNoStore
	}
	page, err := s.pages.GetPage(a.PageID)
	if err != nil {
		return nil, err
	}
	if page.AnalyzedImage == "" {
		return nil, fmt.Errorf("page %s has no analyzed image", page.ID)
	}
	img, err := s.cache.Load(page.AnalyzedImage)
	if err != nil {
		return nil, err
	}

	var marked []image.Rectangle
	var boxes []imaging.Box
	for _, b := range page.Bubbles() {
		r := boundRect(b.Bound)
		marked = append(marked, r)
		boxes = append(boxes, imaging.Box{Rect: r, Label: b.Value, Group: b.Key})
	}
	for _, b := range page.Barcodes() {
		boxes = append(boxes, imaging.Box{Rect: boundRect(b.Bound), Label: b.Text, Group: b.ID})
	}
	return imaging.Encode64(imaging.Overlay(imaging.Highlight(img, marked, c), boxes))
}

// === Stored Page Handlers ===

func (s *Server) handleListPages(_ json.RawMessage) (interface{}, error) {
	if s.pages == nil {
		return nil, errNoStore
	}
	pages, err := s.pages.ListPages()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"pages": pages, "count": len(pages)}, nil
}

type pageArgs struct {
	PageID       string `json:"page_id"`
	Format       string `json:"format"`
	TemplatePath string `json:"template_path"`
}

func (s *Server) handleGetPage(args json.RawMessage) (interface{}, error) {
	var a pageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.pages == nil {
		return nil, errNoStore
	}
	page, err := s.pages.GetPage(a.PageID)
	if err != nil {
		return nil, err
	}
	res := &ApplyResult{PageID: page.ID, Outcome: page.Outcome, Stored: true}
	if err := renderPage(res, page, a.Format); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Server) handleValidatePage(args json.RawMessage) (interface{}, error) {
	var a pageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.pages == nil {
		return nil, errNoStore
	}
	page, err := s.pages.GetPage(a.PageID)
	if err != nil {
		return nil, err
	}
	t, err := s.templateFor(page.TemplateID, a.TemplatePath, nil)
	if err != nil {
		return nil, err
	}
	return page.Validate(t), nil
}

func (s *Server) handleDeletePage(args json.RawMessage) (interface{}, error) {
	var a pageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.pages == nil {
		return nil, errNoStore
	}
	if err := s.pages.DeletePage(a.PageID); err != nil {
		return nil, err
	}
	return map[string]string{"deleted": a.PageID}, nil
}

func (s *Server) handleImportPage(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.pages == nil {
		return nil, errNoStore
	}
	f, err := os.Open(a.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	page, err := output.DecodeXML(f)
	if err != nil {
		return nil, err
	}
	if err := s.pages.SavePage(page); err != nil {
		return nil, err
	}
	return map[string]interface{}{"page_id": page.ID, "outcome": page.Outcome}, nil
}

// === Helpers ===

// openScan wraps a cached page in a ScannedImage owned by the caller.
func (s *Server) openScan(path string) (*processor.ScannedImage, error) {
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, err
	}
	return processor.NewScannedImage(img,
		processor.WithLogger(s.logger),
		processor.WithDecoder(s.decoder)), nil
}

// templateFor picks the template for a page: an explicit file, then a loaded
// or resolvable template id, then the marker barcode on scan.
func (s *Server) templateFor(id, path string, scan *processor.ScannedImage) (*template.Template, error) {
	if path != "" {
		t, err := template.Load(path)
		if err != nil {
			return nil, err
		}
		s.remember(t)
		return t, nil
	}

	if id == "" && scan != nil {
		if err := scan.Analyze(s.thorough); err != nil {
			return nil, err
		}
		id = scan.TemplateName()
	}
	if id == "" {
		return nil, errors.New("no template given and the form carries no marker barcode")
	}

	s.mu.RLock()
	t, ok := s.templates[id]
	s.mu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := s.resolver.Resolve(id)
	if err != nil {
		return nil, err
	}
	s.remember(t)
	return t, nil
}

func (s *Server) remember(t *template.Template) {
	s.mu.Lock()
	s.templates[t.ID] = t
	s.mu.Unlock()
}

// renderPage attaches page to res in the requested format.
func renderPage(res *ApplyResult, page *output.PageOutput, format string) error {
	switch format {
	case "", "json":
		res.Page = page
	case "xml":
		var buf bytes.Buffer
		if err := page.EncodeXML(&buf); err != nil {
			return err
		}
		res.XML = buf.String()
	default:
		return fmt.Errorf("unknown format %q: use json or xml", format)
	}
	return nil
}

func boundRect(b output.Bound) image.Rectangle {
	return image.Rectangle{Min: b.TopLeft.Image(), Max: b.BottomRight.Image()}
}
