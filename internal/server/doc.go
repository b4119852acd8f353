// Package server implements the MCP (Model Context Protocol) server for the
// OMR engine.
//
// It is a JSON-RPC 2.0 server over stdio that lets an MCP client inspect
// scanned forms, manage templates, read the marks on a page and query the
// stored results.
//
// # Protocol
//
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout; logs go to stderr
//
// Supported MCP methods: initialize, tools/list, tools/call, ping.
//
// # Available Tools
//
// Scan inspection:
//   - omr_image_info: dimensions, format and size of a scan
//   - omr_crop: extract a region as base64 PNG
//   - omr_analyze_image: registration marks and marker barcodes
//   - omr_read_barcodes: decode every barcode on a page or region
//   - omr_ocr_region: read printed text (needs OCR enabled)
//   - omr_make_marker: render a marker barcode for a template
//   - omr_clear_cache: drop cached scans
//
// Templates:
//   - omr_load_template: load a template document
//   - omr_create_template: start a template from a reference scan
//
// Page processing:
//   - omr_apply_template: read a page, validate it and optionally store it
//   - omr_render_page: draw a stored page's answers over its analyzed image
//
// Stored pages (need a page store):
//   - omr_list_pages, omr_get_page, omr_validate_page, omr_delete_page,
//     omr_import_page
//
// # Caching
//
// Decoded scans are cached by path for the lifetime of the process, and
// templates are remembered by id once loaded. Each tool call works on its
// own copy of a cached scan, so analysis never alters the cache.
//
// # Error Handling
//
// Tool failures are JSON-RPC errors with code -32000 and the Go error text as
// data. A page that could not be read is not a tool failure: it comes back
// with outcome Failure and an error message.
package server
