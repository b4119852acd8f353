// Package ocr reads printed text with Tesseract (via gosseract/v2).
//
// The engine uses it as a fallback for barcode fields: when a symbol cannot
// be decoded, the human-readable line printed with it often can.
//
// # Prerequisites
//
// Tesseract and its language data must be installed:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// # Readers
//
// A Reader carries a language code, an optional character whitelist and a
// page segmentation mode. Images are handed to Tesseract as in-memory PNGs,
// so no temporary files are written.
//
//   - ReadText: cleaned text of a whole image (the engine's TextReader)
//   - Extract: full text plus word boxes
//   - ExtractRegion: Extract on a rectangle, with boxes in image coordinates
//   - DetectRegions: text block locations without recognition
package ocr
