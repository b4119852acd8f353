// Package processor turns a raw scan or photograph of a form into a page the
// template engine can read.
//
// A ScannedImage moves through three states:
//
//   - unknown: freshly constructed from a decoded image
//   - scannable: Analyze found exactly four circular registration marks and
//     assigned them to corner slots
//   - ready: PrepareProcessing rotated the page level, found the marks again
//     and cropped to them
//
// Analyze also reads "OMR:" marker barcodes, which name the template the form
// was printed from and carry optional colon-separated parameters.
//
// # Registration Marks
//
// Marks are solid printed circles with a radius between 20 and 45 pixels at
// scan resolution. The analyzer starts at the largest radius and lowers its
// acceptance threshold one pixel at a time until exactly four circles pass,
// which copes with scans at different DPI. Three or five qualifying marks
// leave the page non-scannable; it must not be passed on for recognition.
package processor
