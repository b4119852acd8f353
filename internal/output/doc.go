// Package output models the answers recognized on a scanned page.
//
// A PageOutput is a tree of Data results: bubble answers, decoded barcodes,
// rows that group the answers of one answer row group, and aggregates that
// count the marked bubbles of a Count question. Trees are built with
// PageOutput.Place, which applies the field's aggregation behavior, and can
// be checked against their template with Validate.
//
// Pages serialize to XML in the urn:scan-omr:analysis namespace and to JSON,
// where each result carries a "type" member. A Transform renders a batch of
// pages for export.
package output
