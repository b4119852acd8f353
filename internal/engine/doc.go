// Package engine reads the answers on a scanned form.
//
// An Engine takes a template and a ScannedImage, registers the page onto
// the template's coordinate frame and recognizes every field. Barcode
// fields are decoded in order on the calling goroutine. Bubble fields are
// scanned concurrently on a bounded errgroup pool, one job per bubble, and
// their hits are merged in template declaration order so a One question
// with two marks always keeps the same answer.
//
// Failures never escape ApplyTemplate. They are reported in the returned
// page's Outcome and ErrorMessage.
package engine
