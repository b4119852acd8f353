// Package detection finds connected foreground components in binary images
// and checks them for circularity.
//
// It is the blob and shape layer of the mark engine. The analyzer uses it to
// find the four printed registration circles of a form; the template engine
// uses it to measure the largest mark inside each bubble region.
//
// # Input Convention
//
// FindBlobs works on *image.Gray where foreground is white (luminance at or
// above 128) on a black background, i.e. the output of imaging.Binarize.
// Connectivity is 8-connected, so diagonal pen strokes stay in one blob.
//
// # Circle Fitting
//
// IsCircle fits a circle to a blob's edge points by linear least squares and
// accepts it when the mean radial deviation is small relative to the blob
// size. Squares, bars and smudges deviate far more than a printed disc and
// are rejected.
//
// # Coordinate System
//
// Blob rectangles and edge points use the coordinate space of the input
// image, including a non-zero origin when the input is a sub-image.
package detection
