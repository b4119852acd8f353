// Package imaging provides the raster operations the mark engine is built on.
//
// It covers three concerns:
//
//   - Input: content-sniffed decoding of PNG, JPEG, GIF, BMP, TIFF, HEIC and
//     PDF scans, plus a path-keyed ImageCache for the tool server.
//   - Processing: grayscale, fixed-level threshold, inversion, bilinear
//     rotation, Catmull-Rom registration onto a template-sized canvas and
//     crops that pad uncovered area with white.
//   - Output: JPEG snapshots of the analyzed page, BMP diagnostic images and
//     coloured field overlays.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. Rectangles are half-open:
// Min is inclusive, Max is exclusive.
//
// # Binarization Convention
//
// Threshold maps luminance at or above the level to white. Binarize then
// inverts, so printed marks and filled bubbles end up as white foreground on a
// black background, which is what the blob detector scans for.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The other functions never modify
// their input and return freshly allocated images, so they can run
// concurrently on the same source.
package imaging
