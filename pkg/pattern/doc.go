// Package pattern identifies detected tiles from their canonical patches.
//
// A patch is the tile warped into a square frontal view with its first
// corner at the top-left. Four strategies are available:
//
//   - Fiducial: a black-bordered cell grid carrying a code and a CRC-4
//     checksum, read in every distinguishable orientation
//   - Template: normalized cross-correlation against an immutable Library
//   - Label: printed text through a LabelReader such as Tesseract
//   - Colour: nearest Palette swatch by CIEDE2000 difference
//
// Orientation counts clockwise quarter turns of the tile content relative to
// the patch. Squares distinguish four orientations and rectangles two.
// Results that several candidates explain equally well are reported as
// unidentified rather than guessed.
package pattern
