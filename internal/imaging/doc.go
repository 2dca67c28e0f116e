// Package imaging implements the preprocessing stage of the tile detector and
// the image utilities shared by the tool server.
//
// Preprocess turns any supported image.Image into a smoothed intensity plane
// (raster.Plane) and a binary foreground Mask. Grayscale conversion and gaussian blur come
// from disintegration/imaging; median denoising, morphology and the fixed
// threshold come from bild. Otsu and adaptive (integral-image local mean)
// thresholds are computed here. Row loops run in parallel via bild/parallel.
//
// # Coordinate System
//
// Planes and masks are indexed from (0,0) at the top-left pixel regardless of
// the source image's Bounds().Min. X increases rightward and Y downward.
// Sub-pixel sampling treats integer coordinates as pixel centres.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Planes and masks are plain
// values; the pipeline treats them as read-only once built, so they can be
// shared between goroutines.
//
// # Error Handling
//
// Images the detector cannot read (nil, zero-area or in an unsupported color
// model) are rejected with an error wrapping ErrInvalidImage, both by
// Validate and by ImageCache.Load, so they never reach the pipeline.
// Preprocess also returns errors for unknown threshold or denoise methods
// and for even blur kernels.
//
// # Performance
//
// Preprocessing is linear in the pixel count. The adaptive threshold uses an
// integral image, so its cost does not depend on the block size. Frames are
// decoded once per path and kept in the ImageCache.
//
// # Other Utilities
//
//   - Sobel gradients for sub-pixel corner refinement
//   - Homography warps into canonical tile patches (Warp, WarpImage)
//   - Mean tile colour in linear RGB via go-colorful (MeanColor)
//   - PNG views for clients: Crop, CropPolygon, TileView, Overlay
package imaging
