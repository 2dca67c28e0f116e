// Package td2d locates and orients flat tiles in 2D camera images.
//
// A Detector runs a fixed pipeline over each image:
//
//	image → preprocess → extract candidates → fit corners → identify → map to world → aggregate
//
// Preprocessing and extraction run once per image. Fitting, identification
// and world mapping run per candidate on a bounded worker pool. The
// aggregator waits for every candidate, drops low-confidence detections,
// merges duplicates and orders the rest by centre y then x.
//
// # Usage
//
//	cfg := td2d.DefaultConfig()
//	det, err := td2d.New(cfg, td2d.WithCalibration(cal))
//	if err != nil {
//	    return err
//	}
//	res, err := det.Detect(ctx, img)
//
// # Errors
//
// Input-level problems abort the run: *InvalidInputError for an unusable
// image or configuration and *UncalibratedError when world poses are
// requested without a transform. A candidate whose corners cannot be fitted
// is dropped and counted in Result.Dropped. A tile that no matcher
// recognises is still a detection, with a nil Identity.
//
// # Coordinates
//
// Pixel coordinates have their origin at the centre of the top-left pixel,
// x to the right and y down. Rotations are in degrees from the +x axis,
// positive clockwise on screen, in [0, 360/symmetry) until an identity
// resolves the orientation, after which they span [0, 360).
package td2d
