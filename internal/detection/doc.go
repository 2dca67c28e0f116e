// Package detection finds tile candidates in a binary mask and fits their
// corners and pose.
//
// # Candidate Extraction
//
// Extract runs the candidate stage:
//
//  1. Connected components: 8-connected foreground, 4-connected background.
//     Background regions that do not reach the border are holes and give
//     every component a parent and a nesting depth.
//  2. Boundary tracing: Moore-neighbour tracing of each outer boundary.
//  3. Approximation: closed Douglas-Peucker with an epsilon proportional to
//     the contour perimeter.
//  4. Filtering: vertex count, area, convexity defect, simplicity, border
//     contact and nesting policy.
//
// # Geometry Fitting
//
// FitCandidate refines each polygon vertex to sub-pixel accuracy by solving
// the gradient-orthogonality equations inside a small window, in the manner
// of OpenCV's cornerSubPix. Refinement is bounded by an iteration count and
// fails with ErrDegenerate when a corner diverges, the normal matrix is
// singular, or the refined outline collapses.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at the top-left pixel centre
//   - X increases rightward
//   - Y increases downward
//   - Clockwise means clockwise as seen on screen
//
// # Confidence Scores
//
// Fit.Confidence is in [0, 1], the product of:
//   - Fill ratio: region pixel count over refined polygon area
//   - Side regularity: shortest over longest side (opposite sides for rectangles)
//   - Corner angles: mean deviation from the ideal interior angle
package detection
