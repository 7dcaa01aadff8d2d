// Package motion finds a vertically moving rod in a video stream and derives
// a temporally stable crop rectangle around it.
//
// A Tracker is fed one frame at a time. For each pair of consecutive frames it
// estimates dense optical flow at a fixed working resolution, keeps the pixels
// whose vertical displacement exceeds a threshold, and aggregates them into
// column and row activity profiles:
//
//   - enough active columns inside the search band means a rod is detected
//   - enough active rows inside the (padded) column span confirms it and
//     yields the crop bounds
//
// # Hysteresis
//
// The first confirmation only records bounds; cropping starts with the next
// confirmed frame. When the rod touches the top of the working frame
// (YMin == 0) the previous bounds are used for the crop instead of the fresh
// ones, which are unstable at the edge.
//
// # Coordinates
//
// Bounds are computed in working-resolution pixels. By default they are
// applied to the native frame unchanged, so the working resolution must be
// chosen to share the native coordinate space. Set ScaleToNative in the
// configuration to rescale them instead.
//
// # Thread Safety
//
// A Tracker owns mutable per-stream state and must not be used from multiple
// goroutines at once. Use one Tracker per stream.
package motion
