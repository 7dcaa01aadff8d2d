// Package imaging provides the frame operations used by the rod tracker.
//
// It covers the preprocessing chain that turns a native color frame into a
// contrast-normalized grayscale image suitable for optical flow, and the
// output side that crops or annotates native frames:
//
//   - Resize: scale a frame to the working resolution
//   - Luminance: ITU-R BT.601 grayscale (0.299*R + 0.587*G + 0.114*B)
//   - GlowMask / ApplyMask: exclude pixels saturated in both frames
//   - Equalize: global histogram equalization
//   - CropRect / Clone: sub-region extraction and deep copies
//   - DrawBounds: outline a region for visual inspection
//   - FrameSource / SaveFrame: ordered frame directories on disk
//
// # Coordinate System
//
// All pixel coordinates are 0-based with the origin at the top-left corner:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// # Masks
//
// Masks are row-major []bool slices with one entry per pixel of the image
// they were computed from.
//
// # Thread Safety
//
// The operations are stateless and may be called concurrently on different
// images. FrameSource is not safe for concurrent use.
package imaging
