package motion

// Activity thresholds relative to the profile length.
const (
	// columnActivityRatio of the working height must move for a column to be active.
	columnActivityRatio = 0.1

	// rowActivityRatio of the span width must move for a row to be active.
	rowActivityRatio = 0.2
)

// ColumnActivity counts moving pixels per column of a motion mask.
//
// Parameters:
//   - mask: Row-major motion mask with width*height entries, true where a
//     pixel moved.
//   - width, height: Mask dimensions in working pixels.
//   - from, to: Column range [from, to) to count. The range is clipped to
//     [0, width).
//
// Returns:
//   - []int: One count per column of the clipped range; entry i belongs to
//     column from+i. Nil when the clipped range is empty.
func ColumnActivity(mask []bool, width, height, from, to int) []int {
	from = max(from, 0)
	to = min(to, width)
	if to <= from {
		return nil
	}

	counts := make([]int, to-from)
	for y := 0; y < height; y++ {
		row := mask[y*width : (y+1)*width]
		for x := from; x < to; x++ {
			if row[x] {
				counts[x-from]++
			}
		}
	}
	return counts
}

// RowActivity counts moving pixels per row within columns [from, to).
// It returns one count per mask row; an empty column range yields all zeros.
func RowActivity(mask []bool, width, height, from, to int) []int {
	from = max(from, 0)
	to = min(to, width)

	counts := make([]int, height)
	for y := 0; y < height; y++ {
		row := mask[y*width : (y+1)*width]
		for x := from; x < to; x++ {
			if row[x] {
				counts[y]++
			}
		}
	}
	return counts
}

// ActiveIndices returns offset+i for every count strictly greater than
// threshold, in ascending order.
func ActiveIndices(counts []int, threshold float64, offset int) []int {
	var active []int
	for i, c := range counts {
		if float64(c) > threshold {
			active = append(active, i+offset)
		}
	}
	return active
}

// Span derives the horizontal crop range from active column indices.
//
// Parameters:
//   - active: Active column indices in ascending order, as returned by
//     ActiveIndices.
//   - padding: Pixels trimmed from each end of the range.
//   - lo, hi: Search band limits the result is clamped to.
//
// Returns:
//   - xMin: max(first active column + padding, lo).
//   - xMax: min(last active column - padding, hi).
//   - ok: False when active is empty or xMin >= xMax. Callers treat that as
//     a span with no rows.
//
// # Example
//
//	Span([]int{10, 11, 29}, 2, 0, 64) // 12, 27, true
//	Span([]int{10, 13}, 3, 0, 64)     // 13, 10, false
func Span(active []int, padding, lo, hi int) (xMin, xMax int, ok bool) {
	if len(active) == 0 {
		return 0, 0, false
	}
	xMin = max(active[0]+padding, lo)
	xMax = min(active[len(active)-1]-padding, hi)
	return xMin, xMax, xMin < xMax
}
