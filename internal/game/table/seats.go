package table

import "sort"

// NextPosition returns the first position strictly after `after` in
// ascending order, wrapping from the highest back to the lowest. It is the
// counter-clockwise neighbour among the given seats; `after` need not be one
// of them. ok is false when positions is empty.
func NextPosition(after int, positions []int) (int, bool) {
	if len(positions) == 0 {
		return 0, false
	}
	sorted := append([]int(nil), positions...)
	sort.Ints(sorted)
	for _, p := range sorted {
		if p > after {
			return p, true
		}
	}
	return sorted[0], true
}

// Rotation returns positions in ascending order starting at start and
// wrapping. When start is not a member the rotation begins at its next
// position.
func Rotation(start int, positions []int) []int {
	sorted := append([]int(nil), positions...)
	sort.Ints(sorted)
	idx := len(sorted)
	for i, p := range sorted {
		if p >= start {
			idx = i
			break
		}
	}
	if idx == len(sorted) {
		idx = 0
	}
	out := make([]int, 0, len(sorted))
	out = append(out, sorted[idx:]...)
	return append(out, sorted[:idx]...)
}
