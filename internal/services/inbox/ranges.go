package inbox

import (
	"slices"

	"ciphersync/internal/domain"
)

// mergeRange inserts r into ranges and coalesces overlapping or adjacent
// ranges. The result is sorted by offset.
func mergeRange(ranges []domain.ByteRange, r domain.ByteRange) []domain.ByteRange {
	all := append(slices.Clone(ranges), r)
	slices.SortFunc(all, func(a, b domain.ByteRange) int {
		switch {
		case a.Offset < b.Offset:
			return -1
		case a.Offset > b.Offset:
			return 1
		}
		return 0
	})

	out := all[:1]
	for _, next := range all[1:] {
		last := &out[len(out)-1]
		if next.Offset <= last.End() {
			if next.End() > last.End() {
				last.Length = next.End() - last.Offset
			}
			continue
		}
		out = append(out, next)
	}
	return out
}

// covers reports whether ranges (merged) cover [0, size).
func covers(ranges []domain.ByteRange, size int64) bool {
	if size == 0 {
		return true
	}
	return len(ranges) == 1 && ranges[0].Offset == 0 && ranges[0].End() >= size
}
