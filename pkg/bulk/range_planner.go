package bulk

import "gitee.com/kvnode/kvnode/pkg/kvpb"

// ApproximateRanges divides props's total stored bytes into contiguous
// ranges each close to a target size, derived from maxRanges and
// minRangeSize. index_handles is walked in insertion order — it is not
// assumed to be globally sorted across merged tables — and the last key
// seen in a range becomes that range's boundary.
//
// The returned ranges are contiguous and cover [RangeMin, RangeMax]: the
// first range's Start is RangeMin and the last range's End is RangeMax.
func ApproximateRanges(props kvpb.SizeProperties, maxRanges int, minRangeSize uint64) []kvpb.RangeInfo {
	if len(props.IndexHandles) == 0 {
		return []kvpb.RangeInfo{{Start: kvpb.RangeMin(), End: kvpb.RangeMax(), Size: 0}}
	}

	target := ceilDiv(props.TotalSize, uint64(maxRanges))
	if target < minRangeSize {
		target = minRangeSize
	}

	var ranges []kvpb.RangeInfo
	accSize := uint64(0)
	start := kvpb.RangeMin()
	last := len(props.IndexHandles) - 1

	for i, h := range props.IndexHandles {
		accSize += h.Size
		end := h.Key
		if i == last {
			end = kvpb.RangeMax()
		}
		if accSize >= target || i == last {
			ranges = append(ranges, kvpb.RangeInfo{Start: start, End: end, Size: accSize})
			start = end
			accSize = 0
		}
	}
	return ranges
}

func ceilDiv(n, d uint64) uint64 {
	if d == 0 {
		return n
	}
	return (n + d - 1) / d
}
