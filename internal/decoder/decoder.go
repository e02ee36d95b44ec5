package decoder

import "fmt"

// A channel's payload is one contiguous span of fixed-width items. To decode it
// in parallel the span is cut into contiguous, non-overlapping sub-ranges; the
// merge step puts them back together ordered by First.

// DecodeMap describes how one payload span is split for decoding.
type DecodeMap struct {
	Ranges   []Range
	ItemSize int
	Start    int64 // absolute file offset of item 0
	Items    int
}

// Range is one sub-range of a payload span, in items.
type Range struct {
	First  int   // index of the first item
	Count  int   // number of items
	Offset int64 // absolute file offset of the first item
}

// End returns the index one past the last item in the range.
func (r Range) End() int { return r.First + r.Count }

// Bytes returns the number of payload bytes covered by the range.
func (m DecodeMap) Bytes(r Range) int { return r.Count * m.ItemSize }

// Span returns the total payload size in bytes.
func (m DecodeMap) Span() int64 { return int64(m.Items) * int64(m.ItemSize) }

// Plan splits items starting at the absolute offset start into sub-ranges of
// ceil(items/workers) items. The last range may be shorter.
func Plan(start int64, items, itemSize, workers int) (DecodeMap, error) {
	if items < 0 {
		return DecodeMap{}, fmt.Errorf("item count must not be negative")
	}
	if itemSize <= 0 {
		return DecodeMap{}, fmt.Errorf("item size must be positive")
	}
	if workers <= 0 {
		workers = 1
	}

	m := DecodeMap{ItemSize: itemSize, Start: start, Items: items}
	if items == 0 {
		return m, nil
	}

	chunk := (items + workers - 1) / workers
	for first := 0; first < items; first += chunk {
		count := chunk
		if first+count > items {
			count = items - first
		}
		m.Ranges = append(m.Ranges, Range{
			First:  first,
			Count:  count,
			Offset: start + int64(first)*int64(itemSize),
		})
	}
	return m, nil
}
