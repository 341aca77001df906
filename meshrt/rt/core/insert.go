package core

type SortOrder int

const (
	// NearestFirst orders by ascending squared camera distance.
	NearestFirst SortOrder = iota
	// FarthestFirst orders back to front, for alpha blended materials.
	FarthestFirst
)

func (o SortOrder) String() string {
	if o == FarthestFirst {
		return "far"
	}
	return "near"
}

// SearchNodes is the number of probes taken per narrowing pass of FindInsertIndex.
const SearchNodes = 24

// past reports whether existing belongs strictly after key.
func (o SortOrder) past(existing, key float32) bool {
	if o == FarthestFirst {
		return existing < key
	}
	return existing > key
}

// FindInsertIndex returns the first index in keys whose value is past key
// for the given order, or len(keys) if there is none. keys must already be
// sorted in that order. Equal keys land after the ones already present.
//
// Each pass probes at most SearchNodes evenly spaced boundaries of the
// remaining range and keeps the bracket between the last boundary that is
// not past the key and the first one that is.
func FindInsertIndex(key float32, keys []float32, order SortOrder) int {
	// Invariant: everything before lo is not past key; keys[hi] is past key
	// or hi == len(keys).
	lo, hi := 0, len(keys)

	for lo < hi {
		width := hi - lo
		probes := min(SearchNodes, width)
		stride := width / probes

		nextLo, nextHi := lo, hi
		for i := 0; i < probes; i++ {
			p := lo + i*stride
			if order.past(keys[p], key) {
				nextHi = p
				break
			}
			nextLo = p + 1
		}
		lo, hi = nextLo, nextHi
	}
	return lo
}
