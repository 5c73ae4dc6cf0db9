package pipeline

import (
	"fmt"

	"github.com/cocosip/go-dicom-jpeg/codec"
)

// itemHeaderSize is the tag and length preceding every fragment item
const itemHeaderSize = 8

// GroupFragments splits the fragments of an encapsulated pixel data element
// into one group per frame. offsets is the Basic Offset Table, which may be
// empty. Without a usable table, fragments map 1:1 to frames when the
// counts agree, otherwise every fragment starting with an SOI marker starts
// a new frame. Frames without fragments get a nil group.
func GroupFragments(fragments [][]byte, offsets []uint32, numberOfFrames int, ignoreOffsetTable bool) ([][][]byte, error) {
	if numberOfFrames < 1 {
		return nil, fmt.Errorf("%w: number of frames %d", codec.ErrInvalidParameter, numberOfFrames)
	}
	if numberOfFrames == 1 {
		return [][][]byte{fragments}, nil
	}

	if len(offsets) == numberOfFrames && !ignoreOffsetTable {
		if groups, ok := groupByOffsets(fragments, offsets); ok {
			return groups, nil
		}
	}
	if len(fragments) == numberOfFrames {
		groups := make([][][]byte, numberOfFrames)
		for i, f := range fragments {
			groups[i] = [][]byte{f}
		}
		return groups, nil
	}

	groups := make([][][]byte, 0, numberOfFrames)
	for _, f := range fragments {
		if len(groups) == 0 || startsWithSOI(f) {
			if len(groups) == numberOfFrames {
				return nil, fmt.Errorf("%w: more than %d frames start in %d fragments",
					codec.ErrInvalidParameter, numberOfFrames, len(fragments))
			}
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], f)
	}
	for len(groups) < numberOfFrames {
		groups = append(groups, nil)
	}
	return groups, nil
}

// groupByOffsets maps every table entry to the fragment item starting at
// that offset; ok is false when the table does not match the items
func groupByOffsets(fragments [][]byte, offsets []uint32) (groups [][][]byte, ok bool) {
	starts := make(map[uint32]int, len(fragments))
	pos := uint32(0)
	for i, f := range fragments {
		starts[pos] = i
		pos += itemHeaderSize + uint32(len(f))
	}

	first := make([]int, len(offsets))
	for i, off := range offsets {
		idx, found := starts[off]
		if !found || (i > 0 && idx <= first[i-1]) {
			return nil, false
		}
		first[i] = idx
	}
	if first[0] != 0 {
		return nil, false
	}

	groups = make([][][]byte, len(offsets))
	for i := range offsets {
		end := len(fragments)
		if i+1 < len(offsets) {
			end = first[i+1]
		}
		groups[i] = fragments[first[i]:end]
	}
	return groups, true
}

func startsWithSOI(f []byte) bool {
	return len(f) >= 2 && f[0] == 0xFF && f[1] == 0xD8
}
