package replay

import (
	"iter"
	"slices"
)

// Fragment is a single keyframe or chunk payload.
type Fragment struct {
	ID   uint16
	Data []byte
}

// Fragments is an id-keyed collection of fragments. Ids need not be
// contiguous; iteration is always in ascending id order.
type Fragments struct {
	byID map[uint16]Fragment
}

// NewFragments creates a collection holding the given fragments.
// Later fragments replace earlier ones with the same id.
func NewFragments(frags ...Fragment) *Fragments {
	f := &Fragments{byID: make(map[uint16]Fragment, len(frags))}
	for _, fr := range frags {
		f.Put(fr)
	}
	return f
}

// Put stores fr under its id, replacing any fragment already there.
func (f *Fragments) Put(fr Fragment) {
	if f.byID == nil {
		f.byID = make(map[uint16]Fragment)
	}
	f.byID[fr.ID] = fr
}

// Get returns the fragment with the given id.
func (f *Fragments) Get(id uint16) (Fragment, bool) {
	if f == nil {
		return Fragment{}, false
	}
	fr, ok := f.byID[id]
	return fr, ok
}

// Len returns the number of populated entries.
func (f *Fragments) Len() int {
	if f == nil {
		return 0
	}
	return len(f.byID)
}

// Span returns the nominal length of the collection viewed as a sparse
// array indexed by id: the highest id plus one, or 0 when empty.
func (f *Fragments) Span() int {
	if f.Len() == 0 {
		return 0
	}
	ids := f.IDs()
	return int(ids[len(ids)-1]) + 1
}

// IDs returns the populated ids in ascending order.
func (f *Fragments) IDs() []uint16 {
	if f == nil {
		return nil
	}
	ids := make([]uint16, 0, len(f.byID))
	for id := range f.byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// All iterates the fragments in ascending id order.
func (f *Fragments) All() iter.Seq[Fragment] {
	return func(yield func(Fragment) bool) {
		for _, id := range f.IDs() {
			if !yield(f.byID[id]) {
				return
			}
		}
	}
}

// Last returns the fragment with the highest id.
func (f *Fragments) Last() (Fragment, bool) {
	ids := f.IDs()
	if len(ids) == 0 {
		return Fragment{}, false
	}
	return f.byID[ids[len(ids)-1]], true
}

// PayloadSize returns the sum of all fragment payload lengths.
func (f *Fragments) PayloadSize() int {
	if f == nil {
		return 0
	}
	n := 0
	for _, fr := range f.byID {
		n += len(fr.Data)
	}
	return n
}
