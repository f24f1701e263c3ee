package search

import (
	"sort"

	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
)

// PrevLink is the predecessor of a path: the path it was propagated from
// and the edge and arc it crossed.
type PrevLink struct {
	Path PathVertexRep
	Edge graph.EdgeID
	Arc  int
}

// NoPrevLink is the predecessor of paths that start at a vertex.
var NoPrevLink = PrevLink{Path: NullPathVertexRep, Edge: graph.EdgeIDNull, Arc: -1}

// IsNull reports if there is no predecessor.
func (p PrevLink) IsNull() bool { return p.Path.IsNull() }

type bldrEntry struct {
	tag     *Tag
	arrival delay.Delay
	prev    PrevLink
}

// TagGroupBldr collects the paths arriving at one vertex. Paths whose tags
// match are merged into the one with the worse arrival, so the result does
// not depend on the order paths are added in.
type TagGroupBldr struct {
	search  *Search
	entries []bldrEntry
	byMatch map[uint64][]int
	byTag   map[TagIndex]int
}

// NewTagGroupBldr returns an empty builder.
func (s *Search) NewTagGroupBldr() *TagGroupBldr {
	return &TagGroupBldr{
		search:  s,
		byMatch: make(map[uint64][]int),
		byTag:   make(map[TagIndex]int),
	}
}

// Reset empties the builder for reuse.
func (b *TagGroupBldr) Reset() {
	b.entries = b.entries[:0]
	clear(b.byMatch)
	clear(b.byTag)
}

// Empty reports if no path was added.
func (b *TagGroupBldr) Empty() bool { return len(b.entries) == 0 }

// Len returns the number of distinct paths.
func (b *TagGroupBldr) Len() int { return len(b.entries) }

// SetMatchArrival merges a path into the builder. If a path with a match
// equal tag exists the worse arrival for the analysis point survives; ties
// keep the smaller tag and then the smaller predecessor.
func (b *TagGroupBldr) SetMatchArrival(tag *Tag, arrival delay.Delay, prev PrevLink) {
	crpr := b.search.crprActive()
	mh := tag.MatchHash(crpr)
	for _, i := range b.byMatch[mh] {
		old := &b.entries[i]
		if !old.tag.MatchEqual(tag, crpr) {
			continue
		}
		cand := bldrEntry{tag: tag, arrival: arrival, prev: prev}
		if b.search.entryBetter(&cand, old) {
			delete(b.byTag, old.tag.index)
			*old = cand
			b.byTag[tag.index] = i
		}
		return
	}
	b.add(bldrEntry{tag: tag, arrival: arrival, prev: prev}, mh)
}

// InsertPath adds a path without merging. An existing path with the same
// tag is replaced.
func (b *TagGroupBldr) InsertPath(tag *Tag, arrival delay.Delay, prev PrevLink) {
	e := bldrEntry{tag: tag, arrival: arrival, prev: prev}
	if i, ok := b.byTag[tag.index]; ok {
		b.entries[i] = e
		return
	}
	b.add(e, tag.MatchHash(b.search.crprActive()))
}

func (b *TagGroupBldr) add(e bldrEntry, mh uint64) {
	i := len(b.entries)
	b.entries = append(b.entries, e)
	b.byMatch[mh] = append(b.byMatch[mh], i)
	b.byTag[e.tag.index] = i
}

// Arrival returns the arrival of the path with tag.
func (b *TagGroupBldr) Arrival(tag *Tag) (delay.Delay, bool) {
	i, ok := b.byTag[tag.index]
	if !ok {
		return delay.Zero, false
	}
	return b.entries[i].arrival, true
}

// MatchTag returns the tag and arrival of the path that match-equals tag.
func (b *TagGroupBldr) MatchTag(tag *Tag) (*Tag, delay.Delay, bool) {
	crpr := b.search.crprActive()
	for _, i := range b.byMatch[tag.MatchHash(crpr)] {
		if e := b.entries[i]; e.tag.MatchEqual(tag, crpr) {
			return e.tag, e.arrival, true
		}
	}
	return nil, delay.Zero, false
}

// Tags returns the tags of the builder in Tag.Cmp order.
func (b *TagGroupBldr) Tags() []*Tag {
	tags := make([]*Tag, len(b.entries))
	for i, e := range b.entries {
		tags[i] = e.tag
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Cmp(tags[j]) < 0 })
	return tags
}

// MakeTagGroup returns the interned group of the builder's tags, nil when
// the builder is empty.
func (b *TagGroupBldr) MakeTagGroup() (*TagGroup, error) {
	if b.Empty() {
		return nil, nil
	}
	return b.search.findTagGroup(b.Tags())
}

// CopyArrivals writes the arrivals and predecessors of the builder into
// slot order of tg.
func (b *TagGroupBldr) CopyArrivals(tg *TagGroup, arrivals []delay.Delay, prevs []PrevLink) error {
	if tg.Len() != len(arrivals) || tg.Len() != len(prevs) {
		return critical("CopyArrivals", "%d slots for %d arrivals", tg.Len(), len(arrivals))
	}
	for slot, tag := range tg.tags {
		i, ok := b.byTag[tag.index]
		if !ok {
			return critical("CopyArrivals", "tag %d of group %d has no arrival", tag.index, tg.index)
		}
		arrivals[slot] = b.entries[i].arrival
		prevs[slot] = b.entries[i].prev
	}
	return nil
}

func (s *Search) findTagGroup(tags []*Tag) (*TagGroup, error) {
	tg := newTagGroup(tags, s.crprActive())
	got, _, inserted, err := s.tagGroups.FindOrInsert(tg, func(id uint32) { tg.index = id })
	if err != nil {
		return nil, critical("MakeTagGroup", "%v", err)
	}
	if inserted {
		s.metrics.tagGroupCreated()
	}
	return got, nil
}

// entryBetter reports if a replaces b in a merge.
func (s *Search) entryBetter(a, b *bldrEntry) bool {
	mm := s.corners.PathAnalysisPt(a.tag.pathAPIndex).PathMinMax()
	if s.model.Worse(a.arrival, b.arrival, mm) {
		return true
	}
	if !s.model.Equal(a.arrival, b.arrival, mm) {
		return false
	}
	if r := a.tag.Cmp(b.tag); r != 0 {
		return r < 0
	}
	return s.cmpPrev(a.prev, b.prev) < 0
}

func (s *Search) cmpPrev(a, b PrevLink) int {
	if r := cmpInt(int(a.Path.Vertex), int(b.Path.Vertex)); r != 0 {
		return r
	}
	if r := cmpInt(int(a.Edge), int(b.Edge)); r != 0 {
		return r
	}
	if r := cmpInt(a.Arc, b.Arc); r != 0 {
		return r
	}
	if a.Path.Tag == b.Path.Tag {
		return 0
	}
	ta, okA := s.TagByIndex(a.Path.Tag)
	tb, okB := s.TagByIndex(b.Path.Tag)
	if !okA || !okB {
		return cmpInt(int(a.Path.Tag), int(b.Path.Tag))
	}
	return ta.Cmp(tb)
}
