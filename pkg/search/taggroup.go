package search

// TagGroup maps the tags of a vertex to slots of its arrival arrays. Groups
// are interned so vertices with the same tag set share one TagGroup.
type TagGroup struct {
	index uint32
	hash  uint64
	tags  []*Tag
	slots map[TagIndex]int
	// Slots by tag match hash, for path continuation lookups.
	matchSlots map[uint64][]int
	crpr       bool

	hasClkTag       bool
	hasGenClkSrcTag bool
	hasFilterTag    bool
	hasLoopTag      bool
}

// newTagGroup builds a group from tags sorted by Tag.Cmp.
func newTagGroup(tags []*Tag, crpr bool) *TagGroup {
	tg := &TagGroup{
		tags:       tags,
		slots:      make(map[TagIndex]int, len(tags)),
		matchSlots: make(map[uint64][]int, len(tags)),
		crpr:       crpr,
	}
	var b keyBuf
	for i, t := range tags {
		tg.slots[t.index] = i
		mh := t.MatchHash(crpr)
		tg.matchSlots[mh] = append(tg.matchSlots[mh], i)
		b = b.u32(uint32(t.index))
		tg.hasClkTag = tg.hasClkTag || t.isClock
		tg.hasGenClkSrcTag = tg.hasGenClkSrcTag || t.clkInfo.isGenClkSrcPath
		tg.hasFilterTag = tg.hasFilterTag || t.isFilter
		tg.hasLoopTag = tg.hasLoopTag || t.isLoop
	}
	tg.hash = b.sum()
	return tg
}

// Index returns the interned index of the group.
func (g *TagGroup) Index() uint32 { return g.index }

// Hash returns the structural hash of the group.
func (g *TagGroup) Hash() uint64 { return g.hash }

// Len returns the number of tags, which is the number of arrival slots.
func (g *TagGroup) Len() int { return len(g.tags) }

// HasClkTag reports if any tag of the group is on a clock path.
func (g *TagGroup) HasClkTag() bool { return g.hasClkTag }

// HasGenClkSrcTag reports if any tag is on a generated clock source path.
func (g *TagGroup) HasGenClkSrcTag() bool { return g.hasGenClkSrcTag }

// HasFilterTag reports if any tag carries a report filter exception.
func (g *TagGroup) HasFilterTag() bool { return g.hasFilterTag }

// HasLoopTag reports if any tag carries a loop exception.
func (g *TagGroup) HasLoopTag() bool { return g.hasLoopTag }

// Tags returns the tags in slot order.
func (g *TagGroup) Tags() []*Tag { return g.tags }

// Equal reports if both groups hold the same tags.
func (g *TagGroup) Equal(o *TagGroup) bool {
	if g == o {
		return true
	}
	if g.hash != o.hash || len(g.tags) != len(o.tags) {
		return false
	}
	for i := range g.tags {
		if g.tags[i] != o.tags[i] {
			return false
		}
	}
	return true
}

// Slot returns the arrival slot of tag.
func (g *TagGroup) Slot(tag *Tag) (int, bool) {
	if g == nil || tag == nil {
		return 0, false
	}
	i, ok := g.slots[tag.index]
	return i, ok && g.tags[i] == tag
}

// HasTag reports if tag occupies a slot.
func (g *TagGroup) HasTag(tag *Tag) bool {
	_, ok := g.Slot(tag)
	return ok
}

// FindMatch returns the tag and slot of the group that match-equals tag.
func (g *TagGroup) FindMatch(tag *Tag) (*Tag, int, bool) {
	if g == nil {
		return nil, 0, false
	}
	for _, i := range g.matchSlots[tag.MatchHash(g.crpr)] {
		if g.tags[i].MatchEqual(tag, g.crpr) {
			return g.tags[i], i, true
		}
	}
	return nil, 0, false
}

// TagGroupCount returns the number of interned tag groups.
func (s *Search) TagGroupCount() int { return s.tagGroups.Len() }
