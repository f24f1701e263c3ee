package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/l3aro/go-sta/pkg/corner"
	"github.com/l3aro/go-sta/pkg/delay"
	"github.com/l3aro/go-sta/pkg/graph"
	"github.com/l3aro/go-sta/pkg/sdc"
)

// TagIndexBits is the width of tag indices.
const TagIndexBits = 24

// TagIndexNull is the index of no tag. Valid indices are below it.
const TagIndexNull TagIndex = 1<<TagIndexBits - 1

// TagIndex identifies an interned tag.
type TagIndex uint32

// NewTagIndex validates i as a tag index.
func NewTagIndex(i int) (TagIndex, error) {
	if i < 0 || i >= int(TagIndexNull) {
		return TagIndexNull, fmt.Errorf("tag index %d: %w", i, corner.ErrIndexRange)
	}
	return TagIndex(i), nil
}

// Tag is the equivalence class of the paths at a vertex: paths with equal
// tags share one arrival slot. Tags are interned and identified by index.
type Tag struct {
	index          TagIndex
	rf             corner.RiseFall
	pathAPIndex    corner.PathAPIndex
	clkInfo        *ClkInfo
	isClock        bool
	inputDelay     *sdc.InputDelay
	isSegmentStart bool
	states         *sdc.ExceptionStateSet

	isLoop   bool
	isFilter bool

	hash uint64
	// Match hashes without and with CRPR.
	matchHash [2]uint64
}

func newTag(rf corner.RiseFall, ap corner.PathAPIndex, clkInfo *ClkInfo, isClock bool,
	inputDelay *sdc.InputDelay, isSegmentStart bool, states *sdc.ExceptionStateSet) *Tag {
	t := &Tag{
		index:          TagIndexNull,
		rf:             rf,
		pathAPIndex:    ap,
		clkInfo:        clkInfo,
		isClock:        isClock,
		inputDelay:     inputDelay,
		isSegmentStart: isSegmentStart,
		states:         states,
		isLoop:         states.HasLoop(),
		isFilter:       states.HasFilter(),
	}

	var b keyBuf
	b = b.u32(uint32(rf)).
		u32(uint32(ap)).
		u32(clkInfo.id).
		flag(isClock).
		i32(int32(inputDelayIndex(inputDelay))).
		flag(isSegmentStart).
		u64(states.Hash())
	t.hash = b.sum()

	m := t.matchKey(nil)
	t.matchHash[0] = m.sum()
	t.matchHash[1] = m.i32(int32(clkInfo.crprClkPath.Vertex)).i32(int32(clkInfo.genClkSrc)).sum()
	return t
}

func (t *Tag) matchKey(b keyBuf) keyBuf {
	return b.i32(int32(sdc.ClockEdgeIndex(t.clkInfo.clkEdge))).
		u32(uint32(t.rf)).
		u32(uint32(t.pathAPIndex)).
		flag(t.isClock).
		flag(t.isSegmentStart).
		flag(t.clkInfo.isGenClkSrcPath).
		u64(t.states.Hash())
}

func inputDelayIndex(d *sdc.InputDelay) int {
	if d == nil {
		return -1
	}
	return d.Index()
}

// Index returns the interned index of the tag.
func (t *Tag) Index() TagIndex { return t.index }

// RF returns the transition at the tagged vertex.
func (t *Tag) RF() corner.RiseFall { return t.rf }

// PathAPIndex returns the path analysis point the tag is timed at.
func (t *Tag) PathAPIndex() corner.PathAPIndex { return t.pathAPIndex }

// ClkInfo returns the shared clock context of the tag.
func (t *Tag) ClkInfo() *ClkInfo { return t.clkInfo }

// IsClock reports if the tag is on a clock network path.
func (t *Tag) IsClock() bool { return t.isClock }

// InputDelay returns the input delay that started the path, nil if none.
func (t *Tag) InputDelay() *sdc.InputDelay { return t.inputDelay }

// IsSegmentStart reports if the path starts at a path segment boundary.
func (t *Tag) IsSegmentStart() bool { return t.isSegmentStart }

// States returns the active exception states, nil if none.
func (t *Tag) States() *sdc.ExceptionStateSet { return t.states }

// IsLoop reports if a loop exception is active on the path.
func (t *Tag) IsLoop() bool { return t.isLoop }

// IsFilter reports if a report filter exception is active on the path.
func (t *Tag) IsFilter() bool { return t.isFilter }

// IsGenClkSrcPath reports if the tag is on a generated clock source path.
func (t *Tag) IsGenClkSrcPath() bool { return t.clkInfo.isGenClkSrcPath }

// ClkEdge returns the launching clock edge, nil for unclocked paths.
func (t *Tag) ClkEdge() *sdc.ClockEdge { return t.clkInfo.clkEdge }

// Hash is the strict hash used for interning.
func (t *Tag) Hash() uint64 { return t.hash }

// MatchHash is the hash of the fields compared by MatchEqual.
func (t *Tag) MatchHash(crpr bool) uint64 {
	if crpr {
		return t.matchHash[1]
	}
	return t.matchHash[0]
}

// Equal compares by content.
func (t *Tag) Equal(o *Tag) bool {
	if t == o {
		return true
	}
	return t.hash == o.hash && t.Cmp(o) == 0
}

// Cmp is a total order over tag content: clock edge, analysis point,
// transition, clock flag, input delay, segment start, exception states and
// then the rest of the clock info.
func (t *Tag) Cmp(o *Tag) int {
	if t == o {
		return 0
	}
	if r := cmpInt(sdc.ClockEdgeIndex(t.clkInfo.clkEdge), sdc.ClockEdgeIndex(o.clkInfo.clkEdge)); r != 0 {
		return r
	}
	if r := cmpInt(int(t.pathAPIndex), int(o.pathAPIndex)); r != 0 {
		return r
	}
	if r := cmpInt(int(t.rf), int(o.rf)); r != 0 {
		return r
	}
	if r := cmpBool(t.isClock, o.isClock); r != 0 {
		return r
	}
	if r := cmpInt(inputDelayIndex(t.inputDelay), inputDelayIndex(o.inputDelay)); r != 0 {
		return r
	}
	if r := cmpBool(t.isSegmentStart, o.isSegmentStart); r != 0 {
		return r
	}
	if r := t.states.Cmp(o.states); r != 0 {
		return r
	}
	return t.clkInfo.Cmp(o.clkInfo)
}

// MatchEqual reports if paths with tags t and o continue as the same path:
// they agree on clock edge, transition, analysis point, clock flags, segment
// start and exception states. With CRPR active the CRPR clock pin and the
// generated clock source pin must agree too.
func (t *Tag) MatchEqual(o *Tag, crpr bool) bool {
	if t == o {
		return true
	}
	return t.MatchHash(crpr) == o.MatchHash(crpr) && t.MatchCmp(o, crpr) == 0
}

// MatchCmp orders tags by the fields compared by MatchEqual.
func (t *Tag) MatchCmp(o *Tag, crpr bool) int {
	if t == o {
		return 0
	}
	if r := cmpInt(sdc.ClockEdgeIndex(t.clkInfo.clkEdge), sdc.ClockEdgeIndex(o.clkInfo.clkEdge)); r != 0 {
		return r
	}
	if r := cmpInt(int(t.pathAPIndex), int(o.pathAPIndex)); r != 0 {
		return r
	}
	if r := cmpInt(int(t.rf), int(o.rf)); r != 0 {
		return r
	}
	if r := cmpBool(t.isClock, o.isClock); r != 0 {
		return r
	}
	if r := cmpBool(t.isSegmentStart, o.isSegmentStart); r != 0 {
		return r
	}
	if r := cmpBool(t.clkInfo.isGenClkSrcPath, o.clkInfo.isGenClkSrcPath); r != 0 {
		return r
	}
	if r := t.states.Cmp(o.states); r != 0 {
		return r
	}
	if !crpr {
		return 0
	}
	if r := cmpInt(int(t.clkInfo.crprClkPath.Vertex), int(o.clkInfo.crprClkPath.Vertex)); r != 0 {
		return r
	}
	return cmpInt(int(t.clkInfo.genClkSrc), int(o.clkInfo.genClkSrc))
}

// String renders the tag as space separated key=value fields.
// Search.ParseTagString reverses it.
func (t *Tag) String() string {
	ci := t.clkInfo
	var sb strings.Builder
	sb.WriteString("rf=" + t.rf.ShortName())
	sb.WriteString(" ap=" + strconv.Itoa(int(t.pathAPIndex)))
	if t.isClock {
		sb.WriteString(" kind=clock")
	} else {
		sb.WriteString(" kind=data")
	}
	sb.WriteString(" clk=" + edgeName(ci.clkEdge))
	sb.WriteString(" in=" + optInt(inputDelayIndex(t.inputDelay)))
	sb.WriteString(" seg=" + boolStr(t.isSegmentStart))
	sb.WriteString(" st=" + t.states.String())
	sb.WriteString(" src=" + optInt(int(ci.clkSrc)))
	sb.WriteString(" prop=" + boolStr(ci.isPropagated))
	sb.WriteString(" gsrc=" + optInt(int(ci.genClkSrc)))
	sb.WriteString(" gsp=" + boolStr(ci.isGenClkSrcPath))
	if ci.isPulseClk {
		sb.WriteString(" pulse=" + ci.pulseClkSense.ShortName())
	} else {
		sb.WriteString(" pulse=-")
	}
	sb.WriteString(" ins=" + ci.insertion.String())
	sb.WriteString(" lat=" + formatFloat(ci.latency))
	if u := ci.uncertainties; u != nil {
		sb.WriteString(" unc=" + formatFloat(u.Setup) + "/" + formatFloat(u.Hold))
	} else {
		sb.WriteString(" unc=-")
	}
	sb.WriteString(" crpr=" + ci.crprClkPath.String())
	return sb.String()
}

func edgeName(e *sdc.ClockEdge) string {
	if e == nil {
		return "-"
	}
	return e.String()
}

func optInt(i int) string {
	if i < 0 {
		return "-"
	}
	return strconv.Itoa(i)
}

func boolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatFloat(f float32) string { return strconv.FormatFloat(float64(f), 'g', -1, 32) }

// FindTag returns the canonical tag with the given content.
func (s *Search) FindTag(rf corner.RiseFall, ap corner.PathAPIndex, clkInfo *ClkInfo, isClock bool,
	inputDelay *sdc.InputDelay, isSegmentStart bool, states *sdc.ExceptionStateSet) (*Tag, error) {
	t := newTag(rf, ap, clkInfo, isClock, inputDelay, isSegmentStart, states)
	got, _, inserted, err := s.tags.FindOrInsert(t, func(id uint32) { t.index = TagIndex(id) })
	if err != nil {
		return nil, critical("FindTag", "%v", err)
	}
	if inserted {
		s.metrics.tagCreated()
	}
	return got, nil
}

// TagByIndex returns the tag with index idx.
func (s *Search) TagByIndex(idx TagIndex) (*Tag, bool) {
	if idx == TagIndexNull {
		return nil, false
	}
	return s.tags.Get(uint32(idx))
}

// TagCount returns the number of interned tags.
func (s *Search) TagCount() int { return s.tags.Len() }

// Tags returns the interned tags in index order.
func (s *Search) Tags() []*Tag {
	var tags []*Tag
	s.tags.Range(func(_ uint32, t *Tag) bool {
		tags = append(tags, t)
		return true
	})
	return tags
}

// ParseTagString interns the tag described by the String form of a tag.
func (s *Search) ParseTagString(str string) (*Tag, error) {
	fields := make(map[string]string)
	for _, f := range strings.Fields(str) {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("field %q: %w", f, ErrInvalidTag)
		}
		fields[k] = v
	}
	p := tagParser{s: s, fields: fields}

	rf := p.rf("rf")
	apIdx := p.int("ap")
	var kind string
	if p.err == nil {
		kind = p.get("kind")
	}
	clkEdge := p.edge("clk")
	inIdx := p.optInt("in")
	seg := p.bool("seg")
	states := p.states("st")
	args := ClkInfoArgs{
		ClkEdge:         clkEdge,
		ClkSrc:          graph.VertexID(p.optInt("src")),
		IsPropagated:    p.bool("prop"),
		GenClkSrc:       graph.VertexID(p.optInt("gsrc")),
		IsGenClkSrcPath: p.bool("gsp"),
		Insertion:       p.delay("ins"),
		Latency:         p.float("lat"),
		Uncertainties:   p.uncertainties("unc"),
		CrprClkPath:     p.rep("crpr"),
	}
	if pulse := p.get("pulse"); p.err == nil && pulse != "-" {
		args.IsPulseClk = true
		args.PulseClkSense = p.shortRF(pulse)
	}
	if p.err != nil {
		return nil, p.err
	}
	if kind != "clock" && kind != "data" {
		return nil, fmt.Errorf("kind %q: %w", kind, ErrInvalidTag)
	}
	ap, err := corner.NewPathAPIndex(apIdx)
	if err != nil {
		return nil, err
	}
	args.PathAPIndex = ap

	var inputDelay *sdc.InputDelay
	if inIdx >= 0 {
		d, ok := s.sdc.FindInputDelay(inIdx)
		if !ok {
			return nil, fmt.Errorf("input delay %d: %w", inIdx, ErrInvalidTag)
		}
		inputDelay = d
	}

	ci, err := s.FindClkInfo(args)
	if err != nil {
		return nil, err
	}
	return s.FindTag(rf, ap, ci, kind == "clock", inputDelay, seg, states)
}

type tagParser struct {
	s      *Search
	fields map[string]string
	err    error
}

func (p *tagParser) get(key string) string {
	if p.err != nil {
		return ""
	}
	v, ok := p.fields[key]
	if !ok {
		p.err = fmt.Errorf("missing %s: %w", key, ErrInvalidTag)
	}
	return v
}

func (p *tagParser) fail(key, v string) {
	if p.err == nil {
		p.err = fmt.Errorf("%s=%q: %w", key, v, ErrInvalidTag)
	}
}

func (p *tagParser) shortRF(v string) corner.RiseFall {
	switch v {
	case corner.Rise.ShortName():
		return corner.Rise
	case corner.Fall.ShortName():
		return corner.Fall
	}
	p.fail("rf", v)
	return corner.Rise
}

func (p *tagParser) rf(key string) corner.RiseFall {
	v := p.get(key)
	if p.err != nil {
		return corner.Rise
	}
	return p.shortRF(v)
}

func (p *tagParser) int(key string) int {
	v := p.get(key)
	if p.err != nil {
		return 0
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v)
	}
	return i
}

func (p *tagParser) optInt(key string) int {
	if p.get(key) == "-" {
		return -1
	}
	return p.int(key)
}

func (p *tagParser) bool(key string) bool {
	v := p.get(key)
	if p.err != nil {
		return false
	}
	switch v {
	case "1":
		return true
	case "0":
		return false
	}
	p.fail(key, v)
	return false
}

func (p *tagParser) float(key string) float32 {
	v := p.get(key)
	if p.err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		p.fail(key, v)
	}
	return float32(f)
}

func (p *tagParser) delay(key string) delay.Delay {
	v := p.get(key)
	if p.err != nil {
		return delay.Zero
	}
	d, err := delay.Parse(v)
	if err != nil {
		p.fail(key, v)
	}
	return d
}

func (p *tagParser) edge(key string) *sdc.ClockEdge {
	v := p.get(key)
	if p.err != nil || v == "-" {
		return nil
	}
	if len(v) < 2 {
		p.fail(key, v)
		return nil
	}
	rf := p.shortRF(v[len(v)-1:])
	clk, ok := p.s.sdc.FindClock(v[:len(v)-1])
	if !ok {
		p.fail(key, v)
		return nil
	}
	return clk.Edge(rf)
}

func (p *tagParser) uncertainties(key string) *sdc.ClockUncertainties {
	v := p.get(key)
	if p.err != nil || v == "-" {
		return nil
	}
	setup, hold, ok := strings.Cut(v, "/")
	if !ok {
		p.fail(key, v)
		return nil
	}
	s, err1 := strconv.ParseFloat(setup, 32)
	h, err2 := strconv.ParseFloat(hold, 32)
	if err1 != nil || err2 != nil {
		p.fail(key, v)
		return nil
	}
	return &sdc.ClockUncertainties{Setup: float32(s), Hold: float32(h)}
}

func (p *tagParser) rep(key string) PathVertexRep {
	v := p.get(key)
	if p.err != nil || v == "-" {
		return NullPathVertexRep
	}
	vs, ts, ok := strings.Cut(v, ":")
	vi, err1 := strconv.Atoi(vs)
	ti, err2 := strconv.Atoi(ts)
	if !ok || err1 != nil || err2 != nil {
		p.fail(key, v)
		return NullPathVertexRep
	}
	return PathVertexRep{Vertex: graph.VertexID(vi), Tag: TagIndex(ti)}
}

func (p *tagParser) states(key string) *sdc.ExceptionStateSet {
	v := p.get(key)
	if p.err != nil || v == "-" {
		return nil
	}
	var states []sdc.ExceptionState
	for _, part := range strings.Split(v, ",") {
		ids, nexts, ok := strings.Cut(part, ".")
		id, err1 := strconv.Atoi(ids)
		next, err2 := strconv.Atoi(nexts)
		if !ok || err1 != nil || err2 != nil {
			p.fail(key, v)
			return nil
		}
		exc, found := p.s.sdc.FindException(id)
		if !found || next > len(exc.Thrus()) {
			p.fail(key, v)
			return nil
		}
		states = append(states, sdc.ExceptionState{Exc: exc, NextThru: next})
	}
	return sdc.NewExceptionStateSet(states)
}
