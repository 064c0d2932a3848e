package renderlist

import (
	"sort"

	"github.com/gekko3d/forward/rt/core"
)

// Item is one draw: a node's geometry (or one group of it) with one material.
// Items are owned by the List arena and overwritten on reuse.
type Item struct {
	ID          int
	Node        *core.Node
	Geometry    *core.Geometry
	Material    *core.Material
	Group       *core.Group
	RenderOrder int
	GroupOrder  int
	// Z is the view-space depth, positive in front of the camera.
	Z float32
}

type Bucket uint8

const (
	Opaque Bucket = iota
	Transmissive
	Transparent
)

func (b Bucket) String() string {
	switch b {
	case Opaque:
		return "opaque"
	case Transmissive:
		return "transmissive"
	case Transparent:
		return "transparent"
	}
	return "unknown"
}

// Classify applies the triage rule: transmission first, then transparency.
func Classify(m *core.Material) Bucket {
	if m.Transmission > 0 {
		return Transmissive
	}
	if m.Transparent {
		return Transparent
	}
	return Opaque
}

// Less orders two items within a bucket.
type Less func(a, b *Item) bool

// OpaqueLess sorts front to back after group, render order and material.
func OpaqueLess(a, b *Item) bool {
	if a.GroupOrder != b.GroupOrder {
		return a.GroupOrder < b.GroupOrder
	}
	if a.RenderOrder != b.RenderOrder {
		return a.RenderOrder < b.RenderOrder
	}
	if a.Material.ID != b.Material.ID {
		return a.Material.ID < b.Material.ID
	}
	if a.Z != b.Z {
		return a.Z < b.Z
	}
	return a.ID < b.ID
}

// TransparentLess sorts back to front after group and render order.
func TransparentLess(a, b *Item) bool {
	if a.GroupOrder != b.GroupOrder {
		return a.GroupOrder < b.GroupOrder
	}
	if a.RenderOrder != b.RenderOrder {
		return a.RenderOrder < b.RenderOrder
	}
	if a.Z != b.Z {
		return a.Z > b.Z
	}
	return a.ID < b.ID
}

// List is an arena of items plus three buckets of indices into it. The
// arena never shrinks.
type List struct {
	Opaque       []int
	Transmissive []int
	Transparent  []int

	items  []Item
	cursor int
}

func New() *List {
	return &List{}
}

// Init starts a new frame. The arena keeps its items for reuse.
func (l *List) Init() {
	l.cursor = 0
	l.Opaque = l.Opaque[:0]
	l.Transmissive = l.Transmissive[:0]
	l.Transparent = l.Transparent[:0]
}

func (l *List) next(n *core.Node, g *core.Geometry, m *core.Material, groupOrder int, z float32, group *core.Group) int {
	idx := l.cursor
	if idx == len(l.items) {
		l.items = append(l.items, Item{})
	}
	l.items[idx] = Item{
		ID:          idx,
		Node:        n,
		Geometry:    g,
		Material:    m,
		Group:       group,
		RenderOrder: n.RenderOrder,
		GroupOrder:  groupOrder,
		Z:           z,
	}
	l.cursor++
	return idx
}

// Push appends an item to the bucket its material classifies into.
func (l *List) Push(n *core.Node, g *core.Geometry, m *core.Material, groupOrder int, z float32, group *core.Group) *Item {
	idx := l.next(n, g, m, groupOrder, z, group)
	b := l.bucket(Classify(m))
	*b = append(*b, idx)
	return &l.items[idx]
}

func (l *List) bucket(b Bucket) *[]int {
	switch b {
	case Transmissive:
		return &l.Transmissive
	case Transparent:
		return &l.Transparent
	}
	return &l.Opaque
}

// Finish clears references held by the unused tail so the arena does not
// keep dropped nodes alive.
func (l *List) Finish() {
	for i := l.cursor; i < len(l.items); i++ {
		if l.items[i].Node == nil {
			break
		}
		l.items[i] = Item{ID: i}
	}
}

// Sort orders the buckets. Nil comparators fall back to the defaults.
// Transmissive items use the transparent comparator.
func (l *List) Sort(opaque, transparent Less) {
	if opaque == nil {
		opaque = OpaqueLess
	}
	if transparent == nil {
		transparent = TransparentLess
	}
	l.sortBucket(l.Opaque, opaque)
	l.sortBucket(l.Transmissive, transparent)
	l.sortBucket(l.Transparent, transparent)
}

func (l *List) sortBucket(idx []int, less Less) {
	if len(idx) < 2 {
		return
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return less(&l.items[idx[i]], &l.items[idx[j]])
	})
}

// Item returns the arena item at index i.
func (l *List) Item(i int) *Item { return &l.items[i] }

// Items returns the items of a bucket in draw order.
func (l *List) Items(b Bucket) []*Item {
	src := *l.bucket(b)
	out := make([]*Item, len(src))
	for i, idx := range src {
		out[i] = &l.items[idx]
	}
	return out
}

// Each calls fn for every item of a bucket in draw order.
func (l *List) Each(b Bucket, fn func(*Item)) {
	for _, idx := range *l.bucket(b) {
		fn(&l.items[idx])
	}
}

// Len is the number of items pushed this frame.
func (l *List) Len() int { return l.cursor }

// Capacity is the number of arena slots allocated so far.
func (l *List) Capacity() int { return len(l.items) }
