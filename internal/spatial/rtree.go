// Package spatial provides a bounding-box index over annotation ids.
//
// The index is an R-tree with Guttman's quadratic split. It knows nothing
// about annotation content beyond an id and its bounds, and its answers are
// conservative: callers re-test exact geometry on the candidates.
package spatial

import (
	"math"
	"slices"

	"github.com/starford/annota/internal/models"
)

// Default node capacities.
const (
	DefaultMaxEntries = 9
	DefaultMinEntries = 4
)

type entry struct {
	bounds models.Bounds
	id     string
	child  *node
}

type node struct {
	leaf    bool
	entries []entry
}

func (n *node) bounds() models.Bounds {
	b := n.entries[0].bounds
	for _, e := range n.entries[1:] {
		b = b.Union(e.bounds)
	}
	return b
}

// Index is an R-tree keyed by id. It is not safe for concurrent use.
type Index struct {
	root       *node
	items      map[string]models.Bounds
	maxEntries int
	minEntries int
}

// Option configures an Index.
type Option func(*Index)

// WithNodeSize sets the maximum entries per node. The minimum fill is 40%
// of it, and never below 2.
func WithNodeSize(n int) Option {
	return func(t *Index) {
		n := max(n, 4)
		t.maxEntries = n
		t.minEntries = max(2, int(math.Ceil(float64(n)*0.4)))
	}
}

// New returns an empty index.
func New(opts ...Option) *Index {
	t := &Index{
		items:      make(map[string]models.Bounds),
		maxEntries: DefaultMaxEntries,
		minEntries: DefaultMinEntries,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.root = &node{leaf: true}
	return t
}

// Len returns the number of indexed ids.
func (t *Index) Len() int { return len(t.items) }

// Has reports whether id is indexed.
func (t *Index) Has(id string) bool {
	_, ok := t.items[id]
	return ok
}

// Insert indexes id under b. An existing entry for id is replaced, so the
// same call serves for reindexing after an update.
func (t *Index) Insert(id string, b models.Bounds) {
	if _, ok := t.items[id]; ok {
		t.Remove(id)
	}
	t.items[id] = b
	t.insert(entry{bounds: b, id: id})
}

func (t *Index) insert(e entry) {
	if sib := t.insertInto(t.root, e); sib != nil {
		old := t.root
		t.root = &node{entries: []entry{
			{bounds: old.bounds(), child: old},
			{bounds: sib.bounds(), child: sib},
		}}
	}
}

// insertInto adds e below n and returns the new sibling if n had to split.
func (t *Index) insertInto(n *node, e entry) *node {
	if n.leaf {
		n.entries = append(n.entries, e)
	} else {
		i := chooseSubtree(n, e.bounds)
		child := n.entries[i].child
		sib := t.insertInto(child, e)
		n.entries[i].bounds = child.bounds()
		if sib != nil {
			n.entries = append(n.entries, entry{bounds: sib.bounds(), child: sib})
		}
	}
	if len(n.entries) > t.maxEntries {
		return t.split(n)
	}
	return nil
}

// chooseSubtree picks the child needing the least enlargement, then the
// smallest area, then the lowest margin.
func chooseSubtree(n *node, b models.Bounds) int {
	best := 0
	bestGrowth, bestArea, bestMargin := math.Inf(1), math.Inf(1), math.Inf(1)
	for i, e := range n.entries {
		u := e.bounds.Union(b)
		growth := u.Area() - e.bounds.Area()
		area := e.bounds.Area()
		margin := u.Margin()
		if growth < bestGrowth ||
			(growth == bestGrowth && area < bestArea) ||
			(growth == bestGrowth && area == bestArea && margin < bestMargin) {
			best, bestGrowth, bestArea, bestMargin = i, growth, area, margin
		}
	}
	return best
}

// split divides an overfull node in place and returns the second half.
func (t *Index) split(n *node) *node {
	entries := n.entries
	s1, s2 := pickSeeds(entries)

	g1 := []entry{entries[s1]}
	g2 := []entry{entries[s2]}
	b1, b2 := entries[s1].bounds, entries[s2].bounds

	rest := make([]entry, 0, len(entries)-2)
	for i, e := range entries {
		if i != s1 && i != s2 {
			rest = append(rest, e)
		}
	}

	for len(rest) > 0 {
		// Hand everything left to a group that cannot otherwise reach the minimum.
		if len(g1)+len(rest) == t.minEntries {
			g1 = append(g1, rest...)
			break
		}
		if len(g2)+len(rest) == t.minEntries {
			g2 = append(g2, rest...)
			break
		}

		next, nextDiff := 0, -1.0
		for i, e := range rest {
			d1 := b1.Union(e.bounds).Area() - b1.Area()
			d2 := b2.Union(e.bounds).Area() - b2.Area()
			if diff := math.Abs(d1 - d2); diff > nextDiff {
				next, nextDiff = i, diff
			}
		}
		e := rest[next]
		rest = slices.Delete(rest, next, next+1)

		d1 := b1.Union(e.bounds).Area() - b1.Area()
		d2 := b2.Union(e.bounds).Area() - b2.Area()
		toFirst := d1 < d2 ||
			(d1 == d2 && b1.Area() < b2.Area()) ||
			(d1 == d2 && b1.Area() == b2.Area() && len(g1) <= len(g2))
		if toFirst {
			g1 = append(g1, e)
			b1 = b1.Union(e.bounds)
		} else {
			g2 = append(g2, e)
			b2 = b2.Union(e.bounds)
		}
	}

	n.entries = g1
	return &node{leaf: n.leaf, entries: g2}
}

// pickSeeds returns the pair wasting the most area when grouped. Zero-area
// entries all waste nothing, so margin and then centre distance break ties.
func pickSeeds(entries []entry) (int, int) {
	s1, s2 := 0, 1
	bestWaste, bestSpread := math.Inf(-1), math.Inf(-1)
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i].bounds, entries[j].bounds
			u := a.Union(b)
			waste := u.Area() - a.Area() - b.Area()
			spread := u.Margin() + a.Center().Distance(b.Center())
			if waste > bestWaste || (waste == bestWaste && spread > bestSpread) {
				s1, s2, bestWaste, bestSpread = i, j, waste, spread
			}
		}
	}
	return s1, s2
}

// Remove drops id from the index. Unknown ids are ignored.
func (t *Index) Remove(id string) {
	b, ok := t.items[id]
	if !ok {
		return
	}
	delete(t.items, id)

	var orphans []entry
	t.removeFrom(t.root, id, b, &orphans)

	for !t.root.leaf && len(t.root.entries) == 1 {
		t.root = t.root.entries[0].child
	}
	if !t.root.leaf && len(t.root.entries) == 0 {
		t.root = &node{leaf: true}
	}
	for _, e := range orphans {
		t.insert(e)
	}
}

// removeFrom deletes id below n. Underfull children are dissolved and their
// leaf entries collected for reinsertion.
func (t *Index) removeFrom(n *node, id string, b models.Bounds, orphans *[]entry) bool {
	if n.leaf {
		for i, e := range n.entries {
			if e.id == id {
				n.entries = slices.Delete(n.entries, i, i+1)
				return true
			}
		}
		return false
	}
	for i, e := range n.entries {
		if !e.bounds.Contains(b) {
			continue
		}
		if !t.removeFrom(e.child, id, b, orphans) {
			continue
		}
		if len(e.child.entries) < t.minEntries {
			collectLeaves(e.child, orphans)
			n.entries = slices.Delete(n.entries, i, i+1)
		} else {
			n.entries[i].bounds = e.child.bounds()
		}
		return true
	}
	return false
}

func collectLeaves(n *node, out *[]entry) {
	if n.leaf {
		*out = append(*out, n.entries...)
		return
	}
	for _, e := range n.entries {
		collectLeaves(e.child, out)
	}
}

// Search returns the ids whose bounds intersect q, touching edges included.
func (t *Index) Search(q models.Bounds) []string {
	var out []string
	t.search(t.root, q, func(id string) { out = append(out, id) })
	return out
}

func (t *Index) search(n *node, q models.Bounds, fn func(string)) {
	for _, e := range n.entries {
		if !q.Intersects(e.bounds) {
			continue
		}
		if n.leaf {
			fn(e.id)
		} else {
			t.search(e.child, q, fn)
		}
	}
}

// Bounds returns the indexed bounds of id.
func (t *Index) Bounds(id string) (models.Bounds, bool) {
	b, ok := t.items[id]
	return b, ok
}

// Clear empties the index.
func (t *Index) Clear() {
	t.root = &node{leaf: true}
	t.items = make(map[string]models.Bounds)
}

// Height returns the number of levels in the tree.
func (t *Index) Height() int {
	h := 1
	for n := t.root; !n.leaf; n = n.entries[0].child {
		h++
	}
	return h
}
