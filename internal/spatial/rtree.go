package spatial

import (
	"container/heap"
	"math"

	"github.com/robolibs/consens/internal/geo"
)

// R-tree node fan-out, quadratic split.
const (
	maxEntries = 16
	minEntries = 4
)

type entry struct {
	box   geo.BoundingBox
	id    string // set on leaf entries
	child *node  // set on inner entries
}

type node struct {
	leaf    bool
	entries []entry
}

func (n *node) bbox() geo.BoundingBox {
	b := n.entries[0].box
	for _, e := range n.entries[1:] {
		b = b.Extend(e.box)
	}
	return b
}

type rtree struct {
	root *node
}

func newRTree() *rtree {
	return &rtree{root: &node{leaf: true}}
}

func (t *rtree) insert(box geo.BoundingBox, id string) {
	split := t.root.insert(entry{box: box, id: id})
	if split != nil {
		old := t.root
		t.root = &node{entries: []entry{
			{box: old.bbox(), child: old},
			{box: split.bbox(), child: split},
		}}
	}
}

func (n *node) insert(e entry) *node {
	if n.leaf {
		n.entries = append(n.entries, e)
	} else {
		i := n.chooseSubtree(e.box)
		split := n.entries[i].child.insert(e)
		n.entries[i].box = n.entries[i].child.bbox()
		if split != nil {
			n.entries = append(n.entries, entry{box: split.bbox(), child: split})
		}
	}
	if len(n.entries) > maxEntries {
		return n.split()
	}
	return nil
}

// chooseSubtree picks the child needing the least area enlargement, smaller
// area on ties.
func (n *node) chooseSubtree(box geo.BoundingBox) int {
	best := 0
	bestEnlarge := math.Inf(1)
	bestArea := math.Inf(1)
	for i, e := range n.entries {
		area := e.box.Area()
		enlarge := e.box.Extend(box).Area() - area
		if enlarge < bestEnlarge || (enlarge == bestEnlarge && area < bestArea) {
			best = i
			bestEnlarge = enlarge
			bestArea = area
		}
	}
	return best
}

// split distributes the node's entries into two groups, quadratic seed pick.
func (n *node) split() *node {
	entries := n.entries

	// Seeds: the pair wasting the most area when combined.
	seedA, seedB := 0, 1
	worst := math.Inf(-1)
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			waste := entries[i].box.Extend(entries[j].box).Area() -
				entries[i].box.Area() - entries[j].box.Area()
			if waste > worst {
				worst = waste
				seedA, seedB = i, j
			}
		}
	}

	groupA := []entry{entries[seedA]}
	groupB := []entry{entries[seedB]}
	boxA := entries[seedA].box
	boxB := entries[seedB].box

	rest := make([]entry, 0, len(entries)-2)
	for i, e := range entries {
		if i != seedA && i != seedB {
			rest = append(rest, e)
		}
	}

	for len(rest) > 0 {
		// Force the remainder into an undersized group.
		if len(groupA)+len(rest) == minEntries {
			groupA = append(groupA, rest...)
			for _, e := range rest {
				boxA = boxA.Extend(e.box)
			}
			break
		}
		if len(groupB)+len(rest) == minEntries {
			groupB = append(groupB, rest...)
			for _, e := range rest {
				boxB = boxB.Extend(e.box)
			}
			break
		}

		// Pick the entry with the strongest preference for one group.
		pick := 0
		pickDiff := math.Inf(-1)
		for i, e := range rest {
			dA := boxA.Extend(e.box).Area() - boxA.Area()
			dB := boxB.Extend(e.box).Area() - boxB.Area()
			diff := math.Abs(dA - dB)
			if diff > pickDiff {
				pickDiff = diff
				pick = i
			}
		}
		e := rest[pick]
		rest = append(rest[:pick], rest[pick+1:]...)

		dA := boxA.Extend(e.box).Area() - boxA.Area()
		dB := boxB.Extend(e.box).Area() - boxB.Area()
		if dA < dB || (dA == dB && len(groupA) <= len(groupB)) {
			groupA = append(groupA, e)
			boxA = boxA.Extend(e.box)
		} else {
			groupB = append(groupB, e)
			boxB = boxB.Extend(e.box)
		}
	}

	n.entries = groupA
	return &node{leaf: n.leaf, entries: groupB}
}

func (t *rtree) remove(box geo.BoundingBox, id string) bool {
	var orphans []entry
	if !t.root.remove(box, id, &orphans) {
		return false
	}
	if !t.root.leaf && len(t.root.entries) == 1 {
		t.root = t.root.entries[0].child
	}
	if !t.root.leaf && len(t.root.entries) == 0 {
		t.root = &node{leaf: true}
	}
	for _, e := range orphans {
		t.insert(e.box, e.id)
	}
	return true
}

func (n *node) remove(box geo.BoundingBox, id string, orphans *[]entry) bool {
	if n.leaf {
		for i, e := range n.entries {
			if e.id == id {
				n.entries = append(n.entries[:i], n.entries[i+1:]...)
				return true
			}
		}
		return false
	}
	for i := range n.entries {
		if !n.entries[i].box.Intersects(box) {
			continue
		}
		child := n.entries[i].child
		if !child.remove(box, id, orphans) {
			continue
		}
		if len(child.entries) < minEntries {
			child.collectLeaves(orphans)
			n.entries = append(n.entries[:i], n.entries[i+1:]...)
		} else {
			n.entries[i].box = child.bbox()
		}
		return true
	}
	return false
}

func (n *node) collectLeaves(out *[]entry) {
	if n.leaf {
		*out = append(*out, n.entries...)
		return
	}
	for _, e := range n.entries {
		e.child.collectLeaves(out)
	}
}

// searchBox appends the ids of all leaf entries whose box intersects query.
func (n *node) searchBox(query geo.BoundingBox, out *[]string) {
	for _, e := range n.entries {
		if !e.box.Intersects(query) {
			continue
		}
		if n.leaf {
			*out = append(*out, e.id)
		} else {
			e.child.searchBox(query, out)
		}
	}
}

// knnItem is either an unexpanded subtree (node != nil) or a concrete
// candidate whose dist is the true point distance supplied by the caller.
type knnItem struct {
	dist float64
	node *node
	id   string
}

type knnQueue []knnItem

func (q knnQueue) Len() int           { return len(q) }
func (q knnQueue) Less(i, j int) bool { return q[i].dist < q[j].dist }
func (q knnQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *knnQueue) Push(x any)        { *q = append(*q, x.(knnItem)) }
func (q *knnQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// nearest performs a best-first traversal. Subtrees are ordered by minimum
// box distance, candidates by the true distance from distOf; box distance
// never exceeds the true distance (positions lie inside their boxes), so the
// order popped is globally correct.
func (t *rtree) nearest(p geo.Point, k int, distOf func(id string) float64) []string {
	if k <= 0 {
		return nil
	}
	q := &knnQueue{{dist: 0, node: t.root}}
	result := make([]string, 0, k)
	for q.Len() > 0 && len(result) < k {
		it := heap.Pop(q).(knnItem)
		if it.node == nil {
			result = append(result, it.id)
			continue
		}
		for _, e := range it.node.entries {
			if it.node.leaf {
				heap.Push(q, knnItem{dist: distOf(e.id), id: e.id})
			} else {
				heap.Push(q, knnItem{dist: e.box.DistanceToPoint(p), node: e.child})
			}
		}
	}
	return result
}
