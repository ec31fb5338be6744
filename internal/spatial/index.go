// Package spatial maintains the authoritative task store with R-tree backed
// lookup. Every other component references tasks by ID and resolves them here.
package spatial

import (
	"sort"

	"github.com/robolibs/consens/internal/geo"
	"github.com/robolibs/consens/internal/task"
)

type Index struct {
	tree  *rtree
	tasks map[string]task.Task
}

func NewIndex() *Index {
	return &Index{
		tree:  newRTree(),
		tasks: make(map[string]task.Task),
	}
}

// Insert adds t, replacing any prior entry with the same ID.
func (x *Index) Insert(t task.Task) {
	if prev, ok := x.tasks[t.ID]; ok {
		x.tree.remove(prev.BBox, prev.ID)
	}
	x.tasks[t.ID] = t
	x.tree.insert(t.BBox, t.ID)
}

// Remove is a no-op when id is absent.
func (x *Index) Remove(id string) {
	t, ok := x.tasks[id]
	if !ok {
		return
	}
	x.tree.remove(t.BBox, t.ID)
	delete(x.tasks, id)
}

func (x *Index) Clear() {
	x.tree = newRTree()
	x.tasks = make(map[string]task.Task)
}

func (x *Index) Get(id string) (task.Task, bool) {
	t, ok := x.tasks[id]
	return t, ok
}

func (x *Index) Has(id string) bool {
	_, ok := x.tasks[id]
	return ok
}

func (x *Index) Size() int   { return len(x.tasks) }
func (x *Index) Empty() bool { return len(x.tasks) == 0 }

// QueryNearest returns up to k task IDs ordered by Euclidean distance from p
// to the task position.
func (x *Index) QueryNearest(p geo.Point, k int) []string {
	return x.tree.nearest(p, k, func(id string) float64 {
		return p.DistanceTo(x.tasks[id].Position)
	})
}

// QueryRadius returns every task whose position lies within radius of p. The
// tree prunes by bounding box; candidates are re-filtered by true distance.
func (x *Index) QueryRadius(p geo.Point, radius float64) []string {
	square := geo.BoundingBox{
		MinX: p.X - radius,
		MinY: p.Y - radius,
		MaxX: p.X + radius,
		MaxY: p.Y + radius,
	}
	var candidates []string
	x.tree.root.searchBox(square, &candidates)

	result := candidates[:0]
	for _, id := range candidates {
		if p.DistanceTo(x.tasks[id].Position) <= radius {
			result = append(result, id)
		}
	}
	return result
}

// QueryBox returns every task whose cached bounding box intersects bbox.
func (x *Index) QueryBox(bbox geo.BoundingBox) []string {
	var result []string
	x.tree.root.searchBox(bbox, &result)
	return result
}

func (x *Index) AllIDs() []string {
	ids := make([]string, 0, len(x.tasks))
	for id := range x.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (x *Index) AllTasks() []task.Task {
	out := make([]task.Task, 0, len(x.tasks))
	for _, id := range x.AllIDs() {
		out = append(out, x.tasks[id])
	}
	return out
}
