package task

import (
	"testing"

	"github.com/robolibs/consens/internal/geo"
)

func TestPointTask(t *testing.T) {
	tk := NewPoint("t1", geo.Point{X: 10, Y: 20}, 5)
	if tk.HasGeometry {
		t.Fatalf("point task has geometry")
	}
	if tk.Length() != 0 {
		t.Fatalf("point task length = %v, want 0", tk.Length())
	}
	want := geo.BoundingBox{MinX: 5, MinY: 15, MaxX: 15, MaxY: 25}
	if tk.BBox != want {
		t.Fatalf("bbox = %+v, want %+v (5 m padding)", tk.BBox, want)
	}
	if tk.EndPoint() != tk.Position {
		t.Fatalf("end point should equal position")
	}
}

func TestGeometricTask(t *testing.T) {
	tk := NewGeometric("row", geo.Point{X: 0, Y: 10}, geo.Point{X: 30, Y: 10}, 60)
	if !tk.HasGeometry {
		t.Fatalf("geometric task without geometry")
	}
	if tk.Position != (geo.Point{X: 15, Y: 10}) {
		t.Fatalf("position = %+v, want midpoint", tk.Position)
	}
	if tk.Length() != 30 {
		t.Fatalf("length = %v, want 30", tk.Length())
	}
	want := geo.BoundingBox{MinX: -1, MinY: 9, MaxX: 31, MaxY: 11}
	if tk.BBox != want {
		t.Fatalf("bbox = %+v, want %+v (1 m padding)", tk.BBox, want)
	}
	if tk.EndPoint() != tk.Tail {
		t.Fatalf("end point should equal tail")
	}
}
