package angular

import (
	"math"
	"testing"
)

// ring returns n unit vectors evenly spread on the xy great circle.
func ring(n int) [][3]float64 {
	dirs := make([][3]float64, n)
	for i := range dirs {
		a := math.Pi * float64(i) / float64(n) // half circle, antipodes distinct
		dirs[i] = [3]float64{math.Cos(a), math.Sin(a), 0}
	}
	return dirs
}

func TestNeighborsExcludesSelf(t *testing.T) {
	dirs := ring(8)
	nb, err := Neighbors(dirs, 3, true)
	if err != nil {
		t.Fatalf("Neighbors failed: %v", err)
	}
	if len(nb) != len(dirs) {
		t.Fatalf("got %d neighbor sets, want %d", len(nb), len(dirs))
	}
	for i, set := range nb {
		if len(set) != 3 {
			t.Errorf("direction %d: got %d neighbors, want 3", i, len(set))
		}
		for _, j := range set {
			if j == i {
				t.Errorf("direction %d lists itself as a neighbor", i)
			}
			if j < 0 || j >= len(dirs) {
				t.Errorf("direction %d: neighbor index %d out of range", i, j)
			}
		}
	}
}

func TestNeighborsClosestFirst(t *testing.T) {
	dirs := ring(8)
	nb, err := Neighbors(dirs, 2, true)
	if err != nil {
		t.Fatalf("Neighbors failed: %v", err)
	}
	// Direction 0 starts the half circle, so its neighbors in order are the
	// next two along the arc.
	got := nb[0]
	if got[0] != 1 || got[1] != 2 {
		t.Errorf("neighbors of direction 0 = %v, want [1 2]", got)
	}
}

func TestNeighborsAntipodalCollapse(t *testing.T) {
	// Direction 1 is nearly the antipode of direction 0. With symmetry the
	// flipped copy of 1 sits right next to 0, so 1 must collapse into 0's
	// neighbor set; without symmetry it is the farthest point available.
	dirs := [][3]float64{
		{1, 0, 0},
		{-0.9950371902099892, 0.09950371902099893, 0},
		{0, 1, 0},
	}
	sym, err := Neighbors(dirs, 1, false)
	if err != nil {
		t.Fatalf("Neighbors failed: %v", err)
	}
	if sym[0][0] != 1 {
		t.Errorf("with symmetry, nearest to direction 0 = %d, want 1", sym[0][0])
	}
	asym, err := Neighbors(dirs, 1, true)
	if err != nil {
		t.Fatalf("Neighbors failed: %v", err)
	}
	if asym[0][0] != 2 {
		t.Errorf("without symmetry, nearest to direction 0 = %d, want 2", asym[0][0])
	}
}

func TestNeighborsRejectsOversizedK(t *testing.T) {
	dirs := ring(4)
	if _, err := Neighbors(dirs, 4, true); err == nil {
		t.Error("k equal to the direction count was accepted")
	}
	if _, err := Neighbors(dirs, 7, false); err != nil {
		t.Errorf("k within the doubled set was rejected: %v", err)
	}
}

func TestGreedyCoverKeepsFirstMax(t *testing.T) {
	items := []WorkItem{
		{0, 1, 2},
		{3, 4, 5}, // same gain as the next item; must win by position
		{5, 4, 3},
		{2, 3},
	}
	got := Cover(items, true)
	if len(got) != 2 {
		t.Fatalf("cover has %d items, want 2", len(got))
	}
	if got[0][0] != 0 || got[1][0] != 3 {
		t.Errorf("cover = %v, want the first and second items", got)
	}

	covered := make(map[int]bool)
	for _, it := range got {
		for _, d := range it {
			covered[d] = true
		}
	}
	for d := 0; d <= 5; d++ {
		if !covered[d] {
			t.Errorf("direction %d left uncovered", d)
		}
	}
}

func TestCoverDisabledReturnsInput(t *testing.T) {
	items := []WorkItem{{0, 1}, {1, 0}, {0, 1}}
	got := Cover(items, false)
	if len(got) != len(items) {
		t.Fatalf("disabled cover returned %d items, want %d", len(got), len(items))
	}
	for i := range got {
		if &got[i][0] != &items[i][0] {
			t.Errorf("item %d was copied rather than passed through", i)
		}
	}
}
