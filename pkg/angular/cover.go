package angular

// WorkItem is one direction neighborhood: the seed direction first, then its
// angular neighbors.
type WorkItem []int

// GreedyCover selects a subset of the items whose union still covers every
// direction any item mentions. Items are picked by how many uncovered
// directions they add; ties keep the earliest item, so the result is
// deterministic. Selection order is preserved in the output.
func GreedyCover(items []WorkItem) []WorkItem {
	universe := make(map[int]bool)
	for _, it := range items {
		for _, d := range it {
			universe[d] = true
		}
	}

	covered := make(map[int]bool)
	var out []WorkItem
	for len(covered) < len(universe) {
		best := -1
		bestGain := 0
		for i, it := range items {
			gain := 0
			for _, d := range it {
				if !covered[d] {
					gain++
				}
			}
			if gain > bestGain {
				bestGain = gain
				best = i
			}
		}
		if best < 0 {
			break
		}
		for _, d := range items[best] {
			covered[d] = true
		}
		out = append(out, items[best])
	}
	return out
}

// Cover applies the greedy reduction when enabled and returns the items
// unchanged otherwise.
func Cover(items []WorkItem, greedy bool) []WorkItem {
	if !greedy {
		return items
	}
	return GreedyCover(items)
}
