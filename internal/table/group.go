package table

import (
	"fmt"
	"sort"
)

// GroupCount is the number of rows sharing one value of a column.
type GroupCount struct {
	Value string
	Count int
}

// GroupCounts counts rows per distinct value of the first column named name.
// Missing cells are not counted. Results are ordered by descending count,
// ties keeping first-seen order.
func (t *Table) GroupCounts(name string) ([]GroupCount, error) {
	col, _, ok := t.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("table: no column %q", name)
	}
	index := make(map[string]int)
	var counts []GroupCount
	for _, cell := range col.Cells {
		if cell.IsMissing() {
			continue
		}
		key := cell.String()
		pos, seen := index[key]
		if !seen {
			pos = len(counts)
			index[key] = pos
			counts = append(counts, GroupCount{Value: key})
		}
		counts[pos].Count++
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	return counts, nil
}
