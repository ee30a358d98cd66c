package segment

import "sort"

// Descriptor identifies one published segment (the (level, first_row,
// next_row) triple that names its files, §3/§6).
type Descriptor struct {
	Level    uint8
	FirstRow uint64
	NextRow  uint64
}

// CurrentSet computes the "current" set of segments for a table (§6):
// group all meta files by level, take the one with the largest next_row at
// each level, then drop any level whose next_row is covered by (i.e. <=) a
// higher level's next_row.
func CurrentSet(all []Descriptor) []Descriptor {
	byLevel := make(map[uint8]Descriptor)
	for _, d := range all {
		cur, ok := byLevel[d.Level]
		if !ok || d.NextRow > cur.NextRow {
			byLevel[d.Level] = d
		}
	}

	var levels []uint8
	for l := range byLevel {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] > levels[j] })

	var out []Descriptor
	var maxCoveredNextRow uint64
	first := true
	for _, l := range levels {
		d := byLevel[l]
		if !first && d.NextRow <= maxCoveredNextRow {
			continue
		}
		out = append(out, d)
		if first || d.NextRow > maxCoveredNextRow {
			maxCoveredNextRow = d.NextRow
		}
		first = false
	}
	return out
}
