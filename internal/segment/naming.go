// Package segment implements the on-disk columnar segment format (§4.B, §6):
// immutable (meta, data) file pairs named by (level, first_row, next_row), table name
// normalization, current-set selection, and the page/meta encode-decode
// used by the segment writer (flush, compaction output) and reader (scan).
package segment

import "fmt"

// MetaPath returns the meta file path for a segment, per §6:
//
//	tables/<normalized_table>/meta/log-l<LL>-fr<FF>-nr<NN>.arrow
func MetaPath(table string, level uint8, firstRow, nextRow uint64) string {
	return path(table, "meta", level, firstRow, nextRow)
}

// DataPath returns the data file path for a segment.
func DataPath(table string, level uint8, firstRow, nextRow uint64) string {
	return path(table, "data", level, firstRow, nextRow)
}

// SealPath returns the optional COSE integrity-seal path for a segment
// (§9 domain-stack note), a sibling of its meta file.
func SealPath(table string, level uint8, firstRow, nextRow uint64) string {
	return fmt.Sprintf("tables/%s/seal/log-l%02x-fr%08x-nr%08x.cbor", table, level, firstRow, nextRow)
}

func path(table, kind string, level uint8, firstRow, nextRow uint64) string {
	return fmt.Sprintf("tables/%s/%s/log-l%02x-fr%08x-nr%08x.arrow",
		table, kind, level, firstRow, nextRow)
}

// Name is a parsed segment file name.
type Name struct {
	Level    uint8
	FirstRow uint64
	NextRow  uint64
}

// ParseName parses the "log-l<LL>-fr<FF>-nr<NN>" stem (the part of the file
// name before its extension and directory), as produced by path().
func ParseName(stem string) (Name, error) {
	return scanName(stem)
}

func scanName(stem string) (Name, error) {
	var n Name
	var level uint64
	_, err := fmt.Sscanf(stem, "log-l%02x-fr%08x-nr%08x", &level, &n.FirstRow, &n.NextRow)
	if err != nil {
		return Name{}, fmt.Errorf("segment: bad file name %q: %w", stem, err)
	}
	n.Level = uint8(level)
	return n, nil
}
