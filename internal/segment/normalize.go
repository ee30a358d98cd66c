package segment

import (
	"strings"
	"sync"
)

// normalizeCache memoizes Normalize results, since it is baked into on-disk
// column names and must be bit-identical and cheap across every row/column
// touch (§6 "This mapping is idempotent and cached").
var normalizeCache sync.Map // string -> string

// Normalize folds a user-supplied identifier to the restricted alphabet used
// for on-disk column/table names (§6):
//
//	'-'            -> '_'
//	leading '_'    -> "xt$"
//	'.' '/' '$'    -> '$'
//	then lowercase
//
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x) for all x
// (§8 property 6).
func Normalize(name string) string {
	if v, ok := normalizeCache.Load(name); ok {
		return v.(string)
	}
	out := normalize(name)
	normalizeCache.Store(name, out)
	return out
}

func normalize(name string) string {
	if name == "" {
		return name
	}

	var mapped strings.Builder
	mapped.Grow(len(name))
	for _, r := range name {
		switch r {
		case '-':
			mapped.WriteRune('_')
		case '.', '/', '$':
			mapped.WriteRune('$')
		default:
			mapped.WriteRune(r)
		}
	}

	// The leading-'_' rule applies to the char-class-mapped result, not the
	// original string, or a '-'-led name (mapped to '_') would normalize
	// differently the second time through (§8 property 6).
	out := mapped.String()
	if strings.HasPrefix(out, "_") {
		out = "xt$" + out[1:]
	}

	return strings.ToLower(out)
}
