package cache

import "strings"

// KeySeparator joins the segments of composed keys.
const KeySeparator = ":"

// Key composes a deterministic key of the form kind:scope[:part...].
// Consumers build every key for one resource kind and scope this way so
// that Scope can invalidate them together.
func Key(kind, scope string, parts ...string) string {
	segs := make([]string, 0, 2+len(parts))
	segs = append(segs, kind, scope)
	segs = append(segs, parts...)
	return strings.Join(segs, KeySeparator)
}

// Predicate selects string keys for InvalidateBy.
type Predicate func(key string) bool

// HasPrefix matches keys starting with prefix.
func HasPrefix(prefix string) Predicate {
	return func(key string) bool { return strings.HasPrefix(key, prefix) }
}

// Contains matches keys containing substr.
func Contains(substr string) Predicate {
	return func(key string) bool { return strings.Contains(key, substr) }
}

// Scope matches kind:scope and every key composed below it with Key.
// Scope("feature", "p1") matches "feature:p1:42" but not "feature:p10:42".
func Scope(kind, scope string) Predicate {
	base := kind + KeySeparator + scope
	return func(key string) bool {
		return key == base || strings.HasPrefix(key, base+KeySeparator)
	}
}

// AnyOf matches keys accepted by at least one predicate.
func AnyOf(preds ...Predicate) Predicate {
	return func(key string) bool {
		for _, p := range preds {
			if p != nil && p(key) {
				return true
			}
		}
		return false
	}
}
