package statline

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Tag is a single key/value pair attached to a metric.
type Tag struct {
	Key   string
	Value string
}

// TagSet is an ordered list of tags as declared by the caller. Ordering is
// irrelevant after canonicalization; it is kept for error reporting.
type TagSet []Tag

// Tags builds a TagSet from alternating key/value strings.
func Tags(pairs ...string) TagSet {
	ts := make(TagSet, 0, (len(pairs)+1)/2)
	for i := 0; i < len(pairs); i += 2 {
		t := Tag{Key: pairs[i]}
		if i+1 < len(pairs) {
			t.Value = pairs[i+1]
		}
		ts = append(ts, t)
	}
	return ts
}

// Get returns the value for key, if declared.
func (ts TagSet) Get(key string) (string, bool) {
	for _, t := range ts {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// NameTransformer maps a declared tag key to its wire form. It must be
// deterministic and idempotent.
type NameTransformer func(string) string

// DefaultNameTransformer converts CamelCase identifiers to
// lower_snake_case. Applying it twice yields the same result as once.
func DefaultNameTransformer(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	prevLower := false
	for _, r := range name {
		if unicode.IsUpper(r) {
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
			continue
		}
		b.WriteRune(r)
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	return b.String()
}

// IdentityNameTransformer passes tag keys through unchanged.
func IdentityNameTransformer(name string) string { return name }

// SerializedTags holds every wire form of a canonical tag set, computed
// once at attach time.
type SerializedTags struct {
	// JSON is the tags object, e.g. {"host":"web1","route":"/a"}.
	JSON string
	// List holds "key:value" entries sorted by key.
	List []string
	// ListJSON is List rendered as a JSON array.
	ListJSON string
	// Line is List joined with commas (statsd form).
	Line string
	// Host is the value of the "host" tag, if present.
	Host string
}

var emptySerializedTags = &SerializedTags{JSON: "{}", ListJSON: "[]"}

func validTagRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '.' || r == '/':
		return true
	}
	return false
}

func validTagString(s string) bool {
	for _, r := range s {
		if !validTagRune(r) {
			return false
		}
	}
	return true
}

func validMetricName(s string) bool {
	return s != "" && validTagString(s)
}

// canonicalizeTags merges the metric's declared tags over the default tags,
// transforms keys, validates keys and values, and produces every
// precomputed wire form plus the canonical key string used for registry
// lookups.
func canonicalizeTags(declared, defaults TagSet, tr NameTransformer) (*SerializedTags, string, error) {
	if tr == nil {
		tr = DefaultNameTransformer
	}

	merged := make(map[string]string, len(declared)+len(defaults))
	fromDefaults := make(map[string]bool, len(defaults))

	addTag := func(t Tag, isDefault bool) error {
		key := tr(t.Key)
		if key == "" || t.Value == "" {
			return fmt.Errorf("tag %q: %w", t.Key, ErrInvalidTag)
		}
		if !validTagString(key) || !validTagString(t.Value) {
			return fmt.Errorf("tag %s=%s: %w", key, t.Value, ErrInvalidTagValue)
		}
		if _, ok := merged[key]; ok {
			if isDefault || fromDefaults[key] {
				return fmt.Errorf("tag %q collides with a default tag: %w", key, ErrTagConflict)
			}
			return fmt.Errorf("tag %q: %w", key, ErrTagConflict)
		}
		merged[key] = t.Value
		fromDefaults[key] = isDefault
		return nil
	}

	for _, t := range defaults {
		if err := addTag(t, true); err != nil {
			return nil, "", err
		}
	}
	for _, t := range declared {
		if err := addTag(t, false); err != nil {
			return nil, "", err
		}
	}

	if len(merged) == 0 {
		return emptySerializedTags, "", nil
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ser := &SerializedTags{List: make([]string, 0, len(keys))}
	var obj, arr strings.Builder
	obj.WriteByte('{')
	arr.WriteByte('[')
	for i, k := range keys {
		v := merged[k]
		if i > 0 {
			obj.WriteByte(',')
			arr.WriteByte(',')
		}
		obj.WriteByte('"')
		obj.WriteString(k)
		obj.WriteString(`":"`)
		obj.WriteString(v)
		obj.WriteByte('"')
		arr.WriteByte('"')
		arr.WriteString(k)
		arr.WriteByte(':')
		arr.WriteString(v)
		arr.WriteByte('"')
		ser.List = append(ser.List, k+":"+v)
		if k == "host" {
			ser.Host = v
		}
	}
	obj.WriteByte('}')
	arr.WriteByte(']')
	ser.JSON = obj.String()
	ser.ListJSON = arr.String()
	ser.Line = strings.Join(ser.List, ",")
	return ser, ser.Line, nil
}
