package extract

import (
	"fmt"
	"strings"

	"github.com/starford/vaultbridge/internal/textcase"
)

// TagTransform reduces a nested tag to the word shown in stringTags.
type TagTransform string

const (
	// TagLastSegment keeps the last path segment: "area/topic/go" -> "go".
	TagLastSegment TagTransform = "last-segment"
	// TagDropFirstSegment removes the leading segment: "area/topic/go" -> "topic/go".
	TagDropFirstSegment TagTransform = "drop-first-segment"
	// TagNone keeps the tag as is.
	TagNone TagTransform = "none"
)

// ParseTagTransform validates a configured transform name. Empty selects
// TagLastSegment.
func ParseTagTransform(s string) (TagTransform, error) {
	switch t := TagTransform(strings.TrimSpace(s)); t {
	case "":
		return TagLastSegment, nil
	case TagLastSegment, TagDropFirstSegment, TagNone:
		return t, nil
	default:
		return "", fmt.Errorf("extract: unknown tag transform %q", s)
	}
}

// Apply transforms one tag.
func (t TagTransform) Apply(tag string) string {
	switch t {
	case TagDropFirstSegment:
		if i := strings.IndexByte(tag, '/'); i >= 0 && i < len(tag)-1 {
			return tag[i+1:]
		}
		return tag
	case TagNone:
		return tag
	default:
		if i := strings.LastIndexByte(tag, '/'); i >= 0 && i < len(tag)-1 {
			return tag[i+1:]
		}
		return tag
	}
}

// UniqueTags strips the '#' marker, lower-cases and removes duplicates,
// keeping the first occurrence order.
func UniqueTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = textcase.Tag(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// StringTags builds the space-joined stringTags value.
func StringTags(raw []string, t TagTransform) string {
	tags := UniqueTags(raw)
	for i, tag := range tags {
		tags[i] = t.Apply(tag)
	}
	return strings.Join(tags, " ")
}
