package parser

import (
	"fmt"
	"strings"
)

// FrontmatterTags returns the tags declared under "tags" or "tag", each
// with a leading '#'. Both list and comma/space separated string forms
// are accepted.
func FrontmatterTags(fm map[string]any) []string {
	var out []string
	for _, key := range []string{"tags", "tag"} {
		for _, t := range stringList(fm[key], " ,") {
			t = strings.TrimPrefix(t, "#")
			if t != "" {
				out = append(out, "#"+t)
			}
		}
	}
	return out
}

// FrontmatterAliases returns the aliases declared under "aliases" or
// "alias", in declaration order.
func FrontmatterAliases(fm map[string]any) []string {
	var out []string
	for _, key := range []string{"aliases", "alias"} {
		out = append(out, stringList(fm[key], ",")...)
	}
	return out
}

// AllTags returns frontmatter tags followed by inline tags.
func AllTags(fm map[string]any, inline []string) []string {
	tags := FrontmatterTags(fm)
	return append(tags, inline...)
}

func stringList(raw any, seps string) []string {
	var out []string
	switch v := raw.(type) {
	case nil:
	case string:
		for _, part := range strings.FieldsFunc(v, func(r rune) bool { return strings.ContainsRune(seps, r) }) {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range v {
			if item == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, item := range v {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
