// Package textcase lower-cases tags with Unicode-aware rules so that the
// exported tag words and the selection gates agree.
package textcase

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// A Caser keeps state between calls and must not be shared.
var casers = sync.Pool{
	New: func() any {
		c := cases.Lower(language.Und)
		return &c
	},
}

// Lower returns s lower-cased. A final capital sigma becomes 'ς'.
func Lower(s string) string {
	c := casers.Get().(*cases.Caser)
	defer casers.Put(c)
	return c.String(s)
}

// Tag strips surrounding space and the '#' marker and lower-cases the rest.
func Tag(t string) string {
	return Lower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
}
