// Package selection decides which documents enter a dataset scan: a path
// pattern plus tag gates that are AND-ed on top of it.
package selection

import (
	"fmt"
	"regexp"

	"github.com/starford/vaultbridge/internal/apperr"
	"github.com/starford/vaultbridge/internal/textcase"
)

// Gate requires a tag for the documents in its scope. With Outside set
// the gate applies to documents that do NOT match Scope.
type Gate struct {
	Scope      *regexp.Regexp
	Outside    bool
	RequireTag string
}

// Applies reports whether the gate constrains the document at p.
func (g Gate) Applies(p string) bool {
	return g.Scope.MatchString(p) != g.Outside
}

// Policy is the selection predicate of one dataset.
type Policy struct {
	Pattern *regexp.Regexp
	Gates   []Gate
}

// GateSpec is the uncompiled form of a Gate.
type GateSpec struct {
	Scope      string
	Outside    bool
	RequireTag string
}

// Compile builds a Policy from a path pattern and gate specs.
func Compile(pattern string, gates []GateSpec) (Policy, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Policy{}, fmt.Errorf("selection: pattern %q: %w: %v", pattern, apperr.ErrInvalidPattern, err)
	}
	p := Policy{Pattern: re}
	for _, g := range gates {
		scope, err := regexp.Compile(g.Scope)
		if err != nil {
			return Policy{}, fmt.Errorf("selection: gate scope %q: %w: %v", g.Scope, apperr.ErrInvalidPattern, err)
		}
		p.Gates = append(p.Gates, Gate{Scope: scope, Outside: g.Outside, RequireTag: normalizeTag(g.RequireTag)})
	}
	return p, nil
}

// MustCompile is Compile that panics on error, for fixed tables.
func MustCompile(pattern string, gates ...GateSpec) Policy {
	p, err := Compile(pattern, gates)
	if err != nil {
		panic(err)
	}
	return p
}

// Matches reports whether the path pattern alone accepts p.
func (p Policy) Matches(path string) bool {
	return p.Pattern.MatchString(path)
}

// Accept reports whether the document at path with the given tags passes
// the pattern and every gate that applies to it. tags are compared
// case-insensitively, with or without the leading '#'. tags is only
// called when a gate applies.
func (p Policy) Accept(path string, tags func() []string) bool {
	if !p.Matches(path) {
		return false
	}
	var have map[string]struct{}
	for _, g := range p.Gates {
		if !g.Applies(path) {
			continue
		}
		if have == nil {
			have = make(map[string]struct{})
			for _, t := range tags() {
				have[normalizeTag(t)] = struct{}{}
			}
		}
		if _, ok := have[g.RequireTag]; !ok {
			return false
		}
	}
	return true
}

func normalizeTag(t string) string { return textcase.Tag(t) }
