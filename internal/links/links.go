// Package links turns raw link references into their canonical exported
// form. It knows nothing about how the corpus is stored: destinations are
// looked up through a Resolver and filtered by a Tracked predicate.
package links

import (
	"strings"

	"github.com/starford/vaultbridge/internal/models"
)

// Resolver finds the corpus path a link path points at from a document.
type Resolver interface {
	Resolve(linkpath, fromPath string) (string, bool)
}

// Tracked reports whether a resolved destination is a document of the
// exported kind.
type Tracked func(path string) bool

// Markdown tracks .md files only.
func Markdown(p string) bool {
	return strings.EqualFold(extOf(p), "md")
}

// Owner identifies the document a link belongs to.
type Owner struct {
	Path string
	Name string
}

// LinkPath strips any "#heading" or "#^block" subpath from a link.
func LinkPath(link string) string {
	if i := strings.IndexByte(link, '#'); i >= 0 {
		return link[:i]
	}
	return link
}

// Normalize converts ref into a NormalizedLink. The second result is false
// when the link resolves to something other than a tracked document, in
// which case it is dropped.
func Normalize(ref models.LinkReference, owner Owner, r Resolver, tracked Tracked) (models.NormalizedLink, bool) {
	if strings.HasPrefix(ref.Link, "#") {
		return models.NormalizedLink{
			Link:         ref.Link,
			CleanTarget:  owner.Name,
			DisplayText:  displayText(ref.DisplayText, ref.Link),
			ResolvedPath: owner.Path,
		}, true
	}

	var dest string
	var resolved bool
	if lp := LinkPath(ref.Link); lp != "" {
		dest, resolved = r.Resolve(lp, owner.Path)
	}
	if resolved && !tracked(dest) {
		return models.NormalizedLink{}, false
	}

	target := stripDirs(ref.Link)
	out := models.NormalizedLink{
		Link:        target,
		DisplayText: displayText(ref.DisplayText, target),
	}
	if strings.IndexByte(target, '#') > 0 {
		out.CleanTarget = LinkPath(target)
	}
	if resolved {
		out.ResolvedPath = dest
	}
	return out, true
}

// NormalizeAll normalizes refs in order and reports how many were dropped.
func NormalizeAll(refs []models.LinkReference, owner Owner, r Resolver, tracked Tracked) ([]models.NormalizedLink, int) {
	var out []models.NormalizedLink
	dropped := 0
	for _, ref := range refs {
		nl, ok := Normalize(ref, owner, r, tracked)
		if !ok {
			dropped++
			continue
		}
		out = append(out, nl)
	}
	return out, dropped
}

// FilterEmbeds keeps the embeds that resolve to a tracked document.
// Embeds of images and other attachments, and embeds of missing files,
// are removed.
func FilterEmbeds(embeds []models.LinkReference, owner Owner, r Resolver, tracked Tracked) []models.LinkReference {
	var out []models.LinkReference
	for _, e := range embeds {
		if strings.HasPrefix(e.Link, "#") {
			out = append(out, e)
			continue
		}
		lp := LinkPath(e.Link)
		if lp == "" {
			continue
		}
		if dest, ok := r.Resolve(lp, owner.Path); ok && tracked(dest) {
			out = append(out, e)
		}
	}
	return out
}

// stripDirs drops folders from the path part of a link and keeps the
// fragment as written, so "a/b#c/d" becomes "b#c/d". Only the text
// before the first '#' is treated as a path; a '/' inside a heading or
// block fragment is part of its name. This departs from cutting at the
// last '/' of the whole link, which would yield "d".
func stripDirs(link string) string {
	p, frag := link, ""
	if i := strings.IndexByte(link, '#'); i >= 0 {
		p, frag = link[:i], link[i:]
	}
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		p = p[i+1:]
	}
	return p + frag
}

func displayText(alias, target string) string {
	if alias == "" || alias == target {
		return ""
	}
	return alias
}

func extOf(p string) string {
	base := p[strings.LastIndexByte(p, '/')+1:]
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		return base[i+1:]
	}
	return ""
}
