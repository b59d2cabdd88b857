// Package vault holds the in-memory snapshot of a vault: every entry, the
// parsed metadata of each text document, and Obsidian-style link
// resolution over them. A Vault is read-only once loaded.
package vault

import (
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/starford/vaultbridge/internal/links"
	"github.com/starford/vaultbridge/internal/models"
	"github.com/starford/vaultbridge/internal/parser"
	"github.com/starford/vaultbridge/internal/storage"
)

// Vault is a loaded snapshot.
type Vault struct {
	root     string
	entries  []models.Entry
	caches   map[string]*models.CachedMetadata
	byPath   map[string]string   // lower path → path
	byName   map[string][]string // lower file name (with extension) → paths
	byStem   map[string][]string // lower basename of markdown files → paths
	resolved map[string]map[string]int
}

// Load lists the vault and parses every file whose extension is in
// textExts (case-insensitive, without dot). Unreadable or unparsable
// files are logged and left without a cache entry.
func Load(store storage.Provider, textExts []string, logger *slog.Logger) (*Vault, error) {
	entries, err := store.List("")
	if err != nil {
		return nil, err
	}

	parseable := make(map[string]struct{}, len(textExts))
	for _, ext := range textExts {
		parseable[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	v := newVault(store.Root(), entries)
	for _, e := range entries {
		if !e.IsDocument() {
			continue
		}
		if _, ok := parseable[e.Extension]; !ok {
			continue
		}
		data, err := store.Read(e.Path)
		if err != nil {
			logger.Warn("vault: read failed", slog.String("path", e.Path), slog.String("error", err.Error()))
			continue
		}
		res, err := parser.Parse(data)
		if err != nil {
			logger.Warn("vault: parse failed", slog.String("path", e.Path), slog.String("error", err.Error()))
			continue
		}
		v.caches[e.Path] = res.Metadata()
	}
	v.computeResolved()

	logger.Debug("vault: loaded",
		slog.String("root", v.root),
		slog.Int("entries", len(entries)),
		slog.Int("parsed", len(v.caches)))
	return v, nil
}

// New builds a Vault from already parsed caches. Entries without a cache
// are still resolvable link destinations.
func New(root string, entries []models.Entry, caches map[string]*models.CachedMetadata) *Vault {
	v := newVault(root, entries)
	for p, c := range caches {
		v.caches[p] = c
	}
	v.computeResolved()
	return v
}

func newVault(root string, entries []models.Entry) *Vault {
	v := &Vault{
		root:     root,
		entries:  entries,
		caches:   make(map[string]*models.CachedMetadata),
		byPath:   make(map[string]string),
		byName:   make(map[string][]string),
		byStem:   make(map[string][]string),
		resolved: make(map[string]map[string]int),
	}
	for _, e := range entries {
		if !e.IsDocument() {
			continue
		}
		v.byPath[strings.ToLower(e.Path)] = e.Path
		name := strings.ToLower(e.Name)
		v.byName[name] = append(v.byName[name], e.Path)
		if e.Extension == "md" {
			stem := strings.ToLower(e.Basename)
			v.byStem[stem] = append(v.byStem[stem], e.Path)
		}
	}
	return v
}

// Root returns the absolute vault directory.
func (v *Vault) Root() string { return v.root }

// Files returns the file entries whose extension is one of exts, in
// enumeration order.
func (v *Vault) Files(exts ...string) []models.Entry {
	want := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		want[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	var out []models.Entry
	for _, e := range v.entries {
		if !e.IsDocument() {
			continue
		}
		if _, ok := want[e.Extension]; ok {
			out = append(out, e)
		}
	}
	return out
}

// FileCache returns the parsed metadata of the document at p.
func (v *Vault) FileCache(p string) (*models.CachedMetadata, bool) {
	c, ok := v.caches[p]
	return c, ok
}

// Tags returns every tag of the document at p with the '#' marker
// stripped, frontmatter tags first. Case is preserved; consumers fold it
// with textcase.
func (v *Vault) Tags(p string) []string {
	c, ok := v.caches[p]
	if !ok {
		return nil
	}
	all := parser.AllTags(c.Frontmatter, c.Tags)
	out := make([]string, 0, len(all))
	for _, t := range all {
		out = append(out, strings.TrimPrefix(t, "#"))
	}
	return out
}

// ResolvedLinks returns destination path → reference count over all
// links and embeds of the document at p that resolve to a vault file.
func (v *Vault) ResolvedLinks(p string) map[string]int {
	return v.resolved[p]
}

func (v *Vault) computeResolved() {
	for p, c := range v.caches {
		counts := make(map[string]int)
		for _, refs := range [][]models.LinkReference{c.Links, c.Embeds} {
			for _, ref := range refs {
				lp := links.LinkPath(ref.Link)
				if lp == "" {
					continue
				}
				if dest, ok := v.Resolve(lp, p); ok {
					counts[dest]++
				}
			}
		}
		if len(counts) > 0 {
			v.resolved[p] = counts
		}
	}
}

// Resolve finds the file a link path points at from the document at
// fromPath, the way Obsidian picks the first link destination:
//   - ./ and ../ paths are resolved against the source folder;
//   - an exact vault path matches, with or without the .md extension;
//   - a partial path matches any file whose path ends with it;
//   - a bare name matches by file name, or by basename for Markdown.
//
// Among several candidates the one in the source folder wins, then the
// shortest path, then the lexically smallest.
func (v *Vault) Resolve(linkpath, fromPath string) (string, bool) {
	lp := strings.TrimSpace(strings.ReplaceAll(linkpath, `\`, "/"))
	if lp == "" {
		return "", false
	}
	if strings.HasPrefix(lp, "./") || strings.HasPrefix(lp, "../") {
		joined := path.Clean(path.Join(path.Dir(fromPath), lp))
		if strings.HasPrefix(joined, "../") || joined == ".." {
			return "", false
		}
		lp = joined
	}
	lp = strings.TrimPrefix(lp, "/")
	lower := strings.ToLower(lp)

	if p, ok := v.byPath[lower]; ok {
		return p, true
	}
	if p, ok := v.byPath[lower+".md"]; ok {
		return p, true
	}

	var candidates []string
	if strings.Contains(lower, "/") {
		for key, p := range v.byPath {
			if strings.HasSuffix(key, "/"+lower) || strings.HasSuffix(key, "/"+lower+".md") {
				candidates = append(candidates, p)
			}
		}
	} else {
		candidates = append(candidates, v.byName[lower]...)
		candidates = append(candidates, v.byStem[lower]...)
	}
	if len(candidates) == 0 {
		return "", false
	}
	return pickClosest(candidates, path.Dir(fromPath)), true
}

func pickClosest(candidates []string, fromDir string) string {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		aLocal, bLocal := path.Dir(a) == fromDir, path.Dir(b) == fromDir
		if aLocal != bLocal {
			return aLocal
		}
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return candidates[0]
}
