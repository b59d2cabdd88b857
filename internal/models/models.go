// Package models defines the domain types shared by the extractor, the
// backlink resolver and the output writers.
package models

// EntryKind discriminates vault entries.
type EntryKind string

const (
	KindDocument  EntryKind = "document"
	KindDirectory EntryKind = "directory"
)

// Entry is one item of the vault listing: either a file or a folder.
type Entry struct {
	Kind      EntryKind `json:"-"`
	Name      string    `json:"name"`
	Basename  string    `json:"basename,omitempty"`
	Path      string    `json:"relativePath"`
	Extension string    `json:"-"`
}

// IsDocument reports whether e is a file entry.
func (e Entry) IsDocument() bool { return e.Kind == KindDocument }

// LinkReference is a raw link as produced by the parser.
// DisplayText is empty when the source carried no alias.
type LinkReference struct {
	Link        string
	DisplayText string
	Embed       bool
}

// CachedMetadata is the parsed view of one document.
type CachedMetadata struct {
	Frontmatter map[string]any
	Tags        []string // inline tags, with the leading '#'
	Links       []LinkReference
	Embeds      []LinkReference
}

// NormalizedLink is the canonical form of an outbound link.
type NormalizedLink struct {
	Link         string `json:"link"`
	CleanTarget  string `json:"cleanTarget,omitempty"`
	DisplayText  string `json:"displayText,omitempty"`
	ResolvedPath string `json:"resolvedPath,omitempty"`
}

// BacklinkEntry identifies a document linking to another.
type BacklinkEntry struct {
	SourcePath  string `json:"sourcePath"`
	DisplayName string `json:"displayName"`
}

// ResolvedLinkSummary is one resolved destination of a document and how
// many references point at it.
type ResolvedLinkSummary struct {
	RelativePath string `json:"relativePath"`
	FileName     string `json:"fileName"`
	Count        int    `json:"count"`
}

// DocumentMetadata is the exported record for one document.
type DocumentMetadata struct {
	FileName      string                `json:"fileName"`
	RelativePath  string                `json:"relativePath"`
	URI           string                `json:"uri"`
	StringTags    string                `json:"stringTags,omitempty"`
	Frontmatter   map[string]any        `json:"frontmatter,omitempty"`
	Aliases       []string              `json:"aliases,omitempty"`
	Links         []NormalizedLink      `json:"links,omitempty"`
	ResolvedLinks []ResolvedLinkSummary `json:"resolvedLinks,omitempty"`
	Backlinks     []BacklinkEntry       `json:"backlinks,omitempty"`
}

// IdentityOnly reports whether d carries nothing beyond name, path and URI.
func (d *DocumentMetadata) IdentityOnly() bool {
	return d.StringTags == "" && len(d.Frontmatter) == 0 && len(d.Aliases) == 0 &&
		len(d.Links) == 0 && len(d.ResolvedLinks) == 0
}

// Clone returns a deep copy of d. Frontmatter values are copied one map
// level deep, which is all the writers mutate.
func (d DocumentMetadata) Clone() DocumentMetadata {
	out := d
	if d.Frontmatter != nil {
		out.Frontmatter = make(map[string]any, len(d.Frontmatter))
		for k, v := range d.Frontmatter {
			out.Frontmatter[k] = v
		}
	}
	out.Aliases = append([]string(nil), d.Aliases...)
	out.Links = append([]NormalizedLink(nil), d.Links...)
	out.ResolvedLinks = append([]ResolvedLinkSummary(nil), d.ResolvedLinks...)
	out.Backlinks = append([]BacklinkEntry(nil), d.Backlinks...)
	return out
}

// FolderListing is the payload of the all-except-md export.
type FolderListing struct {
	Folders []Entry `json:"folders"`
	Files   []Entry `json:"files"`
}
