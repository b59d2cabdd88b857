// Package extract builds the exported record of a single document from
// its cached metadata: tags, cleaned frontmatter, aliases and normalized
// outbound links.
package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"

	"github.com/starford/vaultbridge/internal/apperr"
	"github.com/starford/vaultbridge/internal/links"
	"github.com/starford/vaultbridge/internal/metrics"
	"github.com/starford/vaultbridge/internal/models"
	"github.com/starford/vaultbridge/internal/parser"
)

// ErrIdentityOnly is returned when a record carries nothing but its
// identity fields and the dataset skips such records.
var ErrIdentityOnly = errors.New("extract: identity-only record")

// Source is the read-only metadata cache the extractor draws from.
type Source interface {
	links.Resolver
	FileCache(p string) (*models.CachedMetadata, bool)
	Tags(p string) []string
	ResolvedLinks(p string) map[string]int
}

// Options configures one dataset's extraction.
type Options struct {
	Dataset              string
	VaultName            string
	URIScheme            string
	TagTransform         TagTransform
	Images               ImageOptions
	IncludeResolvedLinks bool
	SkipIdentityOnly     bool
	// Tracked selects the link destinations that are kept. Nil tracks
	// Markdown documents.
	Tracked links.Tracked
}

// Extractor turns documents into records. One Extractor serves one scan.
type Extractor struct {
	src     Source
	opts    Options
	fetcher Fetcher
	metrics *metrics.Metrics
	logger  *slog.Logger
	exists  func(string) bool
}

// New creates an Extractor. fetcher and m may be nil.
func New(src Source, opts Options, fetcher Fetcher, m *metrics.Metrics, logger *slog.Logger) *Extractor {
	if opts.Tracked == nil {
		opts.Tracked = links.Markdown
	}
	if opts.TagTransform == "" {
		opts.TagTransform = TagLastSegment
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		src:     src,
		opts:    opts,
		fetcher: fetcher,
		metrics: m,
		logger:  logger,
		exists:  fileExists,
	}
}

// Extract builds the record of e. It returns an error wrapping
// apperr.ErrNotFound when e has no cached metadata, and ErrIdentityOnly
// when the record is empty and the dataset skips such records.
func (x *Extractor) Extract(e models.Entry) (models.DocumentMetadata, error) {
	cache, ok := x.src.FileCache(e.Path)
	if !ok {
		return models.DocumentMetadata{}, fmt.Errorf("extract: %s: no cached metadata: %w", e.Path, apperr.ErrNotFound)
	}

	name := e.Basename
	doc := models.DocumentMetadata{
		FileName:     name,
		RelativePath: e.Path,
		URI:          FileURI(x.opts.URIScheme, x.opts.VaultName, e.Path),
	}

	doc.StringTags = StringTags(x.src.Tags(e.Path), x.opts.TagTransform)
	doc.Frontmatter = x.cleanFrontmatter(e.Path, name, cache.Frontmatter)
	doc.Aliases = parser.FrontmatterAliases(cache.Frontmatter)

	owner := links.Owner{Path: e.Path, Name: name}
	inline, droppedInline := links.NormalizeAll(cache.Links, owner, x.src, x.opts.Tracked)
	embeds := links.FilterEmbeds(cache.Embeds, owner, x.src, x.opts.Tracked)
	embedded, droppedEmbeds := links.NormalizeAll(embeds, owner, x.src, x.opts.Tracked)
	doc.Links = append(inline, embedded...)
	dropped := droppedInline + droppedEmbeds + len(cache.Embeds) - len(embeds)
	x.metrics.Links(x.opts.Dataset, len(doc.Links), dropped)

	if x.opts.IncludeResolvedLinks {
		doc.ResolvedLinks = summarize(x.src.ResolvedLinks(e.Path))
	}

	if x.opts.SkipIdentityOnly && doc.IdentityOnly() {
		return models.DocumentMetadata{}, ErrIdentityOnly
	}
	return doc, nil
}

// cleanFrontmatter copies fm without aliases and tags and rewrites the
// image field. It returns nil when nothing is left.
func (x *Extractor) cleanFrontmatter(p, name string, fm map[string]any) map[string]any {
	out := make(map[string]any, len(fm))
	for k, v := range fm {
		if k == "aliases" || k == "tags" {
			continue
		}
		out[k] = v
	}

	if img, ok := x.opts.Images.imageSource(fm); ok {
		out["image"] = x.rewriteImage(img, name)
	} else if x.opts.Images.Fallback == FallbackFolderNote {
		if img, owner, ok := x.inheritedImage(p); ok {
			x.logger.Debug("extract: inherited image",
				slog.String("path", p),
				slog.String("from", owner))
			out["image"] = x.rewriteImage(img, owner)
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func summarize(resolved map[string]int) []models.ResolvedLinkSummary {
	if len(resolved) == 0 {
		return nil
	}
	out := make([]models.ResolvedLinkSummary, 0, len(resolved))
	for p, n := range resolved {
		base := path.Base(p)
		out = append(out, models.ResolvedLinkSummary{
			RelativePath: p,
			FileName:     base[:len(base)-len(path.Ext(base))],
			Count:        n,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelativePath < out[j].RelativePath })
	return out
}
