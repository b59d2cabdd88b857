package extract

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// Fetcher downloads a remote image in the background. Fetch must not
// block the caller.
type Fetcher interface {
	Fetch(url, dest string)
}

// ImageFallback selects how a document without an image inherits one.
type ImageFallback string

const (
	FallbackNone       ImageFallback = "none"
	FallbackFolderNote ImageFallback = "folder-note"
)

// ParseImageFallback validates a configured fallback name. Empty selects
// FallbackNone.
func ParseImageFallback(s string) (ImageFallback, error) {
	switch f := ImageFallback(strings.TrimSpace(s)); f {
	case "":
		return FallbackNone, nil
	case FallbackNone, FallbackFolderNote:
		return f, nil
	default:
		return "", fmt.Errorf("extract: unknown image fallback %q", s)
	}
}

// ImageOptions configures the frontmatter image rewrite.
type ImageOptions struct {
	// Download fetches remote images missing from the library. The
	// frontmatter is rewritten either way.
	Download bool
	// HomeDir anchors LibraryPath for the local existence check.
	HomeDir string
	// LibraryPath is the image library folder, relative to HomeDir. It is
	// written into the exported frontmatter as is.
	LibraryPath string
	// DownloadDir receives remote images (absolute).
	DownloadDir string
	// SourceKeys are the frontmatter keys read for an image, in order.
	SourceKeys []string
	Fallback   ImageFallback
}

var (
	wikiImageRe   = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	remoteImageRe = regexp.MustCompile(`^https?://`)
)

// imageSource returns the first string image value of fm.
func (o ImageOptions) imageSource(fm map[string]any) (string, bool) {
	for _, key := range o.SourceKeys {
		if s, ok := fm[key].(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// rewriteImage maps an image value to the path the asset tool reads.
// Wiki embeds point into the library; remote URLs are fetched into the
// download folder unless the library already has them or downloads are
// off.
func (x *Extractor) rewriteImage(image, name string) string {
	opts := x.opts.Images
	if loc := wikiImageRe.FindStringSubmatchIndex(image); loc != nil {
		inner := image[loc[2]:loc[3]]
		return image[:loc[0]] + path.Join(opts.LibraryPath, inner) + image[loc[1]:]
	}
	if remoteImageRe.MatchString(image) {
		local := path.Join(opts.LibraryPath, name+".jpg")
		if !x.exists(filepath.Join(opts.HomeDir, filepath.FromSlash(local))) && opts.Download && x.fetcher != nil {
			x.fetcher.Fetch(image, filepath.Join(opts.DownloadDir, name+".jpg"))
		}
		return local
	}
	return image
}

// inheritedImage walks the ancestor folders of p looking for a folder
// note with an image. For folder F it tries F/F.md, then the sibling
// note F.md next to F. The walk stops at the vault root or at the first
// folder whose name contains a digit.
func (x *Extractor) inheritedImage(p string) (image, owner string, ok bool) {
	dir := path.Dir(p)
	for dir != "." && dir != "/" && dir != "" {
		folder := path.Base(dir)
		if strings.ContainsFunc(folder, unicode.IsDigit) {
			return "", "", false
		}
		parent := path.Dir(dir)
		for _, candidate := range []string{
			path.Join(dir, folder+".md"),
			path.Join(parent, folder+".md"),
		} {
			if candidate == p {
				continue
			}
			c, found := x.src.FileCache(candidate)
			if !found {
				continue
			}
			if img, has := x.opts.Images.imageSource(c.Frontmatter); has {
				return img, folder, true
			}
		}
		dir = parent
	}
	return "", "", false
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
