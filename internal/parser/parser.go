// Package parser extracts frontmatter, links, embeds, and tags from
// Markdown content, producing the cached view the extractor works on.
package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/starford/vaultbridge/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`(!?)\[\[([^\[\]]+?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([\p{L}_][\p{L}\p{N}_/-]*)`)
	schemeRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)

	yamlFormat = frontmatter.NewFormat("---", "---", yaml.Unmarshal)
	markdown   = goldmark.New()
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Links       []models.LinkReference
	Embeds      []models.LinkReference
	Tags        []string
}

// Metadata converts r into the cached form used by the vault.
func (r *Result) Metadata() *models.CachedMetadata {
	return &models.CachedMetadata{
		Frontmatter: r.Frontmatter,
		Tags:        r.Tags,
		Links:       r.Links,
		Embeds:      r.Embeds,
	}
}

// Parse extracts frontmatter, body, links, embeds, and tags from raw
// Markdown bytes. Invalid frontmatter is not an error: the whole file is
// then treated as body.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)

	visible := stripCode(body)
	links, embeds := extractWikilinks(visible)
	mdLinks, mdEmbeds, err := extractMarkdownLinks([]byte(body))
	if err != nil {
		return nil, err
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       append(links, mdLinks...),
		Embeds:      append(embeds, mdEmbeds...),
		Tags:        extractTags(visible),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading ---
// delimiters) from the Markdown body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte("---")) {
		return nil, string(data)
	}

	var fm map[string]any
	body, err := frontmatter.Parse(bytes.NewReader(trimmed), &fm, yamlFormat)
	if err != nil {
		// Invalid YAML: fall back to body only.
		return nil, string(data)
	}
	if len(fm) == 0 {
		return nil, strings.TrimLeft(string(body), "\n\r")
	}
	return normalizeMap(fm), strings.TrimLeft(string(body), "\n\r")
}

// normalizeMap makes decoded YAML JSON-safe: nested maps get string keys
// and timestamps are rendered the way they were written.
func normalizeMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalizeMap(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.RFC3339)
	default:
		return v
	}
}

// stripCode blanks fenced code blocks and inline code spans so that
// links and tags inside them are ignored. Line structure is preserved.
func stripCode(body string) string {
	lines := strings.Split(body, "\n")
	inFence := false
	for i, line := range lines {
		trim := strings.TrimSpace(line)
		if strings.HasPrefix(trim, "```") || strings.HasPrefix(trim, "~~~") {
			inFence = !inFence
			lines[i] = ""
			continue
		}
		if inFence {
			lines[i] = ""
			continue
		}
		lines[i] = stripInlineCode(line)
	}
	return strings.Join(lines, "\n")
}

func stripInlineCode(line string) string {
	if !strings.Contains(line, "`") {
		return line
	}
	var out strings.Builder
	inCode := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if ch == '`' {
			inCode = !inCode
			continue
		}
		if !inCode {
			out.WriteByte(ch)
		}
	}
	return out.String()
}

// extractWikilinks returns [[links]] and ![[embeds]] in document order.
// Duplicates are kept: every occurrence is a reference.
func extractWikilinks(body string) (links, embeds []models.LinkReference) {
	for _, m := range wikilinkRe.FindAllStringSubmatch(body, -1) {
		target, alias := splitAlias(m[2])
		if target == "" {
			continue
		}
		ref := models.LinkReference{Link: target, DisplayText: alias, Embed: m[1] == "!"}
		if ref.Embed {
			embeds = append(embeds, ref)
		} else {
			links = append(links, ref)
		}
	}
	return links, embeds
}

// splitAlias handles [[Target|Alias]], including the table-escaped form
// [[Target\|Alias]].
func splitAlias(inner string) (string, string) {
	i := strings.Index(inner, "|")
	if i < 0 {
		return strings.TrimSpace(inner), ""
	}
	target := strings.TrimSuffix(inner[:i], `\`)
	return strings.TrimSpace(target), strings.TrimSpace(inner[i+1:])
}

// extractMarkdownLinks walks the goldmark AST for [text](dest) links and
// ![alt](dest) images pointing inside the vault.
func extractMarkdownLinks(source []byte) (links, embeds []models.LinkReference, err error) {
	doc := markdown.Parser().Parse(text.NewReader(source))
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			if ref, ok := markdownRef(node.Destination, node.Text(source), false); ok {
				links = append(links, ref)
			}
			return ast.WalkSkipChildren, nil
		case *ast.Image:
			if ref, ok := markdownRef(node.Destination, node.Text(source), true); ok {
				embeds = append(embeds, ref)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("parser: walk markdown: %w", err)
	}
	return links, embeds, nil
}

func markdownRef(dest, label []byte, embed bool) (models.LinkReference, bool) {
	raw := strings.TrimSpace(string(dest))
	if raw == "" || schemeRe.MatchString(raw) {
		return models.LinkReference{}, false
	}
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	return models.LinkReference{
		Link:        raw,
		DisplayText: strings.TrimSpace(string(label)),
		Embed:       embed,
	}, true
}

// extractTags collects inline #tags from the body, keeping the marker.
func extractTags(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		for _, m := range tagRe.FindAllStringSubmatch(line, -1) {
			tag := strings.TrimRight(m[1], "/")
			if tag == "" {
				continue
			}
			out = append(out, "#"+tag)
		}
	}
	return out
}
