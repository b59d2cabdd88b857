package extract

import (
	"net/url"
	"strings"
)

// DefaultURIScheme is the Advanced URI deep-link prefix.
const DefaultURIScheme = "obsidian://adv-uri"

// uriComponent undoes the escapes url.QueryEscape adds beyond what
// JavaScript's encodeURIComponent produces.
var uriComponent = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeURIComponent escapes s for use as one URI query value.
func EncodeURIComponent(s string) string {
	return uriComponent.Replace(url.QueryEscape(s))
}

// FileURI builds the deep link that opens relativePath in vault.
func FileURI(scheme, vault, relativePath string) string {
	if scheme == "" {
		scheme = DefaultURIScheme
	}
	return scheme + "?vault=" + EncodeURIComponent(vault) + "&filepath=" + EncodeURIComponent(relativePath)
}
