package export

import (
	"github.com/starford/vaultbridge/internal/extract"
	"github.com/starford/vaultbridge/internal/selection"
)

// Dataset is one named export: which documents, how they are shaped and
// where the JSON goes.
type Dataset struct {
	Name string
	// File is the output file name inside the output folder.
	File string
	// Output, when set, is the absolute output path and wins over File.
	Output     string
	Policy     selection.Policy
	Extensions []string

	TagTransform         extract.TagTransform
	IncludeResolvedLinks bool
	SkipIdentityOnly     bool
}

// Info is the public description of a dataset.
type Info struct {
	Name       string   `json:"name"`
	File       string   `json:"file"`
	Output     string   `json:"output"`
	Pattern    string   `json:"pattern"`
	Extensions []string `json:"extensions,omitempty"`
}
