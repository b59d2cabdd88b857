package scanner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/vaultbridge/internal/apperr"
	"github.com/starford/vaultbridge/internal/extract"
	"github.com/starford/vaultbridge/internal/models"
	"github.com/starford/vaultbridge/internal/selection"
)

type fakeCorpus struct {
	files []models.Entry
	tags  map[string][]string
}

func (c fakeCorpus) Files(exts ...string) []models.Entry {
	want := map[string]bool{}
	for _, e := range exts {
		want[e] = true
	}
	var out []models.Entry
	for _, f := range c.files {
		if want[f.Extension] {
			out = append(out, f)
		}
	}
	return out
}

func (c fakeCorpus) Tags(p string) []string { return c.tags[p] }

type fakeExtractor struct {
	fail map[string]error
}

func (x fakeExtractor) Extract(e models.Entry) (models.DocumentMetadata, error) {
	if err := x.fail[e.Path]; err != nil {
		return models.DocumentMetadata{}, err
	}
	return models.DocumentMetadata{FileName: e.Basename, RelativePath: e.Path}, nil
}

func file(p, base, ext string) models.Entry {
	return models.Entry{Kind: models.KindDocument, Path: p, Name: base + "." + ext, Basename: base, Extension: ext}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func paths(docs []models.DocumentMetadata) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.RelativePath)
	}
	return out
}

func TestScan_KeepsEnumerationOrderAndSkipsFailures(t *testing.T) {
	corpus := fakeCorpus{files: []models.Entry{
		file("Tech/Z.md", "Z", "md"),
		file("Tech/A.md", "A", "md"),
		file("Tech/Broken.md", "Broken", "md"),
		file("Tech/Empty.md", "Empty", "md"),
		file("Other/B.md", "B", "md"),
		file("Tech/notes.txt", "notes", "txt"),
	}}
	x := fakeExtractor{fail: map[string]error{
		"Tech/Broken.md": fmt.Errorf("extract: %w", apperr.ErrNotFound),
		"Tech/Empty.md":  extract.ErrIdentityOnly,
	}}
	s := New(corpus, nil, quiet())

	docs := s.Scan(context.Background(), Request{
		Dataset:   "tech",
		Policy:    selection.MustCompile(`^Tech/`),
		Extractor: x,
	})
	assert.Equal(t, []string{"Tech/Z.md", "Tech/A.md"}, paths(docs))

	docs = s.Scan(context.Background(), Request{
		Dataset:    "tech",
		Policy:     selection.MustCompile(`^Tech/`),
		Extensions: []string{"md", "txt"},
		Extractor:  x,
	})
	assert.Equal(t, []string{"Tech/Z.md", "Tech/A.md", "Tech/notes.txt"}, paths(docs))
}

func TestScan_SubscriptionGateExcludesUntagged(t *testing.T) {
	sub := "Data/md/YouTube/YouTubeSubscriptionData/"
	corpus := fakeCorpus{
		files: []models.Entry{
			file(sub+"Synced.md", "Synced", "md"),
			file(sub+"Unsynced.md", "Unsynced", "md"),
		},
		tags: map[string][]string{
			sub + "Synced.md":   {"connection/people/sync"},
			sub + "Unsynced.md": {"youtube"},
		},
	}
	policy := selection.MustCompile(`^Data/md/YouTube/YouTubeSubscriptionData/.*`, selection.GateSpec{
		Scope:      `^Data/md/YouTube/YouTubeSubscriptionData/.*`,
		RequireTag: "connection/people/sync",
	})

	docs := New(corpus, nil, quiet()).Scan(context.Background(), Request{Dataset: "connections", Policy: policy, Extractor: fakeExtractor{}})
	require.Len(t, docs, 1)
	assert.Equal(t, sub+"Synced.md", docs[0].RelativePath)
}

func TestScan_EmptySelectionIsEmptySlice(t *testing.T) {
	docs := New(fakeCorpus{}, nil, quiet()).Scan(context.Background(), Request{Policy: selection.MustCompile(`.*`), Extractor: fakeExtractor{}})
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}
